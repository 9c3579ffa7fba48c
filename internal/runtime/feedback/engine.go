package feedback

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/drblury/unitcast/internal/runtime/ids"
)

var (
	ErrInvalidTimeout   = errors.New("unitcast: feedback timeout must be positive")
	ErrSessionNotFound  = errors.New("unitcast: feedback session not found")
	ErrSessionAbandoned = errors.New("unitcast: feedback session abandoned")
	ErrEngineClosed     = errors.New("unitcast: feedback engine closed")
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDefaultTimeout sets the timeout used when Options.Timeout is zero.
func WithDefaultTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.defaultTimeout = d }
}

// WithObserver registers fn to receive every session's final result.
func WithObserver(fn func(Result)) EngineOption {
	return func(e *Engine) { e.observer = fn }
}

// WithClock overrides the time source. Tests use it to pin timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

type session struct {
	result Result
	opts   Options
	timer  *time.Timer
	done   chan struct{}
}

func (s *session) snapshot() Result {
	r := s.result
	r.Respondents = slices.Clone(s.result.Respondents)
	r.Responses = slices.Clone(s.result.Responses)
	return r
}

// Engine tracks open feedback sessions. It is safe for concurrent use.
type Engine struct {
	mu             sync.Mutex
	sessions       map[string]*session
	defaultTimeout time.Duration
	observer       func(Result)
	now            func() time.Time
	closed         bool
}

// NewEngine returns an empty engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open starts a session and arms its expiry timer.
func (e *Engine) Open(opts Options) (*Session, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = e.defaultTimeout
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}

	opened := e.now()
	s := &session{
		result: Result{
			ID:       ids.New(),
			Status:   StatusOpen,
			OpenedAt: opened,
			Deadline: opened.Add(timeout),
		},
		opts: opts,
		done: make(chan struct{}),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	e.sessions[s.result.ID] = s
	id := s.result.ID
	s.timer = time.AfterFunc(timeout, func() { e.expire(id) })
	e.mu.Unlock()

	return &Session{id: id, engine: e, state: s}, nil
}

// Record stores a response from origin. It returns false when the session is
// unknown, already finished, or origin has already replied.
func (e *Engine) Record(id, origin string, resp Carrier) bool {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if !ok || s.result.Status.Terminal() || s.result.RespondedBy(origin) {
		e.mu.Unlock()
		return false
	}

	r := Response{ID: id, Origin: origin, Payload: resp, ReceivedAt: e.now()}
	s.result.Respondents = append(s.result.Respondents, origin)
	s.result.Responses = append(s.result.Responses, r)

	resolved := s.opts.Condition != nil && s.opts.Condition(s.snapshot())
	var final Result
	if resolved {
		final = e.finishLocked(s, StatusResolved)
	}
	e.mu.Unlock()

	if s.opts.OnResponse != nil {
		s.opts.OnResponse(r)
	}
	if resolved {
		e.notify(s, final, s.opts.OnResolved)
	}
	return true
}

func (e *Engine) expire(id string) {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if !ok || s.result.Status.Terminal() {
		e.mu.Unlock()
		return
	}
	final := e.finishLocked(s, StatusExpired)
	e.mu.Unlock()

	e.notify(s, final, s.opts.OnExpired)
}

// finishLocked moves s to a terminal status and removes it from the table.
// The done channel is closed by notify once callbacks have run.
func (e *Engine) finishLocked(s *session, status Status) Result {
	s.result.Status = status
	s.result.ClosedAt = e.now()
	if s.timer != nil {
		s.timer.Stop()
	}
	delete(e.sessions, s.result.ID)
	return s.snapshot()
}

func (e *Engine) notify(s *session, final Result, cb func(Result)) {
	defer close(s.done)
	if cb != nil {
		cb(final)
	}
	if e.observer != nil {
		e.observer(final)
	}
}

// HasResponded reports whether origin has replied to an open session.
func (e *Engine) HasResponded(id, origin string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	return ok && s.result.RespondedBy(origin)
}

// IsOpen reports whether id names a session that still accepts responses.
func (e *Engine) IsOpen(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[id]
	return ok
}

// Await blocks until the open session id finishes or ctx ends.
func (e *Engine) Await(ctx context.Context, id string) (Result, error) {
	e.mu.Lock()
	s, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return waitSession(ctx, e, s)
}

// Dispose abandons an open session without running its callbacks.
func (e *Engine) Dispose(id string) bool {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	final := e.finishLocked(s, StatusAbandoned)
	e.mu.Unlock()

	e.notify(s, final, nil)
	return true
}

// Close abandons every open session and rejects new ones.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	pending := make([]*session, 0, len(e.sessions))
	finals := make([]Result, 0, len(e.sessions))
	for _, s := range e.sessions {
		pending = append(pending, s)
	}
	for _, s := range pending {
		finals = append(finals, e.finishLocked(s, StatusAbandoned))
	}
	e.mu.Unlock()

	for i, s := range pending {
		e.notify(s, finals[i], nil)
	}
}

// Len returns the number of open sessions.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func waitSession(ctx context.Context, e *Engine, s *session) (Result, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		e.mu.Lock()
		snap := s.snapshot()
		e.mu.Unlock()
		return snap, ctx.Err()
	}

	e.mu.Lock()
	final := s.snapshot()
	e.mu.Unlock()
	if final.Status == StatusAbandoned {
		return final, ErrSessionAbandoned
	}
	return final, nil
}
