package feedback

import (
	"context"
	"time"
)

// Session is the handle returned by Engine.Open. It stays valid after the
// session finishes, so a caller can read the result of a session that
// resolved before it started waiting.
type Session struct {
	id     string
	engine *Engine
	state  *session
}

func (s *Session) ID() string { return s.id }

func (s *Session) Deadline() time.Time { return s.state.result.Deadline }

// Done is closed once the session reaches a terminal status and its callbacks
// have returned.
func (s *Session) Done() <-chan struct{} { return s.state.done }

// Result returns the current snapshot.
func (s *Session) Result() Result {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.state.snapshot()
}

// Wait blocks until the session finishes or ctx ends. An abandoned session
// returns ErrSessionAbandoned alongside its result.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	return waitSession(ctx, s.engine, s.state)
}

// Dispose abandons the session if it is still open.
func (s *Session) Dispose() bool { return s.engine.Dispose(s.id) }
