// Package feedback correlates broadcast requests with the responses other
// units send back. A session is opened before the request goes out, collects
// at most one response per origin and ends once its completion condition holds
// or its deadline passes.
package feedback

import (
	"slices"
	"time"

	"github.com/drblury/unitcast/internal/runtime/payload"
)

// State marks a feedback payload as a request or a response.
type State string

const (
	StateRequest  State = "REQUEST"
	StateResponse State = "RESPONSE"
)

// Carrier is a payload that takes part in a feedback exchange.
type Carrier interface {
	payload.Payload
	FeedbackID() string
	SetFeedbackID(id string)
	FeedbackState() State
	SetFeedbackState(state State)
}

// Base is embedded by feedback payloads.
type Base struct {
	payload.Base
	ID    string `json:"feedbackId"`
	State State  `json:"state"`
}

func (b *Base) FeedbackID() string { return b.ID }

func (b *Base) SetFeedbackID(id string) { b.ID = id }

func (b *Base) FeedbackState() State { return b.State }

func (b *Base) SetFeedbackState(state State) { b.State = state }

// Status describes where a session is in its lifecycle.
type Status string

const (
	StatusOpen      Status = "open"
	StatusResolved  Status = "resolved"
	StatusExpired   Status = "expired"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further responses will be recorded.
func (s Status) Terminal() bool { return s != StatusOpen }

// Response is one recorded reply.
type Response struct {
	ID         string
	Origin     string
	Payload    Carrier
	ReceivedAt time.Time
}

// Result is a snapshot of a session.
type Result struct {
	ID          string
	Status      Status
	Respondents []string
	Responses   []Response
	OpenedAt    time.Time
	Deadline    time.Time
	ClosedAt    time.Time
}

// Count returns the number of recorded responses.
func (r Result) Count() int { return len(r.Responses) }

// RespondedBy reports whether origin has replied.
func (r Result) RespondedBy(origin string) bool {
	return slices.Contains(r.Respondents, origin)
}

// Condition decides whether a session has collected enough responses.
type Condition func(Result) bool

// ExpectResponses is satisfied once n distinct origins have replied.
func ExpectResponses(n int) Condition {
	return func(r Result) bool { return len(r.Respondents) >= n }
}

// ExpectOrigins is satisfied once every listed origin has replied.
func ExpectOrigins(origins ...string) Condition {
	want := slices.Clone(origins)
	return func(r Result) bool {
		for _, o := range want {
			if !r.RespondedBy(o) {
				return false
			}
		}
		return true
	}
}

// Options configure a session. A zero Timeout falls back to the engine default.
// A nil Condition never resolves early, so the session runs to its deadline.
type Options struct {
	Timeout    time.Duration
	Condition  Condition
	OnResponse func(Response)
	OnResolved func(Result)
	OnExpired  func(Result)
}
