package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSessionStart  EventType = "session_start"
	EventSessionFinish EventType = "session_finish"
	EventConsult       EventType = "consult"
	EventCommand       EventType = "command"
	EventResult        EventType = "result"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// SessionEvent marks the start or end of a session.
type SessionEvent struct {
	EventBase
	Source string `json:"source,omitempty"`
	Steps  int    `json:"steps"`
}

// ConsultEvent reports one round trip to the decision-maker.
type ConsultEvent struct {
	EventBase
	Duration   time.Duration `json:"duration"`
	HasCommand bool          `json:"has_command"`
	Err        error         `json:"-"`
}

// Outcome labels what a command produced.
type Outcome string

const (
	OutcomeTable  Outcome = "table"
	OutcomeSeries Outcome = "series"
	OutcomeChart  Outcome = "chart"
	OutcomeValue  Outcome = "value"
	OutcomeNone   Outcome = "none"
	OutcomeError  Outcome = "error"
)

// CommandEvent reports a command before (Outcome empty) and after execution.
type CommandEvent struct {
	EventBase
	Tool     string        `json:"tool"`
	Function string        `json:"function,omitempty"`
	Outcome  Outcome       `json:"outcome,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnSessionStart  func(context.Context, *SessionEvent)
	OnSessionFinish func(context.Context, *SessionEvent)
	OnConsult       func(context.Context, *ConsultEvent)
	OnCommand       func(context.Context, *CommandEvent)
	OnResult        func(context.Context, *CommandEvent)
}

// Merge returns hooks that call h and then other for every event.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnSessionStart:  chain(h.OnSessionStart, other.OnSessionStart),
		OnSessionFinish: chain(h.OnSessionFinish, other.OnSessionFinish),
		OnConsult:       chain(h.OnConsult, other.OnConsult),
		OnCommand:       chain(h.OnCommand, other.OnCommand),
		OnResult:        chain(h.OnResult, other.OnResult),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
