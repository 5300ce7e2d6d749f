package domain

import (
	"time"

	"github.com/aretw0/tabula/pkg/tabular"
)

// Phase is the controller state of a session.
type Phase string

const (
	PhaseStarting        Phase = "starting"
	PhaseAwaitingCommand Phase = "awaiting_command"
	PhaseExecuting       Phase = "executing"
	PhaseRendering       Phase = "rendering"
	PhaseFinished        Phase = "finished"
)

// StepRecord is the log entry of one executed command.
type StepRecord struct {
	Narration string    `json:"narration,omitempty"`
	Call      *Call     `json:"call"`
	Result    string    `json:"result"`
	Image     []byte    `json:"image,omitempty"`
	IsError   bool      `json:"is_error,omitempty"`
	At        time.Time `json:"at"`
}

// Session is the complete state of one analysis: transcript, stack, register and the
// pending call. It is created by Start and mutated only by Step.
type Session struct {
	ID      string `json:"id"`
	Request string `json:"request"`
	Source  string `json:"source"`

	Phase Phase `json:"phase"`

	Transcript *Transcript    `json:"transcript"`
	Store      *tabular.Store `json:"store"`

	// Pending is the call awaiting execution; nil once the decision-maker stops.
	Pending *Call `json:"pending,omitempty"`

	// Narration is the text that accompanied the pending call.
	Narration string `json:"narration,omitempty"`

	Steps []StepRecord `json:"steps,omitempty"`

	// Sealed holds the encrypted session when a store encrypts at rest. The other
	// content fields of such an envelope are empty.
	Sealed string `json:"sealed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an empty session in the starting phase.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         id,
		Phase:      PhaseStarting,
		Transcript: NewTranscript(),
		Store:      tabular.NewStore(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Finished reports whether the decision-maker has stopped requesting commands.
func (s *Session) Finished() bool { return s.Phase == PhaseFinished }

// Answer returns the narration of the final decision-maker message once finished.
func (s *Session) Answer() string {
	if !s.Finished() {
		return ""
	}
	msgs := s.Transcript.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleDecisionMaker {
			return msgs[i].Text()
		}
	}
	return ""
}

// Snapshot returns a deep copy that shares nothing with s.
func (s *Session) Snapshot() *Session {
	out := *s
	out.Transcript = s.Transcript.Clone()
	out.Store = s.Store.Clone()
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	out.Steps = append([]StepRecord(nil), s.Steps...)
	return &out
}
