package runner

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/aretw0/tabula/pkg/domain"
)

// Event is one line of JSONHandler output.
type Event struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	Request   string       `json:"request,omitempty"`
	Source    string       `json:"source,omitempty"`
	Index     int          `json:"index,omitempty"`
	Narration string       `json:"narration,omitempty"`
	Call      *domain.Call `json:"call,omitempty"`
	Result    string       `json:"result,omitempty"`
	Image     []byte       `json:"image,omitempty"`
	IsError   bool         `json:"is_error,omitempty"`
	Answer    string       `json:"answer,omitempty"`
	Steps     int          `json:"steps,omitempty"`
}

// JSONHandler reports progress as JSON Lines.
type JSONHandler struct {
	mu      sync.Mutex
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler writing to w (Stdout if nil).
func NewJSONHandler(w io.Writer) *JSONHandler {
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{Encoder: json.NewEncoder(w)}
}

func (h *JSONHandler) Started(ctx context.Context, s *domain.Session) error {
	return h.emit(Event{Type: "start", SessionID: s.ID, Request: s.Request, Source: s.Source})
}

func (h *JSONHandler) Stepped(ctx context.Context, s *domain.Session, index int, rec domain.StepRecord) error {
	return h.emit(Event{
		Type:      "step",
		SessionID: s.ID,
		Index:     index + 1,
		Narration: rec.Narration,
		Call:      rec.Call,
		Result:    rec.Result,
		Image:     rec.Image,
		IsError:   rec.IsError,
	})
}

func (h *JSONHandler) Finished(ctx context.Context, s *domain.Session) error {
	return h.emit(Event{Type: "finish", SessionID: s.ID, Answer: s.Answer(), Steps: len(s.Steps)})
}

func (h *JSONHandler) emit(ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Encoder.Encode(ev)
}
