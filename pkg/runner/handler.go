package runner

import (
	"context"

	"github.com/aretw0/tabula/pkg/domain"
)

// Observer receives progress from the Runner.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type Observer interface {
	// Started is called once with the session as returned by Start or loaded from
	// the store.
	Started(ctx context.Context, s *domain.Session) error

	// Stepped is called for every command executed during the run, in order.
	Stepped(ctx context.Context, s *domain.Session, index int, rec domain.StepRecord) error

	// Finished is called when the decision-maker stops requesting commands.
	Finished(ctx context.Context, s *domain.Session) error
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// Discard is an Observer that ignores all progress.
var Discard Observer = discard{}

type discard struct{}

func (discard) Started(context.Context, *domain.Session) error { return nil }
func (discard) Stepped(context.Context, *domain.Session, int, domain.StepRecord) error {
	return nil
}
func (discard) Finished(context.Context, *domain.Session) error { return nil }
