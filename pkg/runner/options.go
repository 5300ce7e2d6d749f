package runner

import (
	"log/slog"

	"github.com/aretw0/tabula/pkg/ports"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithStore configures the SessionStore for persistence.
func WithStore(store ports.SessionStore) Option {
	return func(r *Runner) {
		r.Store = store
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithObserver configures where progress is reported.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.Observer = o
	}
}

// WithMaxSteps caps the number of commands a run may execute. Zero means unlimited.
func WithMaxSteps(n int) Option {
	return func(r *Runner) {
		r.MaxSteps = n
	}
}
