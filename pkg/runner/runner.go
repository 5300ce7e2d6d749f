package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/tabula/internal/logging"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/ports"
)

// ErrStepLimit is returned when a run executes MaxSteps commands without finishing.
var ErrStepLimit = errors.New("step limit reached")

// Engine is the part of tabula.Engine the Runner drives.
type Engine interface {
	Start(ctx context.Context, request, source string) (*domain.Session, error)
	Step(ctx context.Context, s *domain.Session) (*domain.Session, error)
	Resume(ctx context.Context, s *domain.Session) (*domain.Session, error)
}

// Runner handles the execution loop of the tabula engine.
type Runner struct {
	// Observer receives progress. If nil, a TextHandler on Stdout is used.
	Observer Observer

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// Store is the persistence adapter for durable execution.
	// If nil, sessions are ephemeral.
	Store ports.SessionStore

	// MaxSteps caps the commands executed by one run. Zero means unlimited.
	MaxSteps int
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Observer: NewTextHandler(os.Stdout),
		Logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSession loads or starts the session with the given ID and runs it to completion.
// The request is only used, and sanitized, when a new session starts.
func (r *Runner) RunSession(ctx context.Context, engine Engine, sessionID, request, source string) (*domain.Session, error) {
	s, loaded, err := NewSessionManager(r.Store).LoadOrStart(ctx, engine, sessionID, request, source)
	if err != nil {
		return s, err
	}
	if loaded {
		r.logger().Debug("session resumed", "session_id", s.ID, "steps", len(s.Steps))
	}
	return r.Run(ctx, engine, s)
}

// Run steps s until the decision-maker stops, the step cap is reached, the context is
// cancelled or the engine fails. The session reached so far is always returned and,
// with a store configured, persisted.
func (r *Runner) Run(ctx context.Context, engine Engine, s *domain.Session) (*domain.Session, error) {
	obs := r.observer()
	log := r.logger().With("session_id", s.ID)

	if err := obs.Started(ctx, s); err != nil {
		return s, fmt.Errorf("output error: %w", err)
	}
	// Steps recorded before this run were reported by whoever ran them.
	reported := len(s.Steps)

	for !s.Finished() {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if r.MaxSteps > 0 && len(s.Steps) >= r.MaxSteps {
			return s, fmt.Errorf("%w: %d commands", ErrStepLimit, r.MaxSteps)
		}

		var next *domain.Session
		var stepErr error
		if s.Pending == nil {
			// The last consultation failed; ask again.
			next, stepErr = engine.Resume(ctx, s)
		} else {
			next, stepErr = engine.Step(ctx, s)
		}
		if next != nil {
			s = next
		}

		for ; reported < len(s.Steps); reported++ {
			if err := obs.Stepped(ctx, s, reported, s.Steps[reported]); err != nil {
				return s, fmt.Errorf("output error: %w", err)
			}
		}

		if err := r.save(ctx, s); err != nil {
			return s, fmt.Errorf("critical persistence error: %w", err)
		}
		if stepErr != nil {
			log.Debug("step failed", "err", stepErr)
			return s, stepErr
		}
	}

	if err := obs.Finished(ctx, s); err != nil {
		return s, fmt.Errorf("output error: %w", err)
	}
	log.Debug("session finished", "steps", len(s.Steps))
	return s, nil
}

func (r *Runner) save(ctx context.Context, s *domain.Session) error {
	if r.Store == nil {
		return nil
	}
	if err := r.Store.Save(ctx, s); err != nil {
		return err
	}
	r.logger().Debug("session saved", "session_id", s.ID, "phase", s.Phase, "steps", len(s.Steps))
	return nil
}

func (r *Runner) observer() Observer {
	if r.Observer == nil {
		r.Observer = NewTextHandler(os.Stdout)
	}
	return r.Observer
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	return r.Logger
}
