package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/tabula/internal/config"
	"github.com/aretw0/tabula/internal/logging"
	"github.com/aretw0/tabula/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
		case <-sc.Context.Done():
		}
		signal.Stop(sc.sigCh)
	}()

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger configures the application logger. Debug forces the debug level.
func NewLogger(cfg *config.Config, debug bool) *slog.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	if cfg.LogFormat == "json" {
		return logging.NewJSON(os.Stderr, level)
	}
	return logging.New(level)
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// DebugHooks logs every lifecycle event at debug level.
func DebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(ctx context.Context, e *domain.SessionEvent) {
			logger.Debug("Session Start", "session_id", e.SessionID, "source", e.Source)
		},
		OnConsult: func(ctx context.Context, e *domain.ConsultEvent) {
			if e.Err != nil {
				logger.Debug("Consult (Error)", "session_id", e.SessionID, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.Debug("Consult", "session_id", e.SessionID, "duration", e.Duration, "has_command", e.HasCommand)
		},
		OnCommand: func(ctx context.Context, e *domain.CommandEvent) {
			logger.Debug("Command", "session_id", e.SessionID, "tool", e.Tool, "function", e.Function)
		},
		OnResult: func(ctx context.Context, e *domain.CommandEvent) {
			if e.Error != "" {
				logger.Debug("Result (Error)", "session_id", e.SessionID, "tool", e.Tool, "err", e.Error)
				return
			}
			logger.Debug("Result", "session_id", e.SessionID, "tool", e.Tool, "outcome", e.Outcome, "duration", e.Duration)
		},
		OnSessionFinish: func(ctx context.Context, e *domain.SessionEvent) {
			logger.Debug("Session Finish", "session_id", e.SessionID, "steps", e.Steps)
		},
	}
}
