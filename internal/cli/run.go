package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/tabula/internal/config"
	"github.com/aretw0/tabula/internal/presentation/tui"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/runner"
)

// RunOptions configures an interactive analysis run.
type RunOptions struct {
	Config    *config.Config
	Request   string
	Source    string
	SessionID string
	JSON      bool
	ImageDir  string
	MaxSteps  int
	Debug     bool
	Out       io.Writer
}

// Run answers a request with the configured decision-maker.
func Run(ctx context.Context, opts RunOptions) error {
	cfg := opts.Config
	logger := NewLogger(cfg, opts.Debug)

	consultant, err := NewConsultant(cfg.Anthropic, logger)
	if err != nil {
		return err
	}

	var hooks []domain.LifecycleHooks
	if opts.Debug {
		hooks = append(hooks, DebugHooks(logger))
	}
	engine, err := NewEngine(cfg, consultant, logger, hooks...)
	if err != nil {
		return err
	}

	sessions, closer, err := NewSessions(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	maxSteps := opts.MaxSteps
	if maxSteps == 0 {
		maxSteps = cfg.Engine.MaxSteps
	}

	r := runner.NewRunner(
		runner.WithStore(sessions.Store()),
		runner.WithLogger(logger),
		runner.WithObserver(NewObserver(out, opts.JSON, opts.ImageDir)),
		runner.WithMaxSteps(maxSteps),
	)

	s, err := r.RunSession(ctx, engine, opts.SessionID, opts.Request, opts.Source)
	if errors.Is(err, runner.ErrStepLimit) && s != nil {
		printSystemMessage(os.Stderr, "Stopped after %d commands. Resume with --session %s", len(s.Steps), s.ID)
		return nil
	}
	if err != nil {
		if s != nil && ctx.Err() != nil {
			printSystemMessage(os.Stderr, "Interrupted. Resume with --session %s", s.ID)
		}
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

// NewObserver picks the progress format. Text output is styled when out is a terminal.
func NewObserver(out io.Writer, asJSON bool, imageDir string) runner.Observer {
	if asJSON {
		return runner.NewJSONHandler(out)
	}
	opts := []runner.TextHandlerOption{runner.WithImageDir(imageDir)}
	if f, ok := out.(*os.File); ok && tui.IsTerminal(f) {
		opts = append(opts,
			runner.WithTextHandlerRenderer(tui.NewRenderer(tui.Width(f))),
			runner.WithTextHandlerHeader(tui.Header),
			runner.WithMaxResultLines(40),
		)
	}
	return runner.NewTextHandler(out, opts...)
}
