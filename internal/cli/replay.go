package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/tabula/internal/adapters/script"
	"github.com/aretw0/tabula/internal/config"
	"github.com/aretw0/tabula/pkg/adapters/memory"
	"github.com/aretw0/tabula/pkg/runner"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ErrTranscriptMismatch is returned when a replay differs from its golden transcript.
var ErrTranscriptMismatch = errors.New("transcript does not match")

// ReplayOptions configures a scripted replay.
type ReplayOptions struct {
	Config     *config.Config
	ScriptPath string
	Source     string // overrides the script's source
	Expect     string // golden transcript file
	Update     bool   // rewrite Expect instead of comparing
	JSON       bool
	Out        io.Writer
}

// Replay drives a session with a recorded script instead of a model.
func Replay(ctx context.Context, opts ReplayOptions) error {
	cfg := opts.Config
	logger := NewLogger(cfg, false)

	sc, err := script.Load(opts.ScriptPath)
	if err != nil {
		return err
	}
	source := opts.Source
	if source == "" && sc.Source != "" {
		source = sc.Source
		if !filepath.IsAbs(source) {
			source = filepath.Join(filepath.Dir(opts.ScriptPath), source)
		}
	}
	if source == "" {
		return fmt.Errorf("script %s names no source; pass --source", opts.ScriptPath)
	}

	engine, err := NewEngine(cfg, script.NewConsultant(sc.Steps...), logger)
	if err != nil {
		return err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	observer := runner.Discard
	if opts.Expect == "" || opts.JSON {
		observer = NewObserver(out, opts.JSON, "")
	}

	r := runner.NewRunner(
		runner.WithStore(memory.NewStore()),
		runner.WithLogger(logger),
		runner.WithObserver(observer),
		runner.WithMaxSteps(len(sc.Steps)),
	)
	s, err := r.RunSession(ctx, engine, "", sc.Request, source)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}
	if opts.Expect == "" {
		return nil
	}

	got := s.Transcript.Render()
	if opts.Update {
		if err := os.WriteFile(opts.Expect, []byte(got), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.Expect, err)
		}
		printSystemMessage(out, "Wrote %s", opts.Expect)
		return nil
	}

	want, err := os.ReadFile(opts.Expect)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.Expect, err)
	}
	if string(want) == got {
		printSystemMessage(out, "Transcript matches %s", opts.Expect)
		return nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(string(want), got, false))
	fmt.Fprintln(out, dmp.DiffPrettyText(diffs))
	return fmt.Errorf("%w: %s", ErrTranscriptMismatch, opts.Expect)
}
