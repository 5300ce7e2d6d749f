package tabula_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/tabula"
	"github.com/aretw0/tabula/internal/adapters/script"
	"github.com/aretw0/tabula/pkg/domain"
)

func TestFacade_Integration(t *testing.T) {
	source := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(source, []byte("a,b\n1,10\n2,20\n3,30\n"), 0644); err != nil {
		t.Fatal(err)
	}

	consultant := script.NewConsultant(
		script.Step{Command: domain.NewCall("c1", domain.TableOp{FunctionName: "eval", Kwargs: map[string]any{"expr": "a + b"}})},
		script.Step{Command: domain.NewCall("c2", domain.SeriesOp{FunctionName: "mean"})},
		script.Step{Say: "The mean of a + b is 22."},
	)
	var finished int
	engine, err := tabula.New(
		tabula.WithConsultant(consultant),
		tabula.WithLifecycleHooks(domain.LifecycleHooks{
			OnSessionFinish: func(ctx context.Context, e *domain.SessionEvent) { finished++ },
		}),
	)
	if err != nil {
		t.Fatalf("Failed to initialize engine: %v", err)
	}

	ctx := context.Background()
	session, err := engine.Start(ctx, "What is the mean of a + b?", source)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for !session.Finished() {
		if session, err = engine.Step(ctx, session); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}

	if got := session.Steps[1].Result; got != "22" {
		t.Errorf("Expected mean 22, got %q", got)
	}
	if session.Answer() != "The mean of a + b is 22." {
		t.Errorf("Unexpected answer %q", session.Answer())
	}
	if finished != 1 {
		t.Errorf("Expected one finish event, got %d", finished)
	}
}

func TestFacade_RequiresConsultant(t *testing.T) {
	if _, err := tabula.New(); err == nil {
		t.Error("Expected error without a decision-maker")
	}
}

func TestFacade_MissingSource(t *testing.T) {
	engine, err := tabula.New(tabula.WithConsultant(script.NewConsultant(script.Step{})))
	if err != nil {
		t.Fatal(err)
	}

	_, err = engine.Start(context.Background(), "request", filepath.Join(t.TempDir(), "missing.csv"))
	var loadErr *domain.SourceLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected SourceLoadError, got %v", err)
	}
}

func TestFacade_Operations(t *testing.T) {
	engine, err := tabula.New(tabula.WithConsultant(script.NewConsultant(script.Step{})))
	if err != nil {
		t.Fatal(err)
	}
	ops := engine.Operations()
	for _, want := range []string{"Table operations:", "Series operations:", "value_counts", "plot.bar"} {
		if !strings.Contains(ops, want) {
			t.Errorf("Operations() missing %q", want)
		}
	}
	if strings.TrimSpace(tabula.Version) == "" {
		t.Error("Version is empty")
	}
}
