package tabula

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/aretw0/tabula/internal/adapters/csv"
	"github.com/aretw0/tabula/internal/chart"
	"github.com/aretw0/tabula/internal/ops"
	"github.com/aretw0/tabula/internal/runtime"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/ports"
	"github.com/aretw0/tabula/pkg/tabular"
	"gonum.org/v1/plot/vg"
)

// Engine is the high-level entry point for the Tabula library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime     *runtime.Engine
	consultant  ports.Consultant
	loader      ports.SourceLoader
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.EngineOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithConsultant sets the decision-maker. Required.
func WithConsultant(c ports.Consultant) Option {
	return func(e *Engine) {
		e.consultant = c
	}
}

// WithLoader injects a custom SourceLoader, replacing the default CSV loader.
func WithLoader(l ports.SourceLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPreviewRows sets how many rows table and series summaries show (default 5).
func WithPreviewRows(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithPreviewRows(n))
	}
}

// WithWorkspaceEcho appends the stack and register overview to every tool result.
func WithWorkspaceEcho(enabled bool) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithWorkspaceEcho(enabled))
	}
}

// WithChartSize sets the size of rendered charts in inches (default 6x4).
func WithChartSize(width, height float64) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithCatalog(ops.NewCatalog(), chart.WithSize(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch)))
	}
}

// WithIDGenerator sets the session ID generator (default: random UUIDs).
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithIDGenerator(fn))
	}
}

// New initializes a new Tabula Engine. Sources are read as CSV unless WithLoader is given.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.consultant == nil {
		return nil, errors.New("a decision-maker is required (use WithConsultant)")
	}
	if eng.loader == nil {
		eng.loader = csv.New()
	}
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	eng.runtime = runtime.NewEngine(eng.consultant, eng.loader, runtimeOpts...)
	return eng, nil
}

// Start loads source, records the request and asks the decision-maker for its first
// command. A source that cannot be loaded fails with *domain.SourceLoadError. If the
// decision-maker cannot be reached, the session is returned along with the error.
func (e *Engine) Start(ctx context.Context, request, source string) (*domain.Session, error) {
	return e.runtime.Start(ctx, request, source)
}

// Step executes the pending command and consults the decision-maker for the next one.
func (e *Engine) Step(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	return e.runtime.Step(ctx, s)
}

// Resume retries the consultation of a session whose last consultation failed.
func (e *Engine) Resume(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	return e.runtime.Resume(ctx, s)
}

// Execute runs one command against store outside of any session.
func (e *Engine) Execute(ctx context.Context, store *tabular.Store, cmd domain.Command) ([]domain.Block, error) {
	return e.runtime.Execute(ctx, store, cmd)
}

// Load reads a source table through the engine's loader.
func (e *Engine) Load(ctx context.Context, source string) (*tabular.Table, error) {
	return e.runtime.Load(ctx, source)
}

// Operations describes the table and series operations commands can name.
func (e *Engine) Operations() string {
	return e.runtime.Dispatcher().Catalog().Describe()
}

// Loader returns the SourceLoader used by the engine.
func (e *Engine) Loader() ports.SourceLoader {
	return e.loader
}
