package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/tabula/internal/chart"
	"github.com/aretw0/tabula/internal/ops"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/ports"
	"github.com/aretw0/tabula/pkg/tabular"
	"github.com/google/uuid"
)

// Engine is the session controller. It owns no session state: Start creates a
// session and Step advances the one it is given.
type Engine struct {
	consultant ports.Consultant
	loader     ports.SourceLoader
	dispatcher *Dispatcher
	classifier Classifier
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	echo       bool
	newID      func() string
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPreviewRows sets how many rows table and series summaries show.
func WithPreviewRows(n int) EngineOption {
	return func(e *Engine) {
		e.classifier.PreviewRows = n
	}
}

// WithWorkspaceEcho appends the stack and register overview to every tool result.
func WithWorkspaceEcho(enabled bool) EngineOption {
	return func(e *Engine) {
		e.echo = enabled
	}
}

// WithCatalog replaces the built-in operation catalog.
func WithCatalog(catalog *ops.Catalog, chartOpts ...chart.Option) EngineOption {
	return func(e *Engine) {
		e.dispatcher = NewDispatcher(catalog, chartOpts...)
	}
}

// WithIDGenerator sets the session ID generator (default: random UUIDs).
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		e.newID = fn
	}
}

// NewEngine creates a new engine with dependencies.
func NewEngine(consultant ports.Consultant, loader ports.SourceLoader, opts ...EngineOption) *Engine {
	e := &Engine{
		consultant: consultant,
		loader:     loader,
		classifier: Classifier{PreviewRows: DefaultPreviewRows},
		logger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.dispatcher == nil {
		e.dispatcher = NewDispatcher(ops.NewCatalog())
	}
	return e
}

// Dispatcher exposes the engine's dispatcher to transports that execute commands directly.
func (e *Engine) Dispatcher() *Dispatcher { return e.dispatcher }

// Classifier exposes the engine's classifier.
func (e *Engine) Classifier() Classifier { return e.classifier }

// Start loads the source table, records the request and consults the decision-maker.
// A source that cannot be loaded is fatal. When the consultation fails, the session is
// returned with the error and can be continued with Resume.
func (e *Engine) Start(ctx context.Context, request, source string) (*domain.Session, error) {
	table, err := e.Load(ctx, source)
	if err != nil {
		return nil, err
	}

	s := domain.NewSession(e.newID())
	s.Request = request
	s.Source = source
	s.Store.Push(table)
	s.Transcript.Append(domain.Message{
		Role:   domain.RoleRequester,
		Blocks: []domain.Block{domain.TextBlock(domain.RequestText(request, s.Store.Overview(e.classifier.PreviewRows)))},
	})

	e.logger.Debug("session started", "session_id", s.ID, "source", source, "rows", table.NumRows())
	e.emitSessionStart(ctx, s)
	return s, e.consult(ctx, s)
}

// Step executes the pending call, reports its rendering (or its failure) as a tool
// result and consults the decision-maker again. It is a no-op on a finished session
// or one without a pending call.
func (e *Engine) Step(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	if s.Finished() || s.Pending == nil {
		return s, nil
	}
	call := s.Pending
	log := e.logger.With("session_id", s.ID, "call_id", call.ID)

	s.Phase = domain.PhaseExecuting
	blocks, image, failed := e.execute(ctx, s, call, log)

	if e.echo {
		blocks = append(blocks, domain.TextBlock(domain.WorkspaceText(s.Store.Overview(e.classifier.PreviewRows))))
	}
	result := domain.Message{Role: domain.RoleToolResult, Blocks: blocks, CallID: call.ID, IsError: failed}
	s.Transcript.Append(result)
	s.Steps = append(s.Steps, domain.StepRecord{
		Narration: s.Narration,
		Call:      call,
		Result:    result.Text(),
		Image:     image,
		IsError:   failed,
		At:        time.Now().UTC(),
	})
	s.Pending = nil
	s.Narration = ""

	return s, e.consult(ctx, s)
}

// Resume consults the decision-maker for a session whose last consultation failed.
func (e *Engine) Resume(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	if s.Finished() || s.Pending != nil || s.Transcript.Len() == 0 {
		return s, nil
	}
	if last, ok := s.Transcript.Last(); ok && last.Role == domain.RoleDecisionMaker {
		return s, nil
	}
	return s, e.consult(ctx, s)
}

// Execute runs one command against store outside of any session and returns the
// rendered result. Transports that let an external host act as the decision-maker
// use it; failures are returned instead of being rendered.
func (e *Engine) Execute(ctx context.Context, store *tabular.Store, cmd domain.Command) ([]domain.Block, error) {
	out, err := e.dispatcher.Dispatch(ctx, store, cmd)
	if err != nil {
		return nil, err
	}
	r := e.classifier.Classify(out)
	r.Apply(store)
	return r.Blocks, nil
}

// Load reads a source table through the engine's loader.
func (e *Engine) Load(ctx context.Context, source string) (*tabular.Table, error) {
	table, err := e.loader.Load(ctx, source)
	if err != nil {
		var loadErr *domain.SourceLoadError
		if !errors.As(err, &loadErr) {
			err = &domain.SourceLoadError{Path: source, Err: err}
		}
		return nil, err
	}
	return table, nil
}

// execute decodes and dispatches call, then classifies the outcome and applies it.
// A failure at any point becomes an error text block.
func (e *Engine) execute(ctx context.Context, s *domain.Session, call *domain.Call, log *slog.Logger) ([]domain.Block, []byte, bool) {
	started := time.Now()
	cmd, err := call.Command()
	event := e.emitCommand(ctx, s, call, cmd)

	var out Outcome
	if err == nil {
		log.Debug("dispatching command", "command", domain.Describe(cmd))
		out, err = e.dispatcher.Dispatch(ctx, s.Store, cmd)
	}
	if err != nil {
		log.Debug("command failed", "tool", call.Name, "err", err)
		e.emitResult(ctx, event, domain.OutcomeError, time.Since(started), err)
		return []domain.Block{domain.TextBlock(fmt.Sprintf("Error: %v", err))}, nil, true
	}

	s.Phase = domain.PhaseRendering
	r := e.classifier.Classify(out)
	r.Apply(s.Store)
	e.emitResult(ctx, event, r.Kind, time.Since(started), nil)

	var image []byte
	if out.Chart != nil {
		image = out.Chart.Data
	}
	return r.Blocks, image, false
}

// consult asks the decision-maker for the next call and records its reply.
func (e *Engine) consult(ctx context.Context, s *domain.Session) error {
	s.Phase = domain.PhaseAwaitingCommand
	started := time.Now()
	d, err := e.consultant.Consult(ctx, s.Transcript)
	e.emitConsult(ctx, s, time.Since(started), d, err)
	if err != nil {
		e.logger.Warn("decision-maker consultation failed", "session_id", s.ID, "err", err)
		return fmt.Errorf("consult decision-maker: %w", err)
	}

	var blocks []domain.Block
	if d.Narration != "" {
		blocks = append(blocks, domain.TextBlock(d.Narration))
	}
	if d.Call != nil {
		if d.Call.ID == "" {
			d.Call.ID = "call_" + uuid.NewString()
		}
		blocks = append(blocks, domain.ToolUseBlock(d.Call))
	}
	if len(blocks) > 0 {
		s.Transcript.Append(domain.Message{Role: domain.RoleDecisionMaker, Blocks: blocks})
	}

	s.Narration = d.Narration
	s.Pending = d.Call
	s.UpdatedAt = time.Now().UTC()
	if d.Call == nil {
		s.Phase = domain.PhaseFinished
		e.logger.Debug("session finished", "session_id", s.ID, "steps", len(s.Steps))
		e.emitSessionFinish(ctx, s)
	}
	return nil
}
