package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/tabula/internal/runtime"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/ports"
	"github.com/aretw0/tabula/pkg/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replays decisions in order and records the transcripts it was shown.
type scripted struct {
	decisions []domain.Decision
	seen      []*domain.Transcript
	failNext  error
}

func (s *scripted) Consult(ctx context.Context, tr *domain.Transcript) (domain.Decision, error) {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return domain.Decision{}, err
	}
	s.seen = append(s.seen, tr.Clone())
	if len(s.decisions) == 0 {
		return domain.Decision{Narration: "final answer"}, nil
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

func call(id string, cmd domain.Command) domain.Decision {
	return domain.Decision{Narration: "next", Call: domain.NewCall(id, cmd)}
}

type staticLoader struct {
	table *tabular.Table
	err   error
}

func (l staticLoader) Load(ctx context.Context, path string) (*tabular.Table, error) {
	return l.table, l.err
}

func newEngine(t *testing.T, c ports.Consultant, opts ...runtime.EngineOption) *runtime.Engine {
	t.Helper()
	tbl, err := tabular.NewTable(
		tabular.NewColumn("a", []any{1, 2, 3}),
		tabular.NewColumn("b", []any{4, 5, 6}),
	)
	require.NoError(t, err)
	opts = append([]runtime.EngineOption{runtime.WithIDGenerator(func() string { return "s1" })}, opts...)
	return runtime.NewEngine(c, staticLoader{table: tbl}, opts...)
}

func lastToolResult(t *testing.T, s *domain.Session) domain.Message {
	t.Helper()
	msgs := s.Transcript.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleToolResult {
			return msgs[i]
		}
	}
	t.Fatal("no tool result in transcript")
	return domain.Message{}
}

func TestEngine_EvalThenMeanScenario(t *testing.T) {
	c := &scripted{decisions: []domain.Decision{
		call("c1", domain.TableOp{TargetIndex: 0, FunctionName: "eval", Kwargs: map[string]any{"expr": "a+b"}}),
		call("c2", domain.SeriesOp{FunctionName: "mean", Kwargs: map[string]any{}}),
	}}
	ctx := context.Background()
	eng := newEngine(t, c)

	s, err := eng.Start(ctx, "what is the mean of a+b?", "data.csv")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseAwaitingCommand, s.Phase)
	require.NotNil(t, s.Pending)

	first, ok := s.Transcript.Last()
	require.True(t, ok)
	assert.Equal(t, domain.RoleDecisionMaker, first.Role)

	s, err = eng.Step(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Store.Len())
	reg, err := s.Store.Register()
	require.NoError(t, err)
	assert.Equal(t, []any{5.0, 7.0, 9.0}, reg.Values)
	res := lastToolResult(t, s)
	assert.Equal(t, "c1", res.CallID)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Text(), "Series")

	s, err = eng.Step(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "7", lastToolResult(t, s).Text())
	assert.Equal(t, 1, s.Store.Len())

	assert.True(t, s.Finished())
	assert.Equal(t, "final answer", s.Answer())
	assert.Len(t, s.Steps, 2)
}

func TestEngine_FailureIsReportedInBand(t *testing.T) {
	c := &scripted{decisions: []domain.Decision{
		call("c1", domain.Pop{}),
		call("c2", domain.TableOp{TargetIndex: 0, FunctionName: "head"}),
	}}
	ctx := context.Background()
	eng := newEngine(t, c)

	s, err := eng.Start(ctx, "req", "data.csv")
	require.NoError(t, err)
	s, err = eng.Step(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Store.Len())

	s, err = eng.Step(ctx, s)
	require.NoError(t, err, "operation failures never escalate")
	res := lastToolResult(t, s)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "stack index out of range")
	assert.True(t, s.Steps[1].IsError)

	// The decision-maker saw the error and chose to stop.
	assert.True(t, s.Finished())
}

func TestEngine_MalformedCallIsReportedInBand(t *testing.T) {
	c := &scripted{decisions: []domain.Decision{
		{Call: &domain.Call{ID: "c1", Name: "dataframe_operation", Input: map[string]any{"function_name": "head"}}},
	}}
	ctx := context.Background()
	eng := newEngine(t, c)

	s, err := eng.Start(ctx, "req", "data.csv")
	require.NoError(t, err)
	s, err = eng.Step(ctx, s)
	require.NoError(t, err)

	res := lastToolResult(t, s)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "malformed command")
}

func TestEngine_StepIsNoOpWhenFinished(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, &scripted{})

	s, err := eng.Start(ctx, "req", "data.csv")
	require.NoError(t, err)
	require.True(t, s.Finished())
	n := s.Transcript.Len()

	s, err = eng.Step(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, n, s.Transcript.Len())
}

func TestEngine_SourceLoadFailureIsFatal(t *testing.T) {
	eng := runtime.NewEngine(&scripted{}, staticLoader{err: errors.New("no such file")})

	_, err := eng.Start(context.Background(), "req", "missing.csv")
	var loadErr *domain.SourceLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "missing.csv", loadErr.Path)
}

func TestEngine_ConsultFailureThenResume(t *testing.T) {
	c := &scripted{decisions: []domain.Decision{
		call("c1", domain.TableOp{FunctionName: "shape"}),
	}}
	ctx := context.Background()
	eng := newEngine(t, c)

	s, err := eng.Start(ctx, "req", "data.csv")
	require.NoError(t, err)

	c.failNext = errors.New("connection reset")
	s, err = eng.Step(ctx, s)
	require.Error(t, err)
	assert.Equal(t, domain.PhaseAwaitingCommand, s.Phase)
	assert.Nil(t, s.Pending)
	assert.Len(t, s.Steps, 1, "the command was applied before the failure")

	s, err = eng.Resume(ctx, s)
	require.NoError(t, err)
	assert.True(t, s.Finished())
}

func TestEngine_WorkspaceEcho(t *testing.T) {
	c := &scripted{decisions: []domain.Decision{call("c1", domain.TableOp{FunctionName: "head", Kwargs: map[string]any{"n": 1}})}}
	ctx := context.Background()
	eng := newEngine(t, c, runtime.WithWorkspaceEcho(true))

	s, err := eng.Start(ctx, "req", "data.csv")
	require.NoError(t, err)
	s, err = eng.Step(ctx, s)
	require.NoError(t, err)

	res := lastToolResult(t, s)
	require.Len(t, res.Blocks, 2)
	assert.True(t, strings.HasPrefix(res.Blocks[1].Text, "Stack and Register"))
	assert.Contains(t, res.Blocks[1].Text, "<stack element 1>")
}

func TestEngine_ChartResultIsImage(t *testing.T) {
	c := &scripted{decisions: []domain.Decision{call("c1", domain.TableOp{FunctionName: "plot.hist", Kwargs: map[string]any{"column": "a"}})}}
	ctx := context.Background()
	eng := newEngine(t, c)

	s, err := eng.Start(ctx, "req", "data.csv")
	require.NoError(t, err)
	s, err = eng.Step(ctx, s)
	require.NoError(t, err)

	res := lastToolResult(t, s)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, domain.BlockImage, res.Blocks[0].Type)
	assert.NotEmpty(t, s.Steps[0].Image)
	assert.Equal(t, 1, s.Store.Len())
}

func TestEngine_LifecycleHooks(t *testing.T) {
	var events []string
	hooks := domain.LifecycleHooks{
		OnSessionStart:  func(ctx context.Context, e *domain.SessionEvent) { events = append(events, "start") },
		OnConsult:       func(ctx context.Context, e *domain.ConsultEvent) { events = append(events, "consult") },
		OnCommand:       func(ctx context.Context, e *domain.CommandEvent) { events = append(events, "command:"+e.Function) },
		OnResult:        func(ctx context.Context, e *domain.CommandEvent) { events = append(events, fmt.Sprintf("result:%s", e.Outcome)) },
		OnSessionFinish: func(ctx context.Context, e *domain.SessionEvent) { events = append(events, fmt.Sprintf("finish:%d", e.Steps)) },
	}
	c := &scripted{decisions: []domain.Decision{call("c1", domain.TableOp{FunctionName: "describe"})}}
	ctx := context.Background()
	eng := newEngine(t, c, runtime.WithLifecycleHooks(hooks))

	s, err := eng.Start(ctx, "req", "data.csv")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := eng.Step(ctx, s); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	want := []string{"start", "consult", "command:describe", "result:table", "consult", "finish:1"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Errorf("Expected events %v, got %v", want, events)
	}
}

func TestEngine_RequestMessageCarriesOverview(t *testing.T) {
	c := &scripted{}
	_, err := newEngine(t, c).Start(context.Background(), "how many rows?", "data.csv")
	require.NoError(t, err)

	require.Len(t, c.seen, 1)
	first := c.seen[0].Messages()[0]
	assert.Equal(t, domain.RoleRequester, first.Role)
	assert.Contains(t, first.Text(), `User request: "how many rows?"`)
	assert.Contains(t, first.Text(), "<stack element 0>")
	assert.Contains(t, first.Text(), "<series register>\nNone")
}

func TestEngine_ExecuteOutsideSession(t *testing.T) {
	eng := newEngine(t, &scripted{})
	ctx := context.Background()

	tbl, err := eng.Load(ctx, "data.csv")
	require.NoError(t, err)
	store := tabular.NewStore(tbl)

	blocks, err := eng.Execute(ctx, store, domain.TableOp{FunctionName: "head", Kwargs: map[string]any{"n": 2}})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].Text, "[2 rows x 2 columns]")
	assert.Equal(t, 2, store.Len())

	_, err = eng.Execute(ctx, store, domain.TableOp{TargetIndex: 5, FunctionName: "head"})
	assert.ErrorIs(t, err, tabular.ErrIndexOutOfRange)
}
