package runner_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/tabula"
	"github.com/aretw0/tabula/internal/adapters/script"
	"github.com/aretw0/tabula/pkg/adapters/memory"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/ports"
	"github.com/aretw0/tabula/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meanScript() []script.Step {
	return []script.Step{
		{Say: "Adding the columns.", Command: domain.NewCall("c1", domain.TableOp{FunctionName: "eval", Kwargs: map[string]any{"expr": "a + b"}})},
		{Command: domain.NewCall("c2", domain.SeriesOp{FunctionName: "mean"})},
		{Say: "The mean is 22."},
	}
}

func newEngine(t *testing.T, c ports.Consultant) *tabula.Engine {
	t.Helper()
	loader, err := memory.NewFromColumns("data.csv", []string{"a", "b"}, map[string][]any{
		"a": {1, 2, 3},
		"b": {10, 20, 30},
	})
	require.NoError(t, err)
	engine, err := tabula.New(tabula.WithConsultant(c), tabula.WithLoader(loader))
	require.NoError(t, err)
	return engine
}

func decodeEvents(t *testing.T, buf *bytes.Buffer) []runner.Event {
	t.Helper()
	var events []runner.Event
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var ev runner.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		events = append(events, ev)
	}
	return events
}

func TestRunner_RunsToCompletion(t *testing.T) {
	var out bytes.Buffer
	store := memory.NewStore()
	r := runner.NewRunner(
		runner.WithStore(store),
		runner.WithObserver(runner.NewJSONHandler(&out)),
	)

	s, err := r.RunSession(t.Context(), newEngine(t, script.NewConsultant(meanScript()...)), "job-1", "  mean of a + b?\x07", "data.csv")
	require.NoError(t, err)
	assert.True(t, s.Finished())
	assert.Equal(t, "job-1", s.ID)
	assert.Equal(t, "mean of a + b?", s.Request)

	events := decodeEvents(t, &out)
	require.Len(t, events, 4)
	assert.Equal(t, "start", events[0].Type)
	assert.Equal(t, "step", events[1].Type)
	assert.Equal(t, "Adding the columns.", events[1].Narration)
	assert.Equal(t, "22", events[2].Result)
	assert.Equal(t, 2, events[2].Index)
	assert.Equal(t, "finish", events[3].Type)
	assert.Equal(t, "The mean is 22.", events[3].Answer)

	saved, err := store.Load(t.Context(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseFinished, saved.Phase)
	assert.Len(t, saved.Steps, 2)
}

func TestRunner_StepLimit(t *testing.T) {
	store := memory.NewStore()
	r := runner.NewRunner(runner.WithStore(store), runner.WithMaxSteps(1), runner.WithObserver(runner.Discard))

	s, err := r.RunSession(t.Context(), newEngine(t, script.NewConsultant(meanScript()...)), "job-2", "mean?", "data.csv")
	require.ErrorIs(t, err, runner.ErrStepLimit)
	assert.Len(t, s.Steps, 1)

	saved, err := store.Load(t.Context(), "job-2")
	require.NoError(t, err)
	assert.False(t, saved.Finished())
	assert.NotNil(t, saved.Pending, "the next command waits for a later run")
}

func TestRunner_ResumesStoredSession(t *testing.T) {
	store := memory.NewStore()
	engine := newEngine(t, script.NewConsultant(meanScript()...))

	_, err := runner.NewRunner(runner.WithStore(store), runner.WithMaxSteps(1), runner.WithObserver(runner.Discard)).
		RunSession(t.Context(), engine, "job-3", "mean?", "data.csv")
	require.ErrorIs(t, err, runner.ErrStepLimit)

	var out bytes.Buffer
	s, err := runner.NewRunner(runner.WithStore(store), runner.WithObserver(runner.NewJSONHandler(&out))).
		RunSession(t.Context(), engine, "job-3", "ignored", "ignored.csv")
	require.NoError(t, err)
	assert.True(t, s.Finished())
	assert.Equal(t, "mean?", s.Request)

	// Only the step executed by this run is reported.
	events := decodeEvents(t, &out)
	require.Len(t, events, 3)
	assert.Equal(t, 2, events[1].Index)
}

func TestRunner_RetriesFailedConsultation(t *testing.T) {
	inner := script.NewConsultant(meanScript()...)
	calls := 0
	flaky := ports.ConsultantFunc(func(ctx context.Context, tr *domain.Transcript) (domain.Decision, error) {
		calls++
		if calls == 2 {
			return domain.Decision{}, errors.New("overloaded")
		}
		return inner.Consult(ctx, tr)
	})
	engine := newEngine(t, flaky)
	r := runner.NewRunner(runner.WithObserver(runner.Discard))

	s, err := engine.Start(t.Context(), "mean?", "data.csv")
	require.NoError(t, err)

	s, err = r.Run(t.Context(), engine, s)
	require.ErrorContains(t, err, "overloaded")
	require.Nil(t, s.Pending)

	s, err = r.Run(t.Context(), engine, s)
	require.NoError(t, err)
	assert.True(t, s.Finished())
	assert.Len(t, s.Steps, 2)
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	engine := newEngine(t, script.NewConsultant(meanScript()...))
	s, err := engine.Start(t.Context(), "mean?", "data.csv")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = runner.NewRunner(runner.WithObserver(runner.Discard)).Run(ctx, engine, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_RejectsEmptyRequest(t *testing.T) {
	_, err := runner.NewRunner().RunSession(t.Context(), newEngine(t, script.NewConsultant()), "", " \t ", "data.csv")
	assert.ErrorIs(t, err, runner.ErrEmptyRequest)
}

func TestSessionManager_MissingSourceIsFatal(t *testing.T) {
	store := memory.NewStore()
	_, _, err := runner.NewSessionManager(store).LoadOrStart(t.Context(), newEngine(t, script.NewConsultant()), "job-4", "req", "nope.csv")

	var loadErr *domain.SourceLoadError
	require.ErrorAs(t, err, &loadErr)
	ids, err := store.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
