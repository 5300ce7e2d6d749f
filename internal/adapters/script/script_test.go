package script_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/tabula/internal/adapters/script"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAML(t *testing.T) {
	s, err := script.Load(filepath.Join("testdata", "mean.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "What is the mean of a + b?", s.Request)
	assert.Equal(t, "data.csv", s.Source)
	require.Len(t, s.Steps, 3)

	cmd, err := s.Steps[0].Command.Command()
	require.NoError(t, err)
	op, ok := cmd.(domain.TableOp)
	require.True(t, ok)
	assert.Equal(t, "eval", op.FunctionName)
	assert.Equal(t, "a + b", op.Kwargs["expr"])
	assert.Nil(t, s.Steps[2].Command)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("steps: []\n"), 0o644))
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o644))

	for _, path := range []string{empty, broken, filepath.Join(dir, "missing.yaml")} {
		_, err := script.Load(path)
		assert.Error(t, err, path)
	}
}

func TestConsultant_FollowsTranscript(t *testing.T) {
	c := script.NewConsultant(
		script.Step{Say: "first", Command: domain.NewCall("", domain.Pop{})},
		script.Step{Say: "done"},
	)
	ctx := context.Background()
	tr := domain.NewTranscript()
	tr.Append(domain.Message{Role: domain.RoleRequester, Blocks: []domain.Block{domain.TextBlock("hi")}})

	d, err := c.Consult(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, "first", d.Narration)
	require.NotNil(t, d.Call)
	assert.NotEmpty(t, d.Call.ID, "missing IDs are generated")

	// Asking again for the same transcript yields the same step.
	again, err := c.Consult(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, "first", again.Narration)

	tr.Append(domain.Message{Role: domain.RoleDecisionMaker, Blocks: []domain.Block{domain.ToolUseBlock(d.Call)}})
	d, err = c.Consult(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, "done", d.Narration)
	assert.Nil(t, d.Call)

	tr.Append(domain.Message{Role: domain.RoleDecisionMaker, Blocks: []domain.Block{domain.TextBlock("done")}})
	_, err = c.Consult(ctx, tr)
	assert.ErrorIs(t, err, script.ErrExhausted)
}
