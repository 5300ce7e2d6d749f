package registry_test

import (
	"context"
	"testing"

	"github.com/aretw0/tabula/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scaleArgs struct {
	Factor float64  `arg:"factor"`
	Labels []string `arg:"labels"`
}

func newRegistry() *registry.Registry[int] {
	r := registry.New[int]()
	r.Register("double", "Multiply by two.", registry.NoArgs(func(ctx context.Context, n int) (any, error) {
		return n * 2, nil
	}))
	r.Register("scale", "Multiply by factor.", registry.Bind(func(ctx context.Context, n int, a scaleArgs) (any, error) {
		return float64(n) * a.Factor, nil
	}))
	r.Register("plot.bar", "", registry.NoArgs(func(ctx context.Context, n int) (any, error) { return nil, nil }))
	r.Register("plot.line", "", registry.NoArgs(func(ctx context.Context, n int) (any, error) { return nil, nil }))
	return r
}

func TestRegistry_Execute(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	got, err := r.Execute(ctx, "double", 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, got)

	got, err = r.Execute(ctx, "scale", 4, map[string]any{"factor": "2.5"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)

	got, err = r.Execute(ctx, "plot.bar", 1, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegistry_ArgumentErrors(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	_, err := r.Execute(ctx, "scale", 1, map[string]any{"factr": 2})
	var argErr *registry.ArgumentError
	assert.ErrorAs(t, err, &argErr)

	_, err = r.Execute(ctx, "double", 1, map[string]any{"x": 1})
	assert.ErrorAs(t, err, &argErr)
}

func TestRegistry_Resolve(t *testing.T) {
	r := newRegistry()

	tests := []struct {
		name     string
		contains string
	}{
		{"dubble", "did you mean double"},
		{"plot.pie", "plot has no operation \"pie\" (available: bar, line)"},
		{"plot", "call one of its operations: plot.bar, plot.line"},
		{"plot.", "not a valid operation path"},
		{"completely_unrelated", "operation not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.name)
			require.ErrorIs(t, err, registry.ErrNotFound)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestRegistry_AliasAndNames(t *testing.T) {
	r := newRegistry()
	r.Alias("twice", "double")

	e, err := r.Resolve("twice")
	require.NoError(t, err)
	assert.Equal(t, "twice", e.Name)
	assert.Equal(t, []string{"double", "plot.bar", "plot.line", "scale", "twice"}, r.Names())
}

func TestBind_SingleValueBecomesSlice(t *testing.T) {
	var a scaleArgs
	require.NoError(t, registry.Decode(map[string]any{"labels": "x"}, &a))
	assert.Equal(t, []string{"x"}, a.Labels)
}
