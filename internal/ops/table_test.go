package ops_test

import (
	"context"
	"testing"

	"github.com/aretw0/tabula/internal/ops"
	"github.com/aretw0/tabula/pkg/registry"
	"github.com/aretw0/tabula/pkg/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesTable(t *testing.T) *tabular.Table {
	t.Helper()
	tbl, err := tabular.NewTable(
		tabular.NewColumn("region", []any{"north", "south", "north", "east"}),
		tabular.NewColumn("sales", []any{10, 20, 30, nil}),
		tabular.NewColumn("units", []any{1, 2, 3, 4}),
	)
	require.NoError(t, err)
	return tbl
}

func runTable(t *testing.T, name string, tbl *tabular.Table, args map[string]any) any {
	t.Helper()
	got, err := ops.NewCatalog().Tables.Execute(context.Background(), name, tbl, args)
	require.NoError(t, err)
	return got
}

func TestTable_EvalExpression(t *testing.T) {
	got := runTable(t, "eval", salesTable(t), map[string]any{"expr": "units * 2 + 1"})

	s, ok := got.(*tabular.Series)
	require.True(t, ok, "eval returns a series, got %T", got)
	assert.Equal(t, []any{3.0, 5.0, 7.0, 9.0}, s.Values)
	assert.Equal(t, []string{"0", "1", "2", "3"}, s.Index)
}

func TestTable_EvalMissingPropagates(t *testing.T) {
	got := runTable(t, "eval", salesTable(t), map[string]any{"expr": "sales + units"})

	s := got.(*tabular.Series)
	assert.Equal(t, []any{11.0, 22.0, 33.0, nil}, s.Values)
}

func TestTable_EvalAssignment(t *testing.T) {
	tbl := salesTable(t)
	got := runTable(t, "eval", tbl, map[string]any{"expr": "revenue = sales * units"})

	out, ok := got.(*tabular.Table)
	require.True(t, ok)
	col, ok := out.Column("revenue")
	require.True(t, ok)
	assert.Equal(t, []any{10.0, 40.0, 90.0, nil}, col.Values)

	_, exists := tbl.Column("revenue")
	assert.False(t, exists, "target must not change")
}

func TestTable_Query(t *testing.T) {
	got := runTable(t, "query", salesTable(t), map[string]any{"expr": "sales > 15 and region == 'north'"})

	out := got.(*tabular.Table)
	assert.Equal(t, 1, out.NumRows())
	assert.Equal(t, []string{"2"}, out.Index)
}

func TestTable_QueryBacktickNames(t *testing.T) {
	tbl, err := tabular.NewTable(tabular.NewColumn("unit price", []any{1, 5, 9}))
	require.NoError(t, err)

	got := runTable(t, "query", tbl, map[string]any{"expr": "`unit price` >= 5"})
	assert.Equal(t, 2, got.(*tabular.Table).NumRows())
}

func TestTable_GetItem(t *testing.T) {
	tbl := salesTable(t)

	got := runTable(t, "__getitem__", tbl, map[string]any{"key": "sales"})
	s, ok := got.(*tabular.Series)
	require.True(t, ok)
	assert.Equal(t, "sales", s.Name)

	got = runTable(t, "get", tbl, map[string]any{"key": []any{"units", "region"}})
	sub, ok := got.(*tabular.Table)
	require.True(t, ok)
	assert.Equal(t, []string{"units", "region"}, sub.Names())
}

func TestTable_SortValuesDescendingKeepsMissingLast(t *testing.T) {
	got := runTable(t, "sort_values", salesTable(t), map[string]any{"by": "sales", "ascending": false})

	out := got.(*tabular.Table)
	col, _ := out.Column("sales")
	assert.Equal(t, []any{30.0, 20.0, 10.0, nil}, col.Values)
	assert.Equal(t, []string{"2", "1", "0", "3"}, out.Index)
}

func TestTable_InPlaceReturnsRewrittenCopy(t *testing.T) {
	tbl := salesTable(t)
	got := runTable(t, "drop", tbl, map[string]any{"columns": []any{"units"}, "inplace": true})

	in, ok := got.(tabular.InPlace)
	require.True(t, ok, "got %T", got)
	require.NotNil(t, in.Table)
	assert.Equal(t, []string{"region", "sales"}, in.Table.Names())
	assert.Equal(t, []string{"region", "sales", "units"}, tbl.Names())
}

func TestTable_GroupbyAgg(t *testing.T) {
	got := runTable(t, "groupby_agg", salesTable(t), map[string]any{
		"by":  []any{"region"},
		"agg": map[string]any{"sales": "sum", "units": "max"},
	})

	out := got.(*tabular.Table)
	assert.Equal(t, []string{"east", "north", "south"}, out.Index)
	sales, _ := out.Column("sales")
	assert.Equal(t, []any{0.0, 40.0, 20.0}, sales.Values)
	units, _ := out.Column("units")
	assert.Equal(t, []any{4.0, 3.0, 2.0}, units.Values)
}

func TestTable_PivotTable(t *testing.T) {
	got := runTable(t, "pivot_table", salesTable(t), map[string]any{
		"index":   "region",
		"values":  "units",
		"aggfunc": "sum",
	})

	out := got.(*tabular.Table)
	col, ok := out.Column("units")
	require.True(t, ok)
	assert.Equal(t, []any{4.0, 4.0, 2.0}, col.Values)
}

func TestTable_MeanSkipsMissingAndText(t *testing.T) {
	got := runTable(t, "mean", salesTable(t), nil)

	s := got.(*tabular.Series)
	assert.Equal(t, []string{"sales", "units"}, s.Index)
	assert.Equal(t, []any{20.0, 2.5}, s.Values)
}

func TestTable_Describe(t *testing.T) {
	got := runTable(t, "describe", salesTable(t), nil)

	out := got.(*tabular.Table)
	assert.Equal(t, []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}, out.Index)
	assert.Equal(t, []string{"sales", "units"}, out.Names())
	sales, _ := out.Column("sales")
	assert.Equal(t, 3.0, sales.Values[0])
	assert.Equal(t, 20.0, sales.Values[1])
}

func TestTable_ValueCounts(t *testing.T) {
	got := runTable(t, "value_counts", salesTable(t), map[string]any{"subset": "region"})

	s := got.(*tabular.Series)
	assert.Equal(t, "count", s.Name)
	assert.Equal(t, []string{"north", "south", "east"}, s.Index)
	assert.Equal(t, []any{2.0, 1.0, 1.0}, s.Values)
}

func TestTable_SetAndResetIndex(t *testing.T) {
	tbl := salesTable(t)
	indexed := runTable(t, "set_index", tbl, map[string]any{"keys": "units"}).(*tabular.Table)
	assert.Equal(t, []string{"1", "2", "3", "4"}, indexed.Index)
	assert.Equal(t, []string{"region", "sales"}, indexed.Names())

	reset := runTable(t, "reset_index", indexed, nil).(*tabular.Table)
	assert.Equal(t, []string{"index", "region", "sales"}, reset.Names())
	col, _ := reset.Column("index")
	assert.Equal(t, []any{1.0, 2.0, 3.0, 4.0}, col.Values)
	assert.Equal(t, []string{"0", "1", "2", "3"}, reset.Index)
}

func TestTable_DropnaHow(t *testing.T) {
	tbl := salesTable(t)
	anyMissing := runTable(t, "dropna", tbl, nil).(*tabular.Table)
	assert.Equal(t, 3, anyMissing.NumRows())

	allMissing := runTable(t, "dropna", tbl, map[string]any{"how": "all"}).(*tabular.Table)
	assert.Equal(t, 4, allMissing.NumRows())
}

func TestTable_Errors(t *testing.T) {
	catalog := ops.NewCatalog()
	ctx := context.Background()

	tests := []struct {
		name string
		op   string
		args map[string]any
		is   error
	}{
		{"unknown column", "__getitem__", map[string]any{"key": "nope"}, tabular.ErrUnknownColumn},
		{"unknown argument", "head", map[string]any{"rows": 3}, nil},
		{"unknown operation", "summarize", nil, registry.ErrNotFound},
		{"bad expression", "query", map[string]any{"expr": "sales >"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Tables.Execute(ctx, tt.op, salesTable(t), tt.args)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestCatalog_DescribeListsBothTargets(t *testing.T) {
	text := ops.NewCatalog().Describe()
	assert.Contains(t, text, "Table operations:")
	assert.Contains(t, text, "groupby_agg")
	assert.Contains(t, text, "Series operations:")
	assert.Contains(t, text, "str.contains")
}
