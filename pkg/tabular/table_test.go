package tabular_test

import (
	"testing"

	"github.com/aretw0/tabula/pkg/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable_Validation(t *testing.T) {
	_, err := tabular.NewTable(
		tabular.NewColumn("a", []any{1, 2}),
		tabular.NewColumn("b", []any{1}),
	)
	assert.Error(t, err)

	_, err = tabular.NewTable(
		tabular.NewColumn("a", []any{1}),
		tabular.NewColumn("a", []any{2}),
	)
	assert.Error(t, err)
}

func TestNewColumn_Homogenizes(t *testing.T) {
	col := tabular.NewColumn("mixed", []any{1, "two", nil})
	assert.Equal(t, tabular.KindString, col.Kind)
	assert.Equal(t, []any{"1", "two", nil}, col.Values)

	nums := tabular.NewColumn("n", []any{int64(3), float32(1.5)})
	assert.Equal(t, tabular.KindNumber, nums.Kind)
	assert.Equal(t, []any{3.0, 1.5}, nums.Values)
}

func TestTable_SetSeriesAlignsByLabel(t *testing.T) {
	tbl := sampleTable(t)

	// Labels "2" and "0" in reverse order, "1" absent.
	s := &tabular.Series{Name: "c", Kind: tabular.KindNumber, Values: []any{30.0, 10.0}, Index: []string{"2", "0"}}
	require.NoError(t, tbl.SetSeries("c", s))

	col, ok := tbl.Column("c")
	require.True(t, ok)
	assert.Equal(t, []any{10.0, nil, 30.0}, col.Values)
}

func TestTable_RowsKeepLabels(t *testing.T) {
	tbl := sampleTable(t)
	sub := tbl.Rows([]int{2, 0})
	assert.Equal(t, []string{"2", "0"}, sub.Index)

	s, err := sub.Series("a")
	require.NoError(t, err)
	assert.Equal(t, []any{3.0, 1.0}, s.Values)

	// Assigning the subset back to the full table fills the missing label.
	require.NoError(t, tbl.SetSeries("a2", s))
	col, _ := tbl.Column("a2")
	assert.Equal(t, []any{1.0, nil, 3.0}, col.Values)
}

func TestTable_DropAndSelect(t *testing.T) {
	tbl := sampleTable(t)
	assert.ErrorIs(t, tbl.DropColumns("zzz"), tabular.ErrUnknownColumn)

	require.NoError(t, tbl.DropColumns("a"))
	assert.Equal(t, []string{"b"}, tbl.Names())

	_, err := tbl.Select("a")
	assert.ErrorIs(t, err, tabular.ErrUnknownColumn)
}

func TestTable_Preview(t *testing.T) {
	cols := make([]any, 20)
	for i := range cols {
		cols[i] = i
	}
	tbl, err := tabular.NewTable(tabular.NewColumn("n", cols))
	require.NoError(t, err)

	out := tbl.Preview(4)
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "19")
	assert.NotContains(t, out, " 10\n")
	assert.Contains(t, out, "[20 rows x 1 columns]")
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		3:         "3",
		2.5:       "2.5",
		0.1 + 0.2: "0.3",
		-7:        "-7",
		1234567:   "1234567",
	}
	for in, want := range tests {
		assert.Equal(t, want, tabular.FormatNumber(in))
	}
}

func TestSeries_Preview(t *testing.T) {
	s := tabular.NewSeries("total", []any{5, 7, nil}, nil)
	out := s.String()
	assert.Contains(t, out, "0    5")
	assert.Contains(t, out, "2    NaN")
	assert.Contains(t, out, "Name: total, Length: 3, kind: number")
}
