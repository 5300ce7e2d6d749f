package tabular

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownColumn is returned when a column name does not exist in a table.
var ErrUnknownColumn = errors.New("unknown column")

// Column is a named, homogeneous array of values.
type Column struct {
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Values []any  `json:"values"`
}

// NewColumn builds a column, normalizing its values.
func NewColumn(name string, values []any) *Column {
	vals, kind := homogenize(values)
	return &Column{Name: name, Kind: kind, Values: vals}
}

// Table is an ordered set of named columns sharing one row-label axis.
type Table struct {
	Columns []*Column `json:"columns"`
	Index   []string  `json:"index"`
}

// NewTable builds a table with default row labels. Columns must share a length
// and carry distinct names.
func NewTable(columns ...*Column) (*Table, error) {
	rows := 0
	if len(columns) > 0 {
		rows = len(columns[0].Values)
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if len(c.Values) != rows {
			return nil, fmt.Errorf("column %q has %d values, expected %d", c.Name, len(c.Values), rows)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
	}
	return &Table{Columns: columns, Index: DefaultIndex(rows)}, nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.Index) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Columns) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Series returns a copy of the named column as a series carrying the table's labels.
func (t *Table) Series(name string) (*Series, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (columns: %s)", ErrUnknownColumn, name, strings.Join(t.Names(), ", "))
	}
	return &Series{Name: c.Name, Kind: c.Kind, Values: copyValues(c.Values), Index: copyLabels(t.Index)}, nil
}

// SetColumn creates or overwrites a column positionally.
func (t *Table) SetColumn(name string, values []any) error {
	if len(values) != t.NumRows() {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.NumRows())
	}
	col := NewColumn(name, values)
	for i, c := range t.Columns {
		if c.Name == name {
			t.Columns[i] = col
			return nil
		}
	}
	t.Columns = append(t.Columns, col)
	return nil
}

// SetSeries creates or overwrites the column name with the series' values aligned
// to the table's row labels.
func (t *Table) SetSeries(name string, s *Series) error {
	return t.SetColumn(name, s.Align(t.Index))
}

// DropColumns removes the named columns. Every name must exist.
func (t *Table) DropColumns(names ...string) error {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := t.Column(n); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, n)
		}
		drop[n] = true
	}
	kept := t.Columns[:0:0]
	for _, c := range t.Columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	t.Columns = kept
	return nil
}

// Select returns a new table with the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{Index: copyLabels(t.Index)}
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, n)
		}
		out.Columns = append(out.Columns, &Column{Name: c.Name, Kind: c.Kind, Values: copyValues(c.Values)})
	}
	return out, nil
}

// Rows returns a new table keeping the given row positions and their labels.
func (t *Table) Rows(positions []int) *Table {
	out := &Table{Index: make([]string, len(positions))}
	for i, p := range positions {
		out.Index[i] = t.Index[p]
	}
	for _, c := range t.Columns {
		vals := make([]any, len(positions))
		for i, p := range positions {
			vals[i] = c.Values[p]
		}
		out.Columns = append(out.Columns, &Column{Name: c.Name, Kind: c.Kind, Values: vals})
	}
	return out
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	return t.Rows(span(0, clamp(n, t.NumRows())))
}

// Tail returns the last n rows.
func (t *Table) Tail(n int) *Table {
	n = clamp(n, t.NumRows())
	return t.Rows(span(t.NumRows()-n, t.NumRows()))
}

// Copy returns a deep copy.
func (t *Table) Copy() *Table {
	return t.Rows(span(0, t.NumRows()))
}

// Row returns the values of row i keyed by column name.
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.Columns))
	for _, c := range t.Columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) { return t.NumRows(), t.NumCols() }

// String renders up to ten rows followed by the shape footer.
func (t *Table) String() string {
	return t.Preview(10)
}

// Preview renders at most n rows as an aligned grid, eliding the middle when longer.
func (t *Table) Preview(n int) string {
	positions := previewPositions(t.NumRows(), n)
	cells := make([][]string, 0, len(positions)+1)

	header := make([]string, 0, t.NumCols()+1)
	header = append(header, "")
	header = append(header, t.Names()...)
	cells = append(cells, header)

	for _, p := range positions {
		line := make([]string, 0, t.NumCols()+1)
		if p < 0 {
			for range header {
				line = append(line, "...")
			}
			cells = append(cells, line)
			continue
		}
		line = append(line, t.Index[p])
		for _, c := range t.Columns {
			line = append(line, FormatValue(c.Values[p]))
		}
		cells = append(cells, line)
	}

	widths := make([]int, len(header))
	for _, line := range cells {
		for i, cell := range line {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for _, line := range cells {
		for i, cell := range line {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == 0 {
				fmt.Fprintf(&b, "%-*s", widths[i], cell)
			} else {
				fmt.Fprintf(&b, "%*s", widths[i], cell)
			}
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "[%d rows x %d columns]", t.NumRows(), t.NumCols())
	return b.String()
}
