package ops

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/tabula/pkg/registry"
	"github.com/aretw0/tabula/pkg/tabular"
)

type valueCountsArgs struct {
	Subset    []string `arg:"subset"`
	Normalize bool     `arg:"normalize"`
	Ascending bool     `arg:"ascending"`
}

type pivotArgs struct {
	Index   string `arg:"index"`
	Columns string `arg:"columns"`
	Values  string `arg:"values"`
	AggFunc string `arg:"aggfunc"`
}

type groupbyArgs struct {
	By      []string          `arg:"by"`
	Agg     map[string]string `arg:"agg"`
	AggFunc string            `arg:"aggfunc"`
}

func registerTableAggregates(r *registry.Registry[*tabular.Table]) {
	r.Register("describe", "Summary statistics per column.", registry.NoArgs(describeTable))
	r.Register("count", "Non-missing values per column.", registry.NoArgs(func(ctx context.Context, t *tabular.Table) (any, error) {
		values := make([]any, t.NumCols())
		for i, c := range t.Columns {
			values[i] = float64(len(presentValues(c.Values)))
		}
		return tabular.NewSeries("", values, t.Names()), nil
	}))
	r.Register("nunique", "Distinct non-missing values per column.", registry.NoArgs(func(ctx context.Context, t *tabular.Table) (any, error) {
		values := make([]any, t.NumCols())
		for i, c := range t.Columns {
			values[i] = float64(len(countValues(c.Values)))
		}
		return tabular.NewSeries("", values, t.Names()), nil
	}))
	for _, name := range []string{"sum", "mean", "median", "std", "min", "max"} {
		reduce := reducers[name]
		r.Register(name, fmt.Sprintf("Column-wise %s of the numeric columns.", name), registry.NoArgs(func(ctx context.Context, t *tabular.Table) (any, error) {
			return reduceColumns(t, reduce)
		}))
	}
	r.Register("value_counts", "Frequency of each distinct row over subset (default all columns).", registry.Bind(tableValueCounts))
	r.Register("pivot_table", "Aggregate values by index (and optional columns); aggfunc defaults to mean.", registry.Bind(pivotTable))
	r.Register("groupby_agg", "Group rows by columns and aggregate, e.g. {by: [region], agg: {sales: sum}}.", registry.Bind(groupbyAgg))
	r.Register("corr", "Pairwise correlation of the numeric columns.", registry.NoArgs(func(ctx context.Context, t *tabular.Table) (any, error) {
		cols := numericColumns(t)
		if len(cols) == 0 {
			return nil, errors.New("table has no numeric columns")
		}
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		out := &tabular.Table{Index: names}
		for _, a := range cols {
			values := make([]any, len(cols))
			for i, b := range cols {
				values[i] = pearson(b.Values, a.Values)
			}
			out.Columns = append(out.Columns, tabular.NewColumn(a.Name, values))
		}
		return out, nil
	}))
}

func describeTable(ctx context.Context, t *tabular.Table) (any, error) {
	cols := numericColumns(t)
	numeric := len(cols) > 0
	if !numeric {
		cols = t.Columns
	}
	if len(cols) == 0 {
		return nil, errors.New("table has no columns")
	}
	out := &tabular.Table{}
	for _, c := range cols {
		var labels []string
		var values []any
		if numeric {
			labels, values = describeNumbers(numbers(c.Values))
		} else {
			labels, values = describeValues(c.Values)
		}
		out.Index = labels
		out.Columns = append(out.Columns, tabular.NewColumn(c.Name, values))
	}
	return out, nil
}

func reduceColumns(t *tabular.Table, reduce reducer) (any, error) {
	cols := numericColumns(t)
	if len(cols) == 0 {
		return nil, errors.New("table has no numeric columns")
	}
	names := make([]string, len(cols))
	values := make([]any, len(cols))
	for i, c := range cols {
		v, err := reduce(numbers(c.Values))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		names[i], values[i] = c.Name, v
	}
	return tabular.NewSeries("", values, names), nil
}

func tableValueCounts(ctx context.Context, t *tabular.Table, a valueCountsArgs) (any, error) {
	names := a.Subset
	if len(names) == 0 {
		names = t.Names()
	}
	sub, err := t.Select(names...)
	if err != nil {
		return nil, err
	}
	keys := make([]any, sub.NumRows())
	for i := range keys {
		parts := make([]string, len(sub.Columns))
		for j, c := range sub.Columns {
			if c.Values[i] == nil {
				parts = nil
				break
			}
			parts[j] = tabular.FormatValue(c.Values[i])
		}
		if parts != nil {
			keys[i] = strings.Join(parts, ", ")
		}
	}
	return valueCounts(keys, a.Normalize, a.Ascending), nil
}

// valueCounts builds the frequency series for keys, missing keys excluded.
func valueCounts(keys []any, normalize, ascending bool) *tabular.Series {
	counts := countValues(keys)
	if ascending {
		sort.SliceStable(counts, func(i, j int) bool { return counts[i].n < counts[j].n })
	}
	total := 0
	for _, c := range counts {
		total += c.n
	}
	labels := make([]string, len(counts))
	values := make([]any, len(counts))
	for i, c := range counts {
		labels[i] = tabular.FormatValue(c.value)
		if normalize {
			values[i] = float64(c.n) / float64(total)
		} else {
			values[i] = float64(c.n)
		}
	}
	name := "count"
	if normalize {
		name = "proportion"
	}
	return tabular.NewSeries(name, values, labels)
}

// group is one distinct key and the row positions that carry it.
type group struct {
	key  string
	rows []int
}

func (g group) first() int { return g.rows[0] }

// groupRows partitions rows by the formatted values of cols, sorted by key.
// Rows with a missing key are skipped.
func groupRows(n int, cols []*tabular.Column) []group {
	order := make(map[string]int)
	var out []group
	for i := 0; i < n; i++ {
		parts := make([]string, len(cols))
		skip := false
		for j, c := range cols {
			if c.Values[i] == nil {
				skip = true
				break
			}
			parts[j] = tabular.FormatValue(c.Values[i])
		}
		if skip {
			continue
		}
		key := strings.Join(parts, ", ")
		if g, ok := order[key]; ok {
			out[g].rows = append(out[g].rows, i)
			continue
		}
		order[key] = len(out)
		out = append(out, group{key: key, rows: []int{i}})
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, c := range cols {
			if d := tabular.Compare(c.Values[out[i].first()], c.Values[out[j].first()]); d != 0 {
				return d < 0
			}
		}
		return false
	})
	return out
}

func lookupReducer(name string) (reducer, error) {
	if name == "" {
		name = "mean"
	}
	r, ok := reducers[name]
	if !ok {
		known := make([]string, 0, len(reducers))
		for k := range reducers {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown aggregation %q (available: %s)", name, strings.Join(known, ", "))
	}
	return r, nil
}

func aggregate(values []any, rows []int, reduce reducer) (any, error) {
	picked := make([]any, len(rows))
	for i, r := range rows {
		picked[i] = values[r]
	}
	return reduce(numbers(picked))
}

func groupbyAgg(ctx context.Context, t *tabular.Table, a groupbyArgs) (any, error) {
	if len(a.By) == 0 {
		return nil, errors.New("groupby_agg needs by")
	}
	keyCols := make([]*tabular.Column, len(a.By))
	isKey := make(map[string]bool)
	for i, name := range a.By {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, name)
		}
		keyCols[i] = c
		isKey[name] = true
	}

	type target struct {
		col    *tabular.Column
		reduce reducer
	}
	var targets []target
	if len(a.Agg) > 0 {
		names := make([]string, 0, len(a.Agg))
		for name := range a.Agg {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c, ok := t.Column(name)
			if !ok {
				return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, name)
			}
			r, err := lookupReducer(a.Agg[name])
			if err != nil {
				return nil, err
			}
			targets = append(targets, target{c, r})
		}
	} else {
		r, err := lookupReducer(a.AggFunc)
		if err != nil {
			return nil, err
		}
		for _, c := range numericColumns(t) {
			if !isKey[c.Name] {
				targets = append(targets, target{c, r})
			}
		}
	}
	if len(targets) == 0 {
		return nil, errors.New("nothing to aggregate")
	}

	groups := groupRows(t.NumRows(), keyCols)
	out := &tabular.Table{Index: make([]string, len(groups))}
	for i, g := range groups {
		out.Index[i] = g.key
	}
	for _, tg := range targets {
		values := make([]any, len(groups))
		for i, g := range groups {
			v, err := aggregate(tg.col.Values, g.rows, tg.reduce)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		out.Columns = append(out.Columns, tabular.NewColumn(tg.col.Name, values))
	}
	return out, nil
}

func pivotTable(ctx context.Context, t *tabular.Table, a pivotArgs) (any, error) {
	if a.Index == "" || a.Values == "" {
		return nil, errors.New("pivot_table needs index and values")
	}
	reduce, err := lookupReducer(a.AggFunc)
	if err != nil {
		return nil, err
	}
	idx, ok := t.Column(a.Index)
	if !ok {
		return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, a.Index)
	}
	vals, ok := t.Column(a.Values)
	if !ok {
		return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, a.Values)
	}

	rowGroups := groupRows(t.NumRows(), []*tabular.Column{idx})
	out := &tabular.Table{Index: make([]string, len(rowGroups))}
	for i, g := range rowGroups {
		out.Index[i] = g.key
	}

	if a.Columns == "" {
		values := make([]any, len(rowGroups))
		for i, g := range rowGroups {
			if values[i], err = aggregate(vals.Values, g.rows, reduce); err != nil {
				return nil, err
			}
		}
		out.Columns = append(out.Columns, tabular.NewColumn(a.Values, values))
		return out, nil
	}

	col, ok := t.Column(a.Columns)
	if !ok {
		return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, a.Columns)
	}
	for _, cg := range groupRows(t.NumRows(), []*tabular.Column{col}) {
		inCol := make(map[int]bool, len(cg.rows))
		for _, r := range cg.rows {
			inCol[r] = true
		}
		values := make([]any, len(rowGroups))
		for i, rg := range rowGroups {
			var cell []int
			for _, r := range rg.rows {
				if inCol[r] {
					cell = append(cell, r)
				}
			}
			if len(cell) == 0 {
				continue
			}
			if values[i], err = aggregate(vals.Values, cell, reduce); err != nil {
				return nil, err
			}
		}
		out.Columns = append(out.Columns, tabular.NewColumn(cg.key, values))
	}
	return out, nil
}

func numericColumns(t *tabular.Table) []*tabular.Column {
	var out []*tabular.Column
	for _, c := range t.Columns {
		if c.Kind == tabular.KindNumber && len(presentValues(c.Values)) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func presentValues(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}
