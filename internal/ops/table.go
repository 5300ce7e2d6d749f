package ops

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/tabula/pkg/registry"
	"github.com/aretw0/tabula/pkg/tabular"
)

type rowsArgs struct {
	N *int `arg:"n"`
}

type getArgs struct {
	Key any `arg:"key"`
}

type filterArgs struct {
	Items []string `arg:"items"`
	Like  string   `arg:"like"`
	Regex string   `arg:"regex"`
}

type dropArgs struct {
	Columns []string `arg:"columns"`
	Inplace bool     `arg:"inplace"`
}

type renameArgs struct {
	Columns map[string]string `arg:"columns"`
	Inplace bool              `arg:"inplace"`
}

type sortArgs struct {
	By        []string `arg:"by"`
	Ascending *bool    `arg:"ascending"`
	Inplace   bool     `arg:"inplace"`
}

type exprArgs struct {
	Expr string `arg:"expr"`
}

type rankArgs struct {
	N       *int     `arg:"n"`
	Columns []string `arg:"columns"`
}

type dropnaArgs struct {
	Subset  []string `arg:"subset"`
	How     string   `arg:"how"`
	Inplace bool     `arg:"inplace"`
}

type fillnaArgs struct {
	Value   any  `arg:"value"`
	Inplace bool `arg:"inplace"`
}

type setIndexArgs struct {
	Keys    string `arg:"keys"`
	Drop    *bool  `arg:"drop"`
	Inplace bool   `arg:"inplace"`
}

type resetIndexArgs struct {
	Drop    bool `arg:"drop"`
	Inplace bool `arg:"inplace"`
}

var assignment = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*)$`)

func registerTableOps(r *registry.Registry[*tabular.Table]) {
	r.Register("head", "First n rows (default 5).", registry.Bind(func(ctx context.Context, t *tabular.Table, a rowsArgs) (any, error) {
		return t.Head(intOr(a.N, DefaultRows)), nil
	}))
	r.Register("tail", "Last n rows (default 5).", registry.Bind(func(ctx context.Context, t *tabular.Table, a rowsArgs) (any, error) {
		return t.Tail(intOr(a.N, DefaultRows)), nil
	}))
	r.Register("keys", "Column names.", registry.NoArgs(func(ctx context.Context, t *tabular.Table) (any, error) {
		return t.Names(), nil
	}))
	r.Register("shape", "Row and column counts.", registry.NoArgs(func(ctx context.Context, t *tabular.Table) (any, error) {
		rows, cols := t.Shape()
		return []int{rows, cols}, nil
	}))
	r.Register("info", "Column kinds and non-missing counts.", registry.NoArgs(func(ctx context.Context, t *tabular.Table) (any, error) {
		return info(t), nil
	}))
	r.Register("copy", "Copy of the table.", registry.NoArgs(func(ctx context.Context, t *tabular.Table) (any, error) {
		return t.Copy(), nil
	}))
	r.Register("__getitem__", "key: column name (series) or list of names (table).", registry.Bind(getItem))
	r.Alias("get", "__getitem__")
	r.Register("filter", "Keep columns by items, like (substring) or regex.", registry.Bind(filterColumns))
	r.Register("drop", "Remove columns. Supports inplace.", registry.Bind(func(ctx context.Context, t *tabular.Table, a dropArgs) (any, error) {
		out := t.Copy()
		if err := out.DropColumns(a.Columns...); err != nil {
			return nil, err
		}
		return tableResult(out, a.Inplace), nil
	}))
	r.Register("rename", "Rename columns with a {old: new} mapping. Supports inplace.", registry.Bind(renameColumns))
	r.Register("sort_values", "Sort rows by columns; ascending defaults to true. Supports inplace.", registry.Bind(func(ctx context.Context, t *tabular.Table, a sortArgs) (any, error) {
		out, err := sortTable(t, a.By, boolOr(a.Ascending, true))
		if err != nil {
			return nil, err
		}
		return tableResult(out, a.Inplace), nil
	}))
	r.Register("query", "Rows where a boolean expression over columns holds, e.g. \"price > 10 and region == 'north'\".", registry.Bind(query))
	r.Register("eval", "Evaluate an expression per row (series), or \"name = expr\" to add a column (table).", registry.Bind(eval))
	r.Register("nlargest", "n rows with the largest values in columns.", registry.Bind(func(ctx context.Context, t *tabular.Table, a rankArgs) (any, error) {
		return rank(t, a, false)
	}))
	r.Register("nsmallest", "n rows with the smallest values in columns.", registry.Bind(func(ctx context.Context, t *tabular.Table, a rankArgs) (any, error) {
		return rank(t, a, true)
	}))
	r.Register("dropna", "Drop rows with missing values (how: any|all, subset). Supports inplace.", registry.Bind(dropna))
	r.Register("fillna", "Replace missing values with value. Supports inplace.", registry.Bind(func(ctx context.Context, t *tabular.Table, a fillnaArgs) (any, error) {
		if a.Value == nil {
			return nil, errors.New("fillna needs a value")
		}
		out := t.Copy()
		for _, c := range out.Columns {
			if err := out.SetColumn(c.Name, fill(c.Values, a.Value)); err != nil {
				return nil, err
			}
		}
		return tableResult(out, a.Inplace), nil
	}))
	r.Register("set_index", "Use a column as row labels; drop defaults to true. Supports inplace.", registry.Bind(setIndex))
	r.Register("reset_index", "Move row labels into an index column and renumber. Supports inplace.", registry.Bind(resetIndex))
	r.Register("isna", "Table of booleans marking missing values.", registry.NoArgs(func(ctx context.Context, t *tabular.Table) (any, error) {
		out := &tabular.Table{Index: append([]string(nil), t.Index...)}
		for _, c := range t.Columns {
			out.Columns = append(out.Columns, tabular.NewColumn(c.Name, missingMask(c.Values)))
		}
		return out, nil
	}))
}

func getItem(ctx context.Context, t *tabular.Table, a getArgs) (any, error) {
	switch key := a.Key.(type) {
	case string:
		return t.Series(key)
	case []any:
		names := make([]string, len(key))
		for i, k := range key {
			names[i] = fmt.Sprint(k)
		}
		return t.Select(names...)
	case []string:
		return t.Select(key...)
	case nil:
		return nil, errors.New("__getitem__ needs a key")
	}
	return nil, fmt.Errorf("unsupported key %v of type %T", a.Key, a.Key)
}

func filterColumns(ctx context.Context, t *tabular.Table, a filterArgs) (any, error) {
	if len(a.Items) > 0 {
		var keep []string
		for _, name := range a.Items {
			if _, ok := t.Column(name); ok {
				keep = append(keep, name)
			}
		}
		return t.Select(keep...)
	}
	var re *regexp.Regexp
	if a.Regex != "" {
		var err error
		if re, err = regexp.Compile(a.Regex); err != nil {
			return nil, err
		}
	}
	if a.Like == "" && re == nil {
		return nil, errors.New("filter needs items, like or regex")
	}
	var keep []string
	for _, name := range t.Names() {
		if (a.Like != "" && strings.Contains(name, a.Like)) || (re != nil && re.MatchString(name)) {
			keep = append(keep, name)
		}
	}
	return t.Select(keep...)
}

func renameColumns(ctx context.Context, t *tabular.Table, a renameArgs) (any, error) {
	if len(a.Columns) == 0 {
		return nil, errors.New("rename needs a columns mapping")
	}
	out := t.Copy()
	seen := make(map[string]bool)
	for _, c := range out.Columns {
		if to, ok := a.Columns[c.Name]; ok {
			c.Name = to
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("rename produces duplicate column %q", c.Name)
		}
		seen[c.Name] = true
	}
	return tableResult(out, a.Inplace), nil
}

func query(ctx context.Context, t *tabular.Table, a exprArgs) (any, error) {
	e, err := CompileExpr(a.Expr)
	if err != nil {
		return nil, err
	}
	mask, err := e.Eval(ctx, t.NumRows(), t.Row)
	if err != nil {
		return nil, err
	}
	var keep []int
	for i, v := range mask {
		if tabular.Truthy(v) {
			keep = append(keep, i)
		}
	}
	return t.Rows(keep), nil
}

func eval(ctx context.Context, t *tabular.Table, a exprArgs) (any, error) {
	target := ""
	src := a.Expr
	if m := assignment.FindStringSubmatch(src); m != nil {
		target, src = m[1], m[2]
	}
	e, err := CompileExpr(src)
	if err != nil {
		return nil, err
	}
	values, err := e.Eval(ctx, t.NumRows(), t.Row)
	if err != nil {
		return nil, err
	}
	if target == "" {
		return tabular.NewSeries("", values, t.Index), nil
	}
	out := t.Copy()
	if err := out.SetColumn(target, values); err != nil {
		return nil, err
	}
	return out, nil
}

func sortTable(t *tabular.Table, by []string, ascending bool) (*tabular.Table, error) {
	if len(by) == 0 {
		return nil, errors.New("sort_values needs by")
	}
	keys := make([][]any, len(by))
	for i, name := range by {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, name)
		}
		keys[i] = c.Values
	}
	return t.Rows(sortPositions(t.NumRows(), keys, ascending)), nil
}

// sortPositions orders row positions by keys in turn. Missing values go last either way.
func sortPositions(n int, keys [][]any, ascending bool) []int {
	pos := make([]int, n)
	for i := range pos {
		pos[i] = i
	}
	sort.SliceStable(pos, func(i, j int) bool {
		for _, k := range keys {
			a, b := k[pos[i]], k[pos[j]]
			c := tabular.Compare(a, b)
			if !ascending && a != nil && b != nil {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return pos
}

func rank(t *tabular.Table, a rankArgs, ascending bool) (any, error) {
	if len(a.Columns) == 0 {
		return nil, errors.New("columns is required")
	}
	sorted, err := sortTable(t, a.Columns, ascending)
	if err != nil {
		return nil, err
	}
	return sorted.Head(intOr(a.N, DefaultRows)), nil
}

func dropna(ctx context.Context, t *tabular.Table, a dropnaArgs) (any, error) {
	cols := t.Columns
	if len(a.Subset) > 0 {
		cols = nil
		for _, name := range a.Subset {
			c, ok := t.Column(name)
			if !ok {
				return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, name)
			}
			cols = append(cols, c)
		}
	}
	all := false
	switch a.How {
	case "", "any":
	case "all":
		all = true
	default:
		return nil, fmt.Errorf("how must be any or all, got %q", a.How)
	}
	var keep []int
	for i := 0; i < t.NumRows(); i++ {
		missing := 0
		for _, c := range cols {
			if c.Values[i] == nil {
				missing++
			}
		}
		drop := missing > 0
		if all {
			drop = len(cols) > 0 && missing == len(cols)
		}
		if !drop {
			keep = append(keep, i)
		}
	}
	return tableResult(t.Rows(keep), a.Inplace), nil
}

func setIndex(ctx context.Context, t *tabular.Table, a setIndexArgs) (any, error) {
	c, ok := t.Column(a.Keys)
	if !ok {
		return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, a.Keys)
	}
	out := t.Copy()
	for i, v := range c.Values {
		out.Index[i] = tabular.FormatValue(v)
	}
	if boolOr(a.Drop, true) {
		if err := out.DropColumns(a.Keys); err != nil {
			return nil, err
		}
	}
	return tableResult(out, a.Inplace), nil
}

func resetIndex(ctx context.Context, t *tabular.Table, a resetIndexArgs) (any, error) {
	out := t.Copy()
	if !a.Drop {
		name := "index"
		if _, taken := out.Column(name); taken {
			name = "level_0"
		}
		labels := make([]any, len(out.Index))
		for i, l := range out.Index {
			if f, err := strconv.ParseFloat(l, 64); err == nil {
				labels[i] = f
			} else {
				labels[i] = l
			}
		}
		out.Columns = append([]*tabular.Column{tabular.NewColumn(name, labels)}, out.Columns...)
	}
	out.Index = tabular.DefaultIndex(out.NumRows())
	return tableResult(out, a.Inplace), nil
}

func info(t *tabular.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows, %d columns\n", t.NumRows(), t.NumCols())
	width := len("Column")
	for _, name := range t.Names() {
		width = max(width, len(name))
	}
	fmt.Fprintf(&b, "%-*s  %-9s  %s\n", width, "Column", "Non-Null", "Kind")
	for _, c := range t.Columns {
		present := 0
		for _, v := range c.Values {
			if v != nil {
				present++
			}
		}
		fmt.Fprintf(&b, "%-*s  %-9d  %s\n", width, c.Name, present, c.Kind)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func fill(values []any, with any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = with
		} else {
			out[i] = v
		}
	}
	return out
}

func missingMask(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v == nil
	}
	return out
}
