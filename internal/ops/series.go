package ops

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/tabula/pkg/registry"
	"github.com/aretw0/tabula/pkg/tabular"
)

type quantileArgs struct {
	Q *float64 `arg:"q"`
}

type seriesSortArgs struct {
	Ascending *bool `arg:"ascending"`
	Inplace   bool  `arg:"inplace"`
}

type seriesCountsArgs struct {
	Normalize bool `arg:"normalize"`
	Ascending bool `arg:"ascending"`
}

type roundArgs struct {
	Decimals int `arg:"decimals"`
}

type otherArgs struct {
	Other any `arg:"other"`
}

type astypeArgs struct {
	Dtype string `arg:"dtype"`
}

type seriesRenameArgs struct {
	Name    string `arg:"name"`
	Inplace bool   `arg:"inplace"`
}

type inplaceArgs struct {
	Inplace bool `arg:"inplace"`
}

type mapArgs struct {
	Expr string `arg:"expr"`
}

type containsArgs struct {
	Pat   string `arg:"pat"`
	Case  *bool  `arg:"case"`
	Regex *bool  `arg:"regex"`
}

func registerSeriesOps(r *registry.Registry[*tabular.Series]) {
	r.Register("head", "First n elements (default 5).", registry.Bind(func(ctx context.Context, s *tabular.Series, a rowsArgs) (any, error) {
		return s.Head(intOr(a.N, DefaultRows)), nil
	}))
	r.Register("tail", "Last n elements (default 5).", registry.Bind(func(ctx context.Context, s *tabular.Series, a rowsArgs) (any, error) {
		return s.Tail(intOr(a.N, DefaultRows)), nil
	}))
	r.Register("count", "Number of non-missing elements.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return float64(len(presentValues(s.Values))), nil
	}))
	for _, name := range []string{"sum", "mean", "median", "std", "var"} {
		reduce := reducers[name]
		r.Register(name, fmt.Sprintf("The %s of the elements.", name), registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
			xs, err := s.Numbers()
			if err != nil {
				return nil, err
			}
			return reduce(xs)
		}))
	}
	r.Register("min", "Smallest element.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return extreme(s, -1)
	}))
	r.Register("max", "Largest element.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return extreme(s, 1)
	}))
	r.Register("idxmin", "Label of the smallest element.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return extremeLabel(s, -1)
	}))
	r.Register("idxmax", "Label of the largest element.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return extremeLabel(s, 1)
	}))
	r.Register("quantile", "Value at quantile q (default 0.5).", registry.Bind(func(ctx context.Context, s *tabular.Series, a quantileArgs) (any, error) {
		xs, err := s.Numbers()
		if err != nil {
			return nil, err
		}
		q := 0.5
		if a.Q != nil {
			q = *a.Q
		}
		return quantile(xs, q)
	}))
	r.Register("unique", "Distinct values in order of appearance.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		seen := make(map[string]bool)
		out := []any{}
		for _, v := range s.Values {
			key := tabular.FormatValue(v)
			if !seen[key] {
				seen[key] = true
				out = append(out, v)
			}
		}
		return out, nil
	}))
	r.Register("nunique", "Number of distinct non-missing values.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return float64(len(countValues(s.Values))), nil
	}))
	r.Register("value_counts", "Frequency of each value, most frequent first.", registry.Bind(func(ctx context.Context, s *tabular.Series, a seriesCountsArgs) (any, error) {
		out := valueCounts(s.Values, a.Normalize, a.Ascending)
		if s.Name != "" {
			out.Name = s.Name
		}
		return out, nil
	}))
	r.Register("sort_values", "Sort elements; ascending defaults to true. Supports inplace.", registry.Bind(func(ctx context.Context, s *tabular.Series, a seriesSortArgs) (any, error) {
		pos := sortPositions(s.Len(), [][]any{s.Values}, boolOr(a.Ascending, true))
		return seriesResult(s.Subset(pos), a.Inplace), nil
	}))
	r.Register("abs", "Absolute values.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return mapNumbers(s, math.Abs)
	}))
	r.Register("round", "Round to decimals (default 0).", registry.Bind(func(ctx context.Context, s *tabular.Series, a roundArgs) (any, error) {
		scale := math.Pow(10, float64(a.Decimals))
		return mapNumbers(s, func(x float64) float64 { return math.Round(x*scale) / scale })
	}))
	r.Register("cumsum", "Running total; missing elements stay missing.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		var total float64
		return mapNumbers(s, func(x float64) float64 {
			total += x
			return total
		})
	}))
	for name, op := range arithmetic {
		r.Register(name, fmt.Sprintf("Element-wise %s with a number or a list of numbers.", name), registry.Bind(func(ctx context.Context, s *tabular.Series, a otherArgs) (any, error) {
			return combine(s, a.Other, op)
		}))
	}
	r.Register("astype", "Convert elements to dtype: float, int, str or bool.", registry.Bind(astype))
	r.Register("rename", "Set the series name. Supports inplace.", registry.Bind(func(ctx context.Context, s *tabular.Series, a seriesRenameArgs) (any, error) {
		out := s.Copy()
		out.Name = a.Name
		return seriesResult(out, a.Inplace), nil
	}))
	r.Register("fillna", "Replace missing elements with value. Supports inplace.", registry.Bind(func(ctx context.Context, s *tabular.Series, a fillnaArgs) (any, error) {
		if a.Value == nil {
			return nil, errors.New("fillna needs a value")
		}
		return seriesResult(tabular.NewSeries(s.Name, fill(s.Values, a.Value), s.Index), a.Inplace), nil
	}))
	r.Register("dropna", "Remove missing elements. Supports inplace.", registry.Bind(func(ctx context.Context, s *tabular.Series, a inplaceArgs) (any, error) {
		var keep []int
		for i, v := range s.Values {
			if v != nil {
				keep = append(keep, i)
			}
		}
		return seriesResult(s.Subset(keep), a.Inplace), nil
	}))
	r.Register("isna", "Booleans marking missing elements.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return tabular.NewSeries(s.Name, missingMask(s.Values), s.Index), nil
	}))
	r.Register("map", "Evaluate an expression over each element bound as x, e.g. \"x * 2\".", registry.Bind(func(ctx context.Context, s *tabular.Series, a mapArgs) (any, error) {
		e, err := CompileExpr(a.Expr)
		if err != nil {
			return nil, err
		}
		values, err := e.Eval(ctx, s.Len(), func(i int) map[string]any {
			return map[string]any{"x": s.Values[i]}
		})
		if err != nil {
			return nil, err
		}
		return tabular.NewSeries(s.Name, values, s.Index), nil
	}))
	r.Register("tolist", "Elements as a list.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return append([]any{}, s.Values...), nil
	}))
	r.Register("describe", "Summary statistics.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		var labels []string
		var values []any
		if s.Kind == tabular.KindNumber {
			labels, values = describeNumbers(numbers(s.Values))
		} else {
			labels, values = describeValues(s.Values)
		}
		return tabular.NewSeries(s.Name, values, labels), nil
	}))
	r.Register("str.upper", "Upper-case text elements.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return mapStrings(s, func(v string) any { return strings.ToUpper(v) })
	}))
	r.Register("str.lower", "Lower-case text elements.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return mapStrings(s, func(v string) any { return strings.ToLower(v) })
	}))
	r.Register("str.len", "Length of text elements.", registry.NoArgs(func(ctx context.Context, s *tabular.Series) (any, error) {
		return mapStrings(s, func(v string) any { return float64(utf8.RuneCountInString(v)) })
	}))
	r.Register("str.contains", "Whether text elements contain pat (regex by default).", registry.Bind(contains))
}

var arithmetic = map[string]func(a, b float64) float64{
	"add": func(a, b float64) float64 { return a + b },
	"sub": func(a, b float64) float64 { return a - b },
	"mul": func(a, b float64) float64 { return a * b },
	"div": func(a, b float64) float64 { return a / b },
}

// combine applies op element-wise against a scalar or a same-length list.
func combine(s *tabular.Series, other any, op func(a, b float64) float64) (any, error) {
	if s.Kind != tabular.KindNumber {
		return nil, fmt.Errorf("series %q has kind %s, not number", s.Name, s.Kind)
	}
	operand := func(int) (any, error) { return nil, nil }
	switch o := other.(type) {
	case []any:
		if len(o) != s.Len() {
			return nil, fmt.Errorf("other has %d values, series has %d", len(o), s.Len())
		}
		operand = func(i int) (any, error) { return tabular.Normalize(o[i]), nil }
	case nil:
		return nil, errors.New("other is required")
	default:
		v := tabular.Normalize(o)
		if str, ok := v.(string); ok {
			f, err := strconv.ParseFloat(str, 64)
			if err != nil {
				return nil, fmt.Errorf("other %q is not a number", str)
			}
			v = f
		}
		operand = func(int) (any, error) { return v, nil }
	}
	out := make([]any, s.Len())
	for i, v := range s.Values {
		b, err := operand(i)
		if err != nil {
			return nil, err
		}
		x, okx := v.(float64)
		y, oky := b.(float64)
		if okx && oky {
			out[i] = op(x, y)
		}
	}
	return tabular.NewSeries(s.Name, out, s.Index), nil
}

func mapNumbers(s *tabular.Series, fn func(float64) float64) (any, error) {
	if s.Kind != tabular.KindNumber {
		return nil, fmt.Errorf("series %q has kind %s, not number", s.Name, s.Kind)
	}
	out := make([]any, s.Len())
	for i, v := range s.Values {
		if f, ok := v.(float64); ok {
			out[i] = fn(f)
		}
	}
	return tabular.NewSeries(s.Name, out, s.Index), nil
}

func mapStrings(s *tabular.Series, fn func(string) any) (any, error) {
	if s.Kind != tabular.KindString {
		return nil, fmt.Errorf("str accessor needs text elements, series %q has kind %s", s.Name, s.Kind)
	}
	out := make([]any, s.Len())
	for i, v := range s.Values {
		if str, ok := v.(string); ok {
			out[i] = fn(str)
		}
	}
	return tabular.NewSeries(s.Name, out, s.Index), nil
}

func contains(ctx context.Context, s *tabular.Series, a containsArgs) (any, error) {
	if a.Pat == "" {
		return nil, errors.New("str.contains needs pat")
	}
	pat := a.Pat
	if !boolOr(a.Regex, true) {
		pat = regexp.QuoteMeta(pat)
	}
	if !boolOr(a.Case, true) {
		pat = "(?i)" + pat
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, err
	}
	return mapStrings(s, func(v string) any { return re.MatchString(v) })
}

// extremePos returns the position of the smallest (dir -1) or largest (dir 1) element.
func extremePos(s *tabular.Series, dir int) (int, error) {
	best := -1
	for i, v := range s.Values {
		if v == nil {
			continue
		}
		if best < 0 || tabular.Compare(v, s.Values[best])*dir > 0 {
			best = i
		}
	}
	if best < 0 {
		return 0, errNoValues
	}
	return best, nil
}

func extreme(s *tabular.Series, dir int) (any, error) {
	i, err := extremePos(s, dir)
	if err != nil {
		return nil, err
	}
	return s.Values[i], nil
}

func extremeLabel(s *tabular.Series, dir int) (any, error) {
	i, err := extremePos(s, dir)
	if err != nil {
		return nil, err
	}
	return s.Index[i], nil
}

func astype(ctx context.Context, s *tabular.Series, a astypeArgs) (any, error) {
	var conv func(v any) (any, error)
	switch a.Dtype {
	case "float", "float64", "number":
		conv = toNumber
	case "int", "int64":
		conv = func(v any) (any, error) {
			f, err := toNumber(v)
			if err != nil || f == nil {
				return f, err
			}
			return math.Trunc(f.(float64)), nil
		}
	case "str", "string", "object":
		conv = func(v any) (any, error) { return tabular.FormatValue(v), nil }
	case "bool":
		conv = func(v any) (any, error) { return tabular.Truthy(v), nil }
	default:
		return nil, fmt.Errorf("unsupported dtype %q (use float, int, str or bool)", a.Dtype)
	}
	out := make([]any, s.Len())
	for i, v := range s.Values {
		if v == nil {
			continue
		}
		c, err := conv(v)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", s.Index[i], err)
		}
		out[i] = c
	}
	return tabular.NewSeries(s.Name, out, s.Index), nil
}

func toNumber(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to a number", x)
		}
		return f, nil
	}
	return nil, nil
}
