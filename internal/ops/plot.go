package ops

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/tabula/internal/chart"
	"github.com/aretw0/tabula/pkg/registry"
	"github.com/aretw0/tabula/pkg/tabular"
)

type plotArgs struct {
	X     string   `arg:"x"`
	Y     []string `arg:"y"`
	Title string   `arg:"title"`
}

type scatterArgs struct {
	X     string `arg:"x"`
	Y     string `arg:"y"`
	Title string `arg:"title"`
}

type histArgs struct {
	Column string `arg:"column"`
	Bins   int    `arg:"bins"`
	Title  string `arg:"title"`
}

type seriesPlotArgs struct {
	Title string `arg:"title"`
}

type seriesHistArgs struct {
	Bins  int    `arg:"bins"`
	Title string `arg:"title"`
}

func registerTablePlots(r *registry.Registry[*tabular.Table]) {
	r.Register("plot.bar", "Bar chart of y columns (default all numeric) over x labels (default row labels).", registry.Bind(func(ctx context.Context, t *tabular.Table, a plotArgs) (any, error) {
		labels, err := axisLabels(t, a.X)
		if err != nil {
			return nil, err
		}
		sets, err := datasets(t, a.Y, a.X)
		if err != nil {
			return nil, err
		}
		return nil, chart.Bar(ctx, a.Title, labels, sets)
	}))
	r.Register("plot.line", "Line chart of y columns against x (default row position).", registry.Bind(func(ctx context.Context, t *tabular.Table, a plotArgs) (any, error) {
		var xs []float64
		if a.X != "" {
			c, ok := t.Column(a.X)
			if !ok {
				return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, a.X)
			}
			if c.Kind != tabular.KindNumber {
				return nil, fmt.Errorf("x column %q must be numeric for a line chart", a.X)
			}
			xs = zeroFilled(c.Values)
		}
		sets, err := datasets(t, a.Y, a.X)
		if err != nil {
			return nil, err
		}
		return nil, chart.Line(ctx, a.Title, a.X, xs, sets)
	}))
	r.Register("plot.scatter", "Scatter chart of column y against column x.", registry.Bind(func(ctx context.Context, t *tabular.Table, a scatterArgs) (any, error) {
		if a.X == "" || a.Y == "" {
			return nil, errors.New("plot.scatter needs x and y")
		}
		xc, ok := t.Column(a.X)
		if !ok {
			return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, a.X)
		}
		yc, ok := t.Column(a.Y)
		if !ok {
			return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, a.Y)
		}
		var xs, ys []float64
		for i := range xc.Values {
			x, okx := xc.Values[i].(float64)
			y, oky := yc.Values[i].(float64)
			if okx && oky {
				xs = append(xs, x)
				ys = append(ys, y)
			}
		}
		if len(xs) == 0 {
			return nil, errors.New("no rows with numeric x and y")
		}
		return nil, chart.Scatter(ctx, a.Title, a.X, a.Y, xs, ys)
	}))
	r.Register("plot.hist", "Histogram of a numeric column (default the first).", registry.Bind(func(ctx context.Context, t *tabular.Table, a histArgs) (any, error) {
		name := a.Column
		if name == "" {
			cols := numericColumns(t)
			if len(cols) == 0 {
				return nil, errors.New("table has no numeric columns")
			}
			name = cols[0].Name
		}
		s, err := t.Series(name)
		if err != nil {
			return nil, err
		}
		xs, err := s.Numbers()
		if err != nil {
			return nil, err
		}
		return nil, chart.Hist(ctx, titleOr(a.Title, name), xs, a.Bins)
	}))
}

func registerSeriesPlots(r *registry.Registry[*tabular.Series]) {
	r.Register("plot.bar", "Bar chart of the elements over their labels.", registry.Bind(func(ctx context.Context, s *tabular.Series, a seriesPlotArgs) (any, error) {
		if s.Kind != tabular.KindNumber {
			return nil, fmt.Errorf("series %q has kind %s, not number", s.Name, s.Kind)
		}
		set := chart.Dataset{Name: s.Name, Values: zeroFilled(s.Values)}
		return nil, chart.Bar(ctx, titleOr(a.Title, s.Name), s.Index, []chart.Dataset{set})
	}))
	r.Register("plot.line", "Line chart of the elements by position.", registry.Bind(func(ctx context.Context, s *tabular.Series, a seriesPlotArgs) (any, error) {
		if s.Kind != tabular.KindNumber {
			return nil, fmt.Errorf("series %q has kind %s, not number", s.Name, s.Kind)
		}
		set := chart.Dataset{Name: s.Name, Values: zeroFilled(s.Values)}
		return nil, chart.Line(ctx, titleOr(a.Title, s.Name), "", nil, []chart.Dataset{set})
	}))
	r.Register("plot.hist", "Histogram of the elements.", registry.Bind(func(ctx context.Context, s *tabular.Series, a seriesHistArgs) (any, error) {
		xs, err := s.Numbers()
		if err != nil {
			return nil, err
		}
		return nil, chart.Hist(ctx, titleOr(a.Title, s.Name), xs, a.Bins)
	}))
}

func axisLabels(t *tabular.Table, x string) ([]string, error) {
	if x == "" {
		return t.Index, nil
	}
	c, ok := t.Column(x)
	if !ok {
		return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, x)
	}
	labels := make([]string, len(c.Values))
	for i, v := range c.Values {
		labels[i] = tabular.FormatValue(v)
	}
	return labels, nil
}

// datasets collects the y columns, defaulting to every numeric column except x.
func datasets(t *tabular.Table, y []string, x string) ([]chart.Dataset, error) {
	var cols []*tabular.Column
	if len(y) == 0 {
		for _, c := range numericColumns(t) {
			if c.Name != x {
				cols = append(cols, c)
			}
		}
	} else {
		for _, name := range y {
			c, ok := t.Column(name)
			if !ok {
				return nil, fmt.Errorf("%w: %q", tabular.ErrUnknownColumn, name)
			}
			if c.Kind != tabular.KindNumber {
				return nil, fmt.Errorf("column %q has kind %s, not number", name, c.Kind)
			}
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil, errors.New("no numeric columns to plot")
	}
	out := make([]chart.Dataset, len(cols))
	for i, c := range cols {
		out[i] = chart.Dataset{Name: c.Name, Values: zeroFilled(c.Values)}
	}
	return out, nil
}

// zeroFilled returns the values as numbers, drawing missing ones at zero.
func zeroFilled(values []any) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if f, ok := v.(float64); ok {
			out[i] = f
		}
	}
	return out
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}
