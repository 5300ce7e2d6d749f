package chart

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Dataset is one named run of values.
type Dataset struct {
	Name   string
	Values []float64
}

// Bar draws grouped bars, one group per label and one bar per dataset.
func Bar(ctx context.Context, title string, labels []string, sets []Dataset) error {
	if len(sets) == 0 {
		return errors.New("bar chart needs at least one numeric series")
	}
	s, err := FromContext(ctx)
	if err != nil {
		return err
	}
	return s.Draw(func(p *plot.Plot) error {
		p.Title.Text = title
		width := vg.Points(40 / float64(len(sets)))
		for i, set := range sets {
			bars, err := plotter.NewBarChart(plotter.Values(set.Values), width)
			if err != nil {
				return fmt.Errorf("bar %q: %w", set.Name, err)
			}
			bars.Color = plotutil.Color(i)
			bars.LineStyle.Width = 0
			bars.Offset = vg.Length(float64(i)-float64(len(sets)-1)/2) * width
			p.Add(bars)
			if len(sets) > 1 {
				p.Legend.Add(set.Name, bars)
			}
		}
		p.NominalX(labels...)
		return nil
	})
}

// Line draws one line per dataset against xs. A nil xs uses positions.
func Line(ctx context.Context, title, xLabel string, xs []float64, sets []Dataset) error {
	if len(sets) == 0 {
		return errors.New("line chart needs at least one numeric series")
	}
	s, err := FromContext(ctx)
	if err != nil {
		return err
	}
	return s.Draw(func(p *plot.Plot) error {
		p.Title.Text = title
		p.X.Label.Text = xLabel
		for i, set := range sets {
			line, err := plotter.NewLine(points(xs, set.Values))
			if err != nil {
				return fmt.Errorf("line %q: %w", set.Name, err)
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			if len(sets) > 1 {
				p.Legend.Add(set.Name, line)
			}
		}
		return nil
	})
}

// Scatter draws ys against xs.
func Scatter(ctx context.Context, title, xLabel, yLabel string, xs, ys []float64) error {
	s, err := FromContext(ctx)
	if err != nil {
		return err
	}
	return s.Draw(func(p *plot.Plot) error {
		p.Title.Text = title
		p.X.Label.Text = xLabel
		p.Y.Label.Text = yLabel
		sc, err := plotter.NewScatter(points(xs, ys))
		if err != nil {
			return fmt.Errorf("scatter: %w", err)
		}
		sc.Color = plotutil.Color(0)
		p.Add(sc)
		return nil
	})
}

// Hist draws a histogram of values using bins buckets.
func Hist(ctx context.Context, title string, values []float64, bins int) error {
	if len(values) == 0 {
		return errors.New("histogram needs at least one value")
	}
	if bins <= 0 {
		bins = 10
	}
	s, err := FromContext(ctx)
	if err != nil {
		return err
	}
	return s.Draw(func(p *plot.Plot) error {
		p.Title.Text = title
		h, err := plotter.NewHist(plotter.Values(values), bins)
		if err != nil {
			return fmt.Errorf("histogram: %w", err)
		}
		h.FillColor = plotutil.Color(0)
		p.Add(h)
		return nil
	})
}

func points(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(ys))
	for i, y := range ys {
		x := float64(i)
		if xs != nil {
			x = xs[i]
		}
		pts[i] = plotter.XY{X: x, Y: y}
	}
	return pts
}
