package ops

import (
	"errors"
	"math"
	"sort"

	"github.com/aretw0/tabula/pkg/tabular"
)

var errNoValues = errors.New("no non-missing values")

// reducer aggregates the non-missing numbers of one column or series.
type reducer func(xs []float64) (float64, error)

var reducers = map[string]reducer{
	"count":  func(xs []float64) (float64, error) { return float64(len(xs)), nil },
	"sum":    sum,
	"mean":   mean,
	"median": func(xs []float64) (float64, error) { return quantile(xs, 0.5) },
	"std":    std,
	"var":    variance,
	"min":    minimum,
	"max":    maximum,
}

func sum(xs []float64) (float64, error) {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s, nil
}

func mean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return math.NaN(), nil
	}
	s, _ := sum(xs)
	return s / float64(len(xs)), nil
}

// variance is the sample variance (one degree of freedom removed).
func variance(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return math.NaN(), nil
	}
	m, _ := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return ss / float64(len(xs)-1), nil
}

func std(xs []float64) (float64, error) {
	v, err := variance(xs)
	return math.Sqrt(v), err
}

func minimum(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return math.NaN(), nil
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Min(m, x)
	}
	return m, nil
}

func maximum(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return math.NaN(), nil
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return m, nil
}

// quantile interpolates linearly between the closest ranks.
func quantile(xs []float64, q float64) (float64, error) {
	if q < 0 || q > 1 {
		return 0, errors.New("quantile must be between 0 and 1")
	}
	if len(xs) == 0 {
		return math.NaN(), nil
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}

// pearson returns the correlation of the pairs where both values are present.
func pearson(a, b []any) float64 {
	var xs, ys []float64
	for i := range a {
		x, okx := a[i].(float64)
		y, oky := b[i].(float64)
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	mx, _ := mean(xs)
	my, _ := mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// numbers extracts the non-missing numbers from held values.
func numbers(values []any) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// describeNumbers computes the summary pandas prints for a numeric column.
func describeNumbers(xs []float64) ([]string, []any) {
	labels := []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}
	m, _ := mean(xs)
	s, _ := std(xs)
	lo, _ := minimum(xs)
	q1, _ := quantile(xs, 0.25)
	q2, _ := quantile(xs, 0.5)
	q3, _ := quantile(xs, 0.75)
	hi, _ := maximum(xs)
	return labels, []any{float64(len(xs)), m, s, lo, q1, q2, q3, hi}
}

// describeValues summarizes a non-numeric column: count, unique, top and freq.
func describeValues(values []any) ([]string, []any) {
	labels := []string{"count", "unique", "top", "freq"}
	counts := countValues(values)
	var top any
	freq := 0
	if len(counts) > 0 {
		top, freq = counts[0].value, counts[0].n
	}
	present := 0
	for _, v := range values {
		if v != nil {
			present++
		}
	}
	return labels, []any{float64(present), float64(len(counts)), top, float64(freq)}
}

type valueCount struct {
	value any
	n     int
}

// countValues tallies the non-missing values, most frequent first, ties by first appearance.
func countValues(values []any) []valueCount {
	order := make(map[string]int)
	var out []valueCount
	for _, v := range values {
		if v == nil {
			continue
		}
		key := tabular.FormatValue(v)
		if i, ok := order[key]; ok {
			out[i].n++
			continue
		}
		order[key] = len(out)
		out = append(out, valueCount{value: v, n: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].n > out[j].n })
	return out
}
