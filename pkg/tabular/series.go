package tabular

import (
	"fmt"
	"strings"
)

// Series is a named, row-labelled array of values of a single kind.
type Series struct {
	Name   string   `json:"name"`
	Kind   Kind     `json:"kind"`
	Values []any    `json:"values"`
	Index  []string `json:"index"`
}

// NewSeries builds a series, normalizing values. A nil index yields the default labels.
func NewSeries(name string, values []any, index []string) *Series {
	vals, kind := homogenize(values)
	if index == nil {
		index = DefaultIndex(len(vals))
	}
	return &Series{Name: name, Kind: kind, Values: vals, Index: copyLabels(index)}
}

// Len returns the number of elements.
func (s *Series) Len() int { return len(s.Values) }

// Copy returns a deep copy.
func (s *Series) Copy() *Series {
	return &Series{
		Name:   s.Name,
		Kind:   s.Kind,
		Values: copyValues(s.Values),
		Index:  copyLabels(s.Index),
	}
}

// Subset keeps the given positions, preserving their labels.
func (s *Series) Subset(positions []int) *Series {
	vals := make([]any, len(positions))
	idx := make([]string, len(positions))
	for i, p := range positions {
		vals[i] = s.Values[p]
		idx[i] = s.label(p)
	}
	return &Series{Name: s.Name, Kind: s.Kind, Values: vals, Index: idx}
}

// Head returns the first n elements.
func (s *Series) Head(n int) *Series {
	return s.Subset(span(0, clamp(n, s.Len())))
}

// Tail returns the last n elements.
func (s *Series) Tail(n int) *Series {
	n = clamp(n, s.Len())
	return s.Subset(span(s.Len()-n, s.Len()))
}

// Numbers returns the non-missing values as float64. It fails for non-numeric series.
func (s *Series) Numbers() ([]float64, error) {
	if s.Kind != KindNumber {
		return nil, fmt.Errorf("series %q has kind %s, not number", s.Name, s.Kind)
	}
	out := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Align arranges the values along index by label. Labels the series does not carry
// receive the missing marker. A series without labels aligns by position.
func (s *Series) Align(index []string) []any {
	out := make([]any, len(index))
	if len(s.Index) == 0 {
		copy(out, s.Values)
		return out
	}
	if sameLabels(s.Index, index) {
		copy(out, s.Values)
		return out
	}
	pos := make(map[string]int, len(s.Index))
	for i, l := range s.Index {
		if _, seen := pos[l]; !seen {
			pos[l] = i
		}
	}
	for i, l := range index {
		if j, ok := pos[l]; ok {
			out[i] = s.Values[j]
		}
	}
	return out
}

func (s *Series) label(i int) string {
	if i < len(s.Index) {
		return s.Index[i]
	}
	return fmt.Sprint(i)
}

// String renders up to ten elements followed by the name, length and kind.
func (s *Series) String() string {
	return s.Preview(10)
}

// Preview renders at most n elements, eliding the middle when longer.
func (s *Series) Preview(n int) string {
	var b strings.Builder
	positions := previewPositions(s.Len(), n)
	width := 0
	for _, p := range positions {
		if p >= 0 && len(s.label(p)) > width {
			width = len(s.label(p))
		}
	}
	for _, p := range positions {
		if p < 0 {
			b.WriteString("...\n")
			continue
		}
		fmt.Fprintf(&b, "%-*s    %s\n", width, s.label(p), FormatValue(s.Values[p]))
	}
	name := s.Name
	if name == "" {
		name = "None"
	}
	fmt.Fprintf(&b, "Name: %s, Length: %d, kind: %s", name, s.Len(), s.Kind)
	return b.String()
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// previewPositions lists the positions to show; -1 marks the elision.
func previewPositions(total, n int) []int {
	if n <= 0 || total <= n {
		return span(0, total)
	}
	head := (n + 1) / 2
	tail := n - head
	out := span(0, head)
	out = append(out, -1)
	return append(out, span(total-tail, total)...)
}

func span(from, to int) []int {
	if to < from {
		return nil
	}
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func clamp(n, total int) int {
	switch {
	case n < 0:
		return 0
	case n > total:
		return total
	}
	return n
}
