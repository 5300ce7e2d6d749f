package tabular

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the element type held by a column or series.
type Kind string

const (
	KindNumber Kind = "number"
	KindString Kind = "string"
	KindBool   Kind = "bool"
)

// MissingText is how the missing-value marker (nil) is rendered.
const MissingText = "NaN"

// Normalize coerces v into one of the held value types: float64, string, bool or nil.
// NaN becomes nil so there is exactly one missing marker.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return x
	case float32:
		return Normalize(float64(x))
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case string:
		return x
	case bool:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// KindOf reports the kind of a normalized, non-missing value.
func KindOf(v any) (Kind, bool) {
	switch v.(type) {
	case float64:
		return KindNumber, true
	case string:
		return KindString, true
	case bool:
		return KindBool, true
	}
	return "", false
}

// homogenize normalizes values and, when kinds are mixed, falls back to their text form.
func homogenize(values []any) ([]any, Kind) {
	out := make([]any, len(values))
	var kind Kind
	mixed := false
	for i, v := range values {
		n := Normalize(v)
		out[i] = n
		k, ok := KindOf(n)
		if !ok {
			continue
		}
		if kind == "" {
			kind = k
		} else if kind != k {
			mixed = true
		}
	}
	if kind == "" {
		kind = KindNumber
	}
	if mixed {
		for i, v := range out {
			if v != nil {
				out[i] = FormatValue(v)
			}
		}
		kind = KindString
	}
	return out, kind
}

// FormatValue renders a single held value.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return MissingText
	case float64:
		return FormatNumber(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// FormatNumber prints integers without a fraction and other values with at most six decimals.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return MissingText
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e15) {
		return strconv.FormatFloat(f, 'g', 6, 64)
	}
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	s := strconv.FormatFloat(f, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// Truthy reports whether a held value counts as true in a filter.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	}
	return false
}

// Compare orders two held values: missing sorts last, numbers before strings before bools.
func Compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
		return -1
	case string:
		switch y := b.(type) {
		case string:
			return strings.Compare(x, y)
		case float64:
			return 1
		}
		return -1
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
		return 1
	}
	return 0
}

// DefaultIndex returns the row labels "0".."n-1".
func DefaultIndex(n int) []string {
	idx := make([]string, n)
	for i := range idx {
		idx[i] = strconv.Itoa(i)
	}
	return idx
}

func copyValues(values []any) []any {
	out := make([]any, len(values))
	copy(out, values)
	return out
}

func copyLabels(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}
