package ops

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/aretw0/tabula/pkg/tabular"
	"github.com/dop251/goja"
)

// Expr is a compiled row expression. Columns are bound as variables, and the
// whole row is also reachable as row["name"] for names that are not identifiers.
type Expr struct {
	src  string
	prog *goja.Program
}

// CompileExpr translates the pandas-style boolean words and backtick-quoted
// column names, then compiles the result.
func CompileExpr(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	prog, err := goja.Compile("expr", "("+translate(src)+")", false)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &Expr{src: src, prog: prog}, nil
}

// Eval runs the expression n times, binding the variables bind(i) for row i.
// Results are normalized to held values.
func (e *Expr) Eval(ctx context.Context, n int, bind func(i int) map[string]any) ([]any, error) {
	vm := goja.New()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("cancelled")
		case <-done:
		}
	}()

	out := make([]any, n)
	for i := 0; i < n; i++ {
		vars := bind(i)
		row := vm.NewObject()
		for name, v := range vars {
			jv := vm.ToValue(jsValue(v))
			if err := row.Set(name, jv); err != nil {
				return nil, fmt.Errorf("bind %q: %w", name, err)
			}
			if err := vm.Set(name, jv); err != nil {
				return nil, fmt.Errorf("bind %q: %w", name, err)
			}
		}
		if err := vm.Set("row", row); err != nil {
			return nil, err
		}

		val, err := vm.RunProgram(e.prog)
		if err != nil {
			if ierr, ok := err.(*goja.InterruptedError); ok {
				return nil, fmt.Errorf("expression %q interrupted: %v", e.src, ierr.Value())
			}
			return nil, fmt.Errorf("expression %q at row %d: %w", e.src, i, err)
		}
		out[i] = tabular.Normalize(val.Export())
	}
	return out, nil
}

// jsValue maps the missing marker to NaN so arithmetic propagates it.
func jsValue(v any) any {
	if v == nil {
		return math.NaN()
	}
	return v
}

// translate rewrites and/or/not into JS operators and `quoted names` into row
// lookups, leaving string literals untouched.
func translate(src string) string {
	var b strings.Builder
	runes := []rune(src)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			j := i + 1
			for j < len(runes) && runes[j] != r {
				if runes[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(runes) {
				j++
			}
			b.WriteString(string(runes[i:min(j, len(runes))]))
			i = j
		case r == '`':
			j := i + 1
			for j < len(runes) && runes[j] != '`' {
				j++
			}
			fmt.Fprintf(&b, "row[%q]", string(runes[i+1:min(j, len(runes))]))
			i = j + 1
		case isIdentStart(r):
			j := i
			for j < len(runes) && isIdentPart(runes[j]) {
				j++
			}
			word := string(runes[i:j])
			switch word {
			case "and":
				b.WriteString("&&")
			case "or":
				b.WriteString("||")
			case "not":
				b.WriteString("!")
			case "True":
				b.WriteString("true")
			case "False":
				b.WriteString("false")
			default:
				b.WriteString(word)
			}
			i = j
		default:
			b.WriteRune(r)
			i++
		}
	}
	return b.String()
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
