package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/tabular"
)

// Loader implements ports.SourceLoader over tables registered under a name.
// Every Load returns a copy, so sessions never share a source table.
type Loader struct {
	tables map[string]*tabular.Table
}

// NewLoader creates a Loader serving the given tables.
func NewLoader(tables map[string]*tabular.Table) *Loader {
	l := &Loader{tables: make(map[string]*tabular.Table, len(tables))}
	for name, t := range tables {
		l.tables[name] = t
	}
	return l
}

// NewFromColumns builds a single-table loader from column data, in the given order.
// This handles column construction for tests and embedded use.
func NewFromColumns(name string, names []string, columns map[string][]any) (*Loader, error) {
	cols := make([]*tabular.Column, 0, len(names))
	for _, n := range names {
		values, ok := columns[n]
		if !ok {
			return nil, fmt.Errorf("column %q has no values", n)
		}
		cols = append(cols, tabular.NewColumn(n, values))
	}
	t, err := tabular.NewTable(cols...)
	if err != nil {
		return nil, err
	}
	return NewLoader(map[string]*tabular.Table{name: t}), nil
}

// Load returns a copy of the table registered under path.
func (l *Loader) Load(ctx context.Context, path string) (*tabular.Table, error) {
	t, ok := l.tables[path]
	if !ok {
		return nil, &domain.SourceLoadError{Path: path, Err: fmt.Errorf("no table named %q", path)}
	}
	return t.Copy(), nil
}

// Names returns the registered source names.
func (l *Loader) Names() []string {
	keys := make([]string, 0, len(l.tables))
	for k := range l.tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
