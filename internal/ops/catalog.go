// Package ops holds the table and series operations a decision-maker can call by name.
//
// Operations never modify their target. Mutating variants work on a copy and return
// tabular.InPlace so the caller can re-seat the slot they came from.
package ops

import (
	"fmt"
	"strings"

	"github.com/aretw0/tabula/pkg/registry"
	"github.com/aretw0/tabula/pkg/tabular"
)

// DefaultRows is the row count head and tail use when n is omitted.
const DefaultRows = 5

// Catalog holds the table and series operation registries.
type Catalog struct {
	Tables *registry.Registry[*tabular.Table]
	Series *registry.Registry[*tabular.Series]
}

// NewCatalog returns a catalog with every built-in operation registered.
func NewCatalog() *Catalog {
	c := &Catalog{
		Tables: registry.New[*tabular.Table](),
		Series: registry.New[*tabular.Series](),
	}
	registerTableOps(c.Tables)
	registerTableAggregates(c.Tables)
	registerTablePlots(c.Tables)
	registerSeriesOps(c.Series)
	registerSeriesPlots(c.Series)
	return c
}

// Describe lists every operation with its one-line documentation, grouped by target.
func (c *Catalog) Describe() string {
	var b strings.Builder
	b.WriteString("Table operations:\n")
	for _, e := range c.Tables.Entries() {
		fmt.Fprintf(&b, "  %-16s %s\n", e.Name, e.Doc)
	}
	b.WriteString("\nSeries operations:\n")
	for _, e := range c.Series.Entries() {
		fmt.Fprintf(&b, "  %-16s %s\n", e.Name, e.Doc)
	}
	return b.String()
}

func intOr(p *int, d int) int {
	if p == nil {
		return d
	}
	return *p
}

func boolOr(p *bool, d bool) bool {
	if p == nil {
		return d
	}
	return *p
}

// tableResult wraps a rewritten copy as an in-place outcome when requested.
func tableResult(t *tabular.Table, inplace bool) any {
	if inplace {
		return tabular.InPlace{Table: t}
	}
	return t
}

func seriesResult(s *tabular.Series, inplace bool) any {
	if inplace {
		return tabular.InPlace{Series: s}
	}
	return s
}
