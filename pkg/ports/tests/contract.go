package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/ports"
)

// SourceLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.SourceLoader.
// validPath must load into a table with the given column names.
func SourceLoaderContractTest(t *testing.T, loader ports.SourceLoader, validPath string, columns []string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_Success", func(t *testing.T) {
		table, err := loader.Load(ctx, validPath)
		if err != nil {
			t.Fatalf("unexpected error loading %s: %v", validPath, err)
		}
		names := table.Names()
		if len(names) != len(columns) {
			t.Fatalf("expected columns %v, got %v", columns, names)
		}
		for i := range columns {
			if names[i] != columns[i] {
				t.Errorf("column %d: got %q, want %q", i, names[i], columns[i])
			}
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := loader.Load(ctx, validPath+".missing")
		if err == nil {
			t.Fatal("expected error for missing source, got nil")
		}
		var loadErr *domain.SourceLoadError
		if !errors.As(err, &loadErr) {
			t.Errorf("expected *domain.SourceLoadError, got %T: %v", err, err)
		}
	})
}
