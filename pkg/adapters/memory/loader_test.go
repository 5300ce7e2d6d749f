package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/tabula/pkg/adapters/memory"
	contract "github.com/aretw0/tabula/pkg/ports/tests"
)

func TestInMemoryLoader_Contract(t *testing.T) {
	loader, err := memory.NewFromColumns("sales", []string{"region", "amount"}, map[string][]any{
		"region": {"north", "south"},
		"amount": {10, 20},
	})
	if err != nil {
		t.Fatalf("NewFromColumns failed: %v", err)
	}

	contract.SourceLoaderContractTest(t, loader, "sales", []string{"region", "amount"})
}

func TestInMemoryLoader_ReturnsCopies(t *testing.T) {
	loader, err := memory.NewFromColumns("sales", []string{"amount"}, map[string][]any{"amount": {10, 20}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, _ := loader.Load(ctx, "sales")
	if err := first.DropColumns("amount"); err != nil {
		t.Fatal(err)
	}

	second, err := loader.Load(ctx, "sales")
	if err != nil {
		t.Fatal(err)
	}
	if second.NumCols() != 1 {
		t.Errorf("expected source table to be untouched, got %d columns", second.NumCols())
	}
}

func TestNewFromColumns_MissingColumn(t *testing.T) {
	if _, err := memory.NewFromColumns("x", []string{"a"}, nil); err == nil {
		t.Error("expected error for a column without values")
	}
}
