package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/tabula/internal/adapters/file"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/ports"
	"github.com/aretw0/tabula/pkg/tabular"
)

var _ ports.SessionStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_OverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	tbl, err := tabular.NewTable(tabular.NewColumn("a", []any{1, 2}))
	if err != nil {
		t.Fatal(err)
	}
	s := domain.NewSession("s1")
	s.Store.Push(tbl)
	for i := 0; i < 3; i++ {
		s.Request = "request"
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "s1.json" {
		t.Errorf("expected only s1.json, got %v", entries)
	}
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	s := domain.NewSession(filepath.Join("..", "escape"))
	if err := store.Save(ctx, s); err == nil {
		t.Error("expected error for an ID containing a separator")
	}
	if _, err := store.Load(ctx, ""); err == nil {
		t.Error("expected error for an empty ID")
	}
}

func TestFileStore_ListMissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))

	ids, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no sessions, got %v", ids)
	}
}
