package ports

import (
	"context"

	"github.com/aretw0/tabula/pkg/tabular"
)

// SourceLoader materializes the initial table of a session from a source path.
// Implementations report failures as *domain.SourceLoadError.
type SourceLoader interface {
	Load(ctx context.Context, path string) (*tabular.Table, error)
}
