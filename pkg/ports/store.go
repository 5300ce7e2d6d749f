package ports

import (
	"context"

	"github.com/aretw0/tabula/pkg/domain"
)

// SessionStore defines the interface for persisting session snapshots.
// This allows a session to be stepped by different processes over time.
type SessionStore interface {
	// Save persists the session under its ID.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves the session for a given ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes the session for a given ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
