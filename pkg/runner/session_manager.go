package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/ports"
)

// SessionManager handles the lifecycle of a durable session.
// It coordinates between the Runner, the Engine, and the SessionStore.
type SessionManager struct {
	Store ports.SessionStore
}

// NewSessionManager creates a new SessionManager. A nil store makes every session
// ephemeral.
func NewSessionManager(store ports.SessionStore) *SessionManager {
	return &SessionManager{
		Store: store,
	}
}

// LoadOrStart attempts to load an existing session. If not found, it starts a new one
// under sessionID. Returns the session and whether it was loaded (true) or new (false).
// An empty sessionID always starts a new session with an engine-assigned ID.
func (sm *SessionManager) LoadOrStart(ctx context.Context, engine Engine, sessionID, request, source string) (*domain.Session, bool, error) {
	if sessionID != "" && sm.Store != nil {
		s, err := sm.Store.Load(ctx, sessionID)
		if err == nil {
			// The stored request wins; a resumed session never restarts.
			return s, true, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, false, fmt.Errorf("failed to load session %s: %w", sessionID, err)
		}
	}

	clean, err := SanitizeRequest(request)
	if err != nil {
		return nil, false, err
	}
	s, err := engine.Start(ctx, clean, source)
	if s == nil {
		return nil, false, err
	}
	if sessionID != "" {
		s.ID = sessionID
	}

	// Save immediately to reserve the ID, even when the first consultation failed.
	if saveErr := sm.Save(ctx, s); saveErr != nil {
		return nil, false, fmt.Errorf("failed to initialize session %s: %w", s.ID, saveErr)
	}
	return s, false, err
}

// Save persists the session.
func (sm *SessionManager) Save(ctx context.Context, s *domain.Session) error {
	if sm.Store == nil {
		return nil
	}
	return sm.Store.Save(ctx, s)
}
