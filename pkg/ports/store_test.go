package ports_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/ports"
)

// MockStore is an in-memory implementation of SessionStore for testing purposes.
type MockStore struct {
	mu   sync.Mutex
	data map[string]*domain.Session
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string]*domain.Session)}
}

func (m *MockStore) Save(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[session.ID] = session.Snapshot()
	return nil
}

func (m *MockStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Snapshot(), nil
}

func (m *MockStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func TestSessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, NewMockStore())
}

func TestConsultantFunc(t *testing.T) {
	var c ports.Consultant = ports.ConsultantFunc(func(ctx context.Context, tr *domain.Transcript) (domain.Decision, error) {
		return domain.Decision{Narration: "done"}, nil
	})
	d, err := c.Consult(context.Background(), domain.NewTranscript())
	if err != nil {
		t.Fatalf("consult: %v", err)
	}
	if d.Call != nil || d.Narration != "done" {
		t.Errorf("unexpected decision %+v", d)
	}
}
