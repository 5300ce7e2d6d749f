package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/tabula/pkg/adapters/memory"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	count := 2000

	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.Save(ctx, domain.NewSession(sid))
		_, _ = mgr.Update(ctx, sid, func(ctx context.Context, s *domain.Session) (*domain.Session, error) { return s, nil })
		_ = mgr.Delete(ctx, sid)
	}

	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}

func TestManager_UpdatesAreSerialized(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, domain.NewSession("shared")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Update(ctx, "shared", func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
				s.Steps = append(s.Steps, domain.StepRecord{Result: "done"})
				return s, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := mgr.Load(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, s.Steps, 50, "every read-modify-write must see the previous one")
	assert.Empty(t, mgr.locks)
}
