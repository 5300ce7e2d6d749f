package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := contractSession(t, sessionID)

		err := store.Save(ctx, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.ID, loaded.ID)
		assert.Equal(t, session.Phase, loaded.Phase)
		assert.Equal(t, session.Request, loaded.Request)
		assert.Equal(t, session.Transcript.Render(), loaded.Transcript.Render())
		assert.Equal(t, 1, loaded.Store.Len())
		require.NotNil(t, loaded.Pending)
		assert.Equal(t, "call-1", loaded.Pending.ID)

		reg, err := loaded.Store.Register()
		require.NoError(t, err)
		assert.Equal(t, []any{3.0, 4.0}, reg.Values)

		// Mutating the loaded copy must not leak into the store.
		loaded.Store.ClearRegister()
		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.True(t, again.Store.HasRegister())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewSession(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, domain.NewSession(id1))
		_ = store.Save(ctx, domain.NewSession(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

func contractSession(t *testing.T, id string) *domain.Session {
	t.Helper()
	table, err := tabular.NewTable(
		tabular.NewColumn("a", []any{1, 2}),
		tabular.NewColumn("b", []any{2, 2}),
	)
	require.NoError(t, err)

	s := domain.NewSession(id)
	s.Request = "sum the columns"
	s.Source = "data.csv"
	s.Phase = domain.PhaseAwaitingCommand
	s.Store.Push(table)
	s.Store.SetRegister(tabular.NewSeries("", []any{3, 4}, nil))
	s.Transcript.Append(domain.Message{Role: domain.RoleRequester, Blocks: []domain.Block{domain.TextBlock("sum the columns")}})
	s.Pending = domain.NewCall("call-1", domain.SeriesOp{FunctionName: "sum"})
	return s
}
