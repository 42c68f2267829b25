package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/rawsence/procheck/internal/pkg/errors"
)

func TestRegistryRegisterAndUnregister(t *testing.T) {
	r := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Register("u1", "up1", cancel))
	require.True(t, r.Active("u1", "up1"))
	require.False(t, r.Active("u1", "other"))

	r.Unregister("u1", "up1")
	require.False(t, r.Active("u1", "up1"))
}

func TestRegistryDuplicateRegisterConflicts(t *testing.T) {
	r := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Register("u1", "up1", cancel))
	require.ErrorIs(t, r.Register("u1", "up1", cancel), appErr.ErrConflict)
	// Same upload id under another user is a distinct key.
	require.NoError(t, r.Register("u2", "up1", cancel))
}

func TestRegistryCancelFiresContext(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Register("u1", "up1", cancel))

	require.True(t, r.Cancel("u1", "up1"))
	require.True(t, r.IsCancelled("u1", "up1"))
	select {
	case <-ctx.Done():
	default:
		t.Fatal("task context should be cancelled")
	}
}

func TestRegistryCancelWithoutTask(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.Cancel("u1", "missing"))
	// No live task, no flag entry left behind.
	require.False(t, r.IsCancelled("u1", "missing"))
	// Repeated cancels of an absent key stay no-ops.
	require.False(t, r.Cancel("u1", "missing"))
	require.False(t, r.IsCancelled("u1", "missing"))
}

func TestRegistryCancelIdempotent(t *testing.T) {
	r := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Register("u1", "up1", cancel))
	require.True(t, r.Cancel("u1", "up1"))
	require.True(t, r.Cancel("u1", "up1"))

	r.Unregister("u1", "up1")
	require.False(t, r.IsCancelled("u1", "up1"))
	require.False(t, r.Cancel("u1", "up1"))
}
