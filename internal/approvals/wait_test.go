package approvals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_WaitReturnsImmediatelyWhenAlreadyResolved(t *testing.T) {
	store := NewStore(t.TempDir())
	a, err := store.Create("tasks", nil)
	require.NoError(t, err)
	_, err = store.SetStatus("tasks", a.ID, StatusApproved)
	require.NoError(t, err)

	b := NewBridge("", store)
	result, err := b.Wait(context.Background(), "tasks", a.ID, 5000)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, result.Status)
	assert.False(t, result.TimedOut)
}

func TestBridge_WaitTimesOutWhileStillPending(t *testing.T) {
	store := NewStore(t.TempDir())
	a, err := store.Create("tasks", nil)
	require.NoError(t, err)

	b := NewBridge("", store)
	start := time.Now()
	result, err := b.Wait(context.Background(), "tasks", a.ID, 200)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, StatusPending, result.Status)
	assert.True(t, time.Since(start) >= 200*time.Millisecond)
}

func TestBridge_WaitObservesLateResolution(t *testing.T) {
	store := NewStore(t.TempDir())
	a, err := store.Create("tasks", nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(600 * time.Millisecond)
		_, _ = store.SetStatus("tasks", a.ID, StatusRejected)
	}()

	b := NewBridge("", store)
	result, err := b.Wait(context.Background(), "tasks", a.ID, 3000)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, result.Status)
	assert.False(t, result.TimedOut)
}
