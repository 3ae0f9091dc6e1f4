package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The memory store backs degraded mode and tests, so it must answer the
// same way the shared store does for absent records and pruning.
func TestMemoryStore_MatchesStoreSemantics(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	got, err := store.GetSchedule("ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
	mode, err := store.GetMode("ghost")
	require.NoError(t, err)
	assert.Nil(t, mode)

	require.NoError(t, store.PutSchedule(sampleSchedule("a")))
	require.NoError(t, store.MarkSkipped("a", "2024-01-01"))
	require.NoError(t, store.MarkSkipped("a", "2024-01-02"))
	require.NoError(t, store.PruneSkipped("2024-01-02"))

	skipped, err := store.IsSkipped("a", "2024-01-01")
	require.NoError(t, err)
	assert.False(t, skipped)
	skipped, err = store.IsSkipped("a", "2024-01-02")
	require.NoError(t, err)
	assert.True(t, skipped)

	require.NoError(t, store.DeleteSchedule("a"))
	skipped, err = store.IsSkipped("a", "2024-01-02")
	require.NoError(t, err)
	assert.False(t, skipped)

	require.NoError(t, store.SetActiveScheduleID("a"))
	id, err := store.ActiveScheduleID()
	require.NoError(t, err)
	assert.Equal(t, "a", id)
	require.NoError(t, store.ClearActiveScheduleID())
	id, err = store.ActiveScheduleID()
	require.NoError(t, err)
	assert.Empty(t, id)
}
