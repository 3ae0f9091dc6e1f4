package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

// newTestStore creates a shared store in a temp directory for testing.
func newTestStore(t *testing.T) (*SharedStore, string, []byte) {
	t.Helper()
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewSharedStore(dataDir, key)
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })
	return store, dataDir, key
}

func sampleSchedule(id string) domain.Schedule {
	return domain.Schedule{
		ID:            id,
		ModeID:        "mode-" + id,
		StartMinute:   9 * 60,
		EndMinute:     17 * 60,
		RepeatDays:    []time.Weekday{time.Monday, time.Friday},
		Enabled:       true,
		ManualEndOnly: false,
	}
}

func TestSharedStore_ScheduleRoundTrip(t *testing.T) {
	store, _, _ := newTestStore(t)

	want := sampleSchedule("a")
	want.ManualEndOnly = true
	require.NoError(t, store.PutSchedule(want))

	got, err := store.GetSchedule("a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	// Whole-record replace.
	want.StartMinute = 10 * 60
	require.NoError(t, store.PutSchedule(want))
	got, err = store.GetSchedule("a")
	require.NoError(t, err)
	assert.Equal(t, 10*60, got.StartMinute)

	missing, err := store.GetSchedule("ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSharedStore_ListSchedules(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.PutSchedule(sampleSchedule("a")))
	require.NoError(t, store.PutSchedule(sampleSchedule("b")))

	all, err := store.ListSchedules()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSharedStore_ModeRoundTrip(t *testing.T) {
	store, _, _ := newTestStore(t)

	want := domain.Mode{
		ID:        "mode-a",
		Name:      "Deep Work",
		Selection: domain.ResourceSelection{ProcessPatterns: []string{"steam", "Dota 2"}},
	}
	require.NoError(t, store.PutMode(want))

	got, err := store.GetMode("mode-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	require.NoError(t, store.DeleteMode("mode-a"))
	got, err = store.GetMode("mode-a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSharedStore_ActiveScheduleSlot(t *testing.T) {
	store, _, _ := newTestStore(t)

	id, err := store.ActiveScheduleID()
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, store.SetActiveScheduleID("a"))
	id, err = store.ActiveScheduleID()
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	// Single-slot replace.
	require.NoError(t, store.SetActiveScheduleID("b"))
	id, err = store.ActiveScheduleID()
	require.NoError(t, err)
	assert.Equal(t, "b", id)

	require.NoError(t, store.ClearActiveScheduleID())
	id, err = store.ActiveScheduleID()
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSharedStore_SkipLedger(t *testing.T) {
	store, _, _ := newTestStore(t)

	require.NoError(t, store.MarkSkipped("a", "2024-01-01"))
	require.NoError(t, store.MarkSkipped("a", "2024-01-02"))
	require.NoError(t, store.MarkSkipped("b", "2024-01-02"))

	skipped, err := store.IsSkipped("a", "2024-01-01")
	require.NoError(t, err)
	assert.True(t, skipped)

	require.NoError(t, store.PruneSkipped("2024-01-02"))

	skipped, err = store.IsSkipped("a", "2024-01-01")
	require.NoError(t, err)
	assert.False(t, skipped)
	skipped, err = store.IsSkipped("a", "2024-01-02")
	require.NoError(t, err)
	assert.True(t, skipped)
	skipped, err = store.IsSkipped("b", "2024-01-02")
	require.NoError(t, err)
	assert.True(t, skipped)
}

func TestSharedStore_DeleteSchedulePurgesSkips(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.PutSchedule(sampleSchedule("a")))
	require.NoError(t, store.MarkSkipped("a", "2024-01-01"))

	require.NoError(t, store.DeleteSchedule("a"))

	got, err := store.GetSchedule("a")
	require.NoError(t, err)
	assert.Nil(t, got)
	skipped, err := store.IsSkipped("a", "2024-01-01")
	require.NoError(t, err)
	assert.False(t, skipped)
}

func TestSharedStore_SurvivesReopen(t *testing.T) {
	store, dataDir, key := newTestStore(t)
	require.NoError(t, store.PutSchedule(sampleSchedule("a")))
	require.NoError(t, store.SetActiveScheduleID("a"))
	require.NoError(t, store.Close())

	// A second process opening the same file sees the same records.
	reopened, err := NewSharedStore(dataDir, key)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetSchedule("a")
	require.NoError(t, err)
	require.NotNil(t, got)

	id, err := reopened.ActiveScheduleID()
	require.NoError(t, err)
	assert.Equal(t, "a", id)
}
