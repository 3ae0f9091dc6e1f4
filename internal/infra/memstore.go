package infra

import (
	"sync"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

// MemoryStore is a process-local domain.StateStore. It backs degraded mode
// when the shared database cannot be opened (state then survives neither
// process exit nor reaches the monitor process) and serves as the store
// double in tests.
type MemoryStore struct {
	mu        sync.Mutex
	activeID  string
	schedules map[string]domain.Schedule
	modes     map[string]domain.Mode
	skips     map[string]map[string]bool // scheduleID -> date -> skipped
}

// NewMemoryStore creates an empty in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schedules: make(map[string]domain.Schedule),
		modes:     make(map[string]domain.Mode),
		skips:     make(map[string]map[string]bool),
	}
}

// ActiveScheduleID returns the schedule currently believed enforced, or "".
func (m *MemoryStore) ActiveScheduleID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID, nil
}

// SetActiveScheduleID records the active schedule.
func (m *MemoryStore) SetActiveScheduleID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeID = id
	return nil
}

// ClearActiveScheduleID removes the active schedule record.
func (m *MemoryStore) ClearActiveScheduleID() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeID = ""
	return nil
}

// PutSchedule replaces the record for a schedule.
func (m *MemoryStore) PutSchedule(s domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = s
	return nil
}

// GetSchedule returns the schedule or nil if absent.
func (m *MemoryStore) GetSchedule(id string) (*domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// DeleteSchedule removes the schedule and purges its skip-ledger entries.
func (m *MemoryStore) DeleteSchedule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schedules, id)
	delete(m.skips, id)
	return nil
}

// ListSchedules returns all stored schedules.
func (m *MemoryStore) ListSchedules() ([]domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		out = append(out, s)
	}
	return out, nil
}

// PutMode replaces the record for a mode.
func (m *MemoryStore) PutMode(mode domain.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[mode.ID] = mode
	return nil
}

// GetMode returns the mode or nil if absent.
func (m *MemoryStore) GetMode(id string) (*domain.Mode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mode, ok := m.modes[id]
	if !ok {
		return nil, nil
	}
	return &mode, nil
}

// DeleteMode removes a mode record.
func (m *MemoryStore) DeleteMode(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.modes, id)
	return nil
}

// MarkSkipped records "schedule manually ended on date".
func (m *MemoryStore) MarkSkipped(scheduleID, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skips[scheduleID] == nil {
		m.skips[scheduleID] = make(map[string]bool)
	}
	m.skips[scheduleID][date] = true
	return nil
}

// IsSkipped reports whether the schedule was manually ended on date.
func (m *MemoryStore) IsSkipped(scheduleID, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.skips[scheduleID][date], nil
}

// PruneSkipped removes every ledger entry whose date differs from today.
func (m *MemoryStore) PruneSkipped(today string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, dates := range m.skips {
		for date := range dates {
			if date != today {
				delete(dates, date)
			}
		}
		if len(dates) == 0 {
			delete(m.skips, id)
		}
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements domain.StateStore.
var _ domain.StateStore = (*MemoryStore)(nil)
