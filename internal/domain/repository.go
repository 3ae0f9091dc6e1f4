package domain

// StateStore is the durable key/value store shared between the primary
// process and the sandboxed monitor process. It is the single source of
// truth for what is currently enforced. Writes are whole-record replace,
// last-writer-wins; reads may be stale.
// Implementations: SQLCipher-encrypted SQLite (shared), in-memory (degraded
// mode fallback and tests).
type StateStore interface {
	// ActiveScheduleID returns the schedule currently believed enforced,
	// or "" if none.
	ActiveScheduleID() (string, error)

	// SetActiveScheduleID records the active schedule (whole-record replace).
	SetActiveScheduleID(id string) error

	// ClearActiveScheduleID removes the active schedule record.
	ClearActiveScheduleID() error

	// PutSchedule replaces the persisted record for a schedule.
	PutSchedule(s Schedule) error

	// GetSchedule returns the schedule or nil if absent.
	GetSchedule(id string) (*Schedule, error)

	// DeleteSchedule removes the schedule and purges its skip-ledger entries.
	DeleteSchedule(id string) error

	// ListSchedules returns all persisted schedules.
	ListSchedules() ([]Schedule, error)

	// PutMode replaces the persisted schedule->resource-set mapping.
	PutMode(m Mode) error

	// GetMode returns the mode or nil if absent.
	GetMode(id string) (*Mode, error)

	// DeleteMode removes a mode record.
	DeleteMode(id string) error

	// MarkSkipped records "schedule manually ended on date".
	MarkSkipped(scheduleID, date string) error

	// IsSkipped reports whether the schedule was manually ended on date.
	IsSkipped(scheduleID, date string) (bool, error)

	// PruneSkipped removes every ledger entry whose date differs from today.
	PruneSkipped(today string) error

	// Close releases resources (e.g., database connection).
	Close() error
}

// ModeResolver looks up the resource-set for a mode id.
// Returns nil (not an error) when the mode no longer exists.
type ModeResolver interface {
	Resolve(modeID string) (*Mode, error)
}

// ShieldController is the resource-enforcement API for the schedule slot.
// Apply and Clear are idempotent: applying an identical selection twice is a
// no-op at the enforcement layer. A manual session's shields live in a
// separate slot and are never touched through this interface.
type ShieldController interface {
	Apply(sel ResourceSelection) error
	Clear() error
}

// OverrideGate reports whether an ad hoc, user-initiated enforcement session
// (outside any schedule) is active. While it is, schedule activation is
// unconditionally suppressed.
type OverrideGate interface {
	IsManualSessionActive() bool
}

// WindowMonitor tracks which schedules have OS-level interval monitors
// registered for their window boundaries. Registration is best-effort: a
// failure leaves the schedule intended but unmonitored until the next
// attempt.
type WindowMonitor interface {
	// Register starts boundary monitoring for a schedule.
	Register(s Schedule) error

	// Unregister stops boundary monitoring for a schedule.
	Unregister(scheduleID string) error

	// Registered returns the ids currently being monitored.
	Registered() ([]string, error)
}

// Notifier schedules informational notifications for upcoming window starts.
// Output only; the evaluator never reads notification state back.
type Notifier interface {
	ScheduleStart(scheduleID string, startMinute int, days []string)
	CancelFor(scheduleID string)
}

// ProcessManager terminates processes on behalf of the shield. The engine
// never tracks pids across runs; enforcement is a sweep over whatever
// matches at the moment of the call.
type ProcessManager interface {
	// TerminateMatching kills every process whose name matches the
	// pattern (case-insensitive substring), never the calling process
	// itself, and returns the pids it killed. Kill failures are folded
	// into the returned error; pids killed before a failure are still
	// reported.
	TerminateMatching(pattern string) ([]int, error)
}

// KeyProvider abstracts the source of the shared store's encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
