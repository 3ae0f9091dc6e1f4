package infra

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

const stateDBName = "schedules.db"

// SharedStore implements domain.StateStore on a SQLCipher-encrypted SQLite
// database. Both the primary process and the sandboxed monitor process open
// the same file; every write is a single INSERT OR REPLACE / DELETE so the
// other process never observes a half-written record. Last writer wins.
type SharedStore struct {
	db     *sql.DB
	dbPath string
}

// NewSharedStore opens (or creates) the shared state database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewSharedStore(dataDir string, key []byte) (*SharedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, stateDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open shared store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to shared store: %w", err)
	}

	st := &SharedStore{db: db, dbPath: dbPath}
	if err := st.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return st, nil
}

func (s *SharedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		mode_id TEXT NOT NULL,
		start_minute INTEGER NOT NULL,
		end_minute INTEGER NOT NULL,
		repeat_days TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		manual_end_only INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS modes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		selection TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS skip_ledger (
		schedule_id TEXT NOT NULL,
		skip_date TEXT NOT NULL,
		PRIMARY KEY (schedule_id, skip_date)
	);

	CREATE TABLE IF NOT EXISTS active (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		schedule_id TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- active schedule record ---

// ActiveScheduleID returns the schedule currently believed enforced, or "".
func (s *SharedStore) ActiveScheduleID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT schedule_id FROM active WHERE slot = 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// SetActiveScheduleID records the active schedule.
func (s *SharedStore) SetActiveScheduleID(id string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO active (slot, schedule_id) VALUES (1, ?)`, id)
	return err
}

// ClearActiveScheduleID removes the active schedule record.
func (s *SharedStore) ClearActiveScheduleID() error {
	_, err := s.db.Exec(`DELETE FROM active WHERE slot = 1`)
	return err
}

// --- schedule records ---

// PutSchedule replaces the persisted record for a schedule.
func (s *SharedStore) PutSchedule(sched domain.Schedule) error {
	days, err := json.Marshal(sched.RepeatDays)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO schedules
			(id, mode_id, start_minute, end_minute, repeat_days, enabled, manual_end_only)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.ModeID, sched.StartMinute, sched.EndMinute,
		string(days), boolInt(sched.Enabled), boolInt(sched.ManualEndOnly),
	)
	return err
}

// GetSchedule returns the schedule or nil if absent.
func (s *SharedStore) GetSchedule(id string) (*domain.Schedule, error) {
	row := s.db.QueryRow(`
		SELECT id, mode_id, start_minute, end_minute, repeat_days, enabled, manual_end_only
		FROM schedules WHERE id = ?`, id)
	sched, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// DeleteSchedule removes the schedule and purges its skip-ledger entries.
func (s *SharedStore) DeleteSchedule(id string) error {
	if _, err := s.db.Exec(`DELETE FROM skip_ledger WHERE schedule_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	return err
}

// ListSchedules returns all persisted schedules.
func (s *SharedStore) ListSchedules() ([]domain.Schedule, error) {
	rows, err := s.db.Query(`
		SELECT id, mode_id, start_minute, end_minute, repeat_days, enabled, manual_end_only
		FROM schedules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sched)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(r rowScanner) (*domain.Schedule, error) {
	var sched domain.Schedule
	var days string
	var enabled, manualEnd int
	if err := r.Scan(&sched.ID, &sched.ModeID, &sched.StartMinute, &sched.EndMinute,
		&days, &enabled, &manualEnd); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(days), &sched.RepeatDays); err != nil {
		return nil, fmt.Errorf("malformed repeat days for %s: %w", sched.ID, err)
	}
	sched.Enabled = enabled != 0
	sched.ManualEndOnly = manualEnd != 0
	return &sched, nil
}

// --- mode records ---

// PutMode replaces the persisted schedule->resource-set mapping.
func (s *SharedStore) PutMode(m domain.Mode) error {
	sel, err := json.Marshal(m.Selection)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO modes (id, name, selection) VALUES (?, ?, ?)`,
		m.ID, m.Name, string(sel))
	return err
}

// GetMode returns the mode or nil if absent.
func (s *SharedStore) GetMode(id string) (*domain.Mode, error) {
	var m domain.Mode
	var sel string
	err := s.db.QueryRow(`SELECT id, name, selection FROM modes WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &sel)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sel), &m.Selection); err != nil {
		return nil, fmt.Errorf("malformed selection for mode %s: %w", id, err)
	}
	return &m, nil
}

// DeleteMode removes a mode record.
func (s *SharedStore) DeleteMode(id string) error {
	_, err := s.db.Exec(`DELETE FROM modes WHERE id = ?`, id)
	return err
}

// --- skip ledger ---

// MarkSkipped records "schedule manually ended on date".
func (s *SharedStore) MarkSkipped(scheduleID, date string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO skip_ledger (schedule_id, skip_date) VALUES (?, ?)`,
		scheduleID, date)
	return err
}

// IsSkipped reports whether the schedule was manually ended on date.
func (s *SharedStore) IsSkipped(scheduleID, date string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM skip_ledger WHERE schedule_id = ? AND skip_date = ?`,
		scheduleID, date).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PruneSkipped removes every ledger entry whose date differs from today.
func (s *SharedStore) PruneSkipped(today string) error {
	_, err := s.db.Exec(`DELETE FROM skip_ledger WHERE skip_date != ?`, today)
	return err
}

// Close releases the database connection.
func (s *SharedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *SharedStore) Path() string {
	return s.dbPath
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SharedStore implements domain.StateStore.
var _ domain.StateStore = (*SharedStore)(nil)
