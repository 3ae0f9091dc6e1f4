package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

const monitorFileName = "monitors.json"

// FileWindowMonitor implements domain.WindowMonitor with a JSON registration
// file next to the shared store. The platform invokes the monitor process on
// window boundaries only for registered schedules, so the registration set
// itself must be durable and visible to both processes. Writes go through a
// file lock plus atomic rename so concurrent registration calls from the two
// processes cannot shear the file.
type FileWindowMonitor struct {
	path string
}

// NewFileWindowMonitor creates a window monitor registry under dataDir.
func NewFileWindowMonitor(dataDir string) *FileWindowMonitor {
	return &FileWindowMonitor{path: filepath.Join(dataDir, monitorFileName)}
}

// Register starts boundary monitoring for a schedule.
func (m *FileWindowMonitor) Register(s domain.Schedule) error {
	return m.update(func(ids map[string]bool) {
		ids[s.ID] = true
	})
}

// Unregister stops boundary monitoring for a schedule.
func (m *FileWindowMonitor) Unregister(scheduleID string) error {
	return m.update(func(ids map[string]bool) {
		delete(ids, scheduleID)
	})
}

// Registered returns the ids currently being monitored, sorted for
// deterministic output.
func (m *FileWindowMonitor) Registered() ([]string, error) {
	ids, err := m.read()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *FileWindowMonitor) read() (map[string]bool, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]bool), nil
		}
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (m *FileWindowMonitor) update(mutate func(map[string]bool)) error {
	// File lock prevents a race between the primary and monitor processes.
	lockPath := m.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	ids, err := m.read()
	if err != nil {
		return err
	}
	mutate(ids)

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	data, err := json.Marshal(sorted)
	if err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", m.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileWindowMonitor implements domain.WindowMonitor.
var _ domain.WindowMonitor = (*FileWindowMonitor)(nil)
