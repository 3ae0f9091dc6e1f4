// Package infra implements infrastructure concerns (store, shield, monitor
// registration, key handling).
package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

// GopsutilProcessManager sweeps the process table with gopsutil. It records
// its own pid at construction so a pattern matching the schedmon binary can
// never make the shield kill the engine itself.
type GopsutilProcessManager struct {
	ownPID int32
}

// NewProcessManager creates the process manager backing the shield.
func NewProcessManager() domain.ProcessManager {
	return &GopsutilProcessManager{ownPID: int32(os.Getpid())}
}

// TerminateMatching kills every running process whose name contains the
// pattern, skipping the calling process. Processes that exit mid-scan are
// ignored; kill failures are collected and joined into the returned error
// while the sweep continues.
func (pm *GopsutilProcessManager) TerminateMatching(pattern string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	want := strings.ToLower(pattern)
	var killed []int
	var failures []error

	for _, p := range procs {
		if p.Pid == pm.ownPID {
			continue
		}
		name, err := p.Name()
		if err != nil {
			// Exited between enumeration and inspection.
			continue
		}
		if !strings.Contains(strings.ToLower(name), want) {
			continue
		}
		if err := p.Kill(); err != nil {
			failures = append(failures, fmt.Errorf("kill pid %d (%s): %w", p.Pid, name, err))
			continue
		}
		killed = append(killed, int(p.Pid))
	}

	return killed, errors.Join(failures...)
}

// Ensure GopsutilProcessManager implements domain.ProcessManager.
var _ domain.ProcessManager = (*GopsutilProcessManager)(nil)
