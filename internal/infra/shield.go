package infra

import (
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

// ProcessShield implements domain.ShieldController for the schedule slot by
// terminating processes matching the selection's patterns. Apply is
// idempotent: re-applying a selection whose processes are already gone kills
// nothing. The manual session slot is a separate controller instance.
type ProcessShield struct {
	pm     domain.ProcessManager
	logger *zap.Logger

	mu      sync.Mutex
	current domain.ResourceSelection
	applied bool
}

// NewProcessShield creates a process-killing shield controller.
func NewProcessShield(pm domain.ProcessManager, logger *zap.Logger) *ProcessShield {
	return &ProcessShield{pm: pm, logger: logger}
}

// Apply enforces the selection: every process matching one of its patterns
// is terminated. Individual kill failures are logged and do not abort the
// rest of the sweep.
func (s *ProcessShield) Apply(sel domain.ResourceSelection) error {
	s.mu.Lock()
	s.current = sel
	s.applied = true
	s.mu.Unlock()

	for _, pattern := range sel.ProcessPatterns {
		killed, err := s.pm.TerminateMatching(pattern)
		if err != nil {
			s.logger.Warn("shield sweep incomplete",
				zap.String("pattern", pattern),
				zap.Error(err))
		}
		if len(killed) > 0 {
			s.logger.Info("terminated processes",
				zap.String("pattern", pattern),
				zap.Ints("pids", killed))
		}
	}
	return nil
}

// Clear drops the enforced selection. Already-terminated processes need no
// undo; clearing twice is a no-op.
func (s *ProcessShield) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.applied {
		return nil
	}
	s.current = domain.ResourceSelection{}
	s.applied = false
	return nil
}

// Current returns the selection currently enforced, if any.
func (s *ProcessShield) Current() (domain.ResourceSelection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.applied
}

// Ensure ProcessShield implements domain.ShieldController.
var _ domain.ShieldController = (*ProcessShield)(nil)
