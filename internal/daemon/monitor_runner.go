package daemon

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
	"github.com/eliteGoblin/focusd/schedmon/internal/window"
)

// MonitorEvent names a window boundary reported by the platform.
type MonitorEvent string

const (
	EventWindowStart MonitorEvent = "start"
	EventWindowEnd   MonitorEvent = "end"
)

// MonitorRunner is the sandboxed interval-monitor callback. It runs in a
// separate short-lived process with no access to the primary's memory, so it
// re-derives the decision for the single reported schedule from the shared
// store alone and applies shields itself. It is a redundant, best-effort
// backstop behind the primary evaluator; both converge because both compute
// from the same durable state.
type MonitorRunner struct {
	store    domain.StateStore
	shield   domain.ShieldController
	override domain.OverrideGate
	logger   *zap.Logger
}

// NewMonitorRunner creates a sandboxed monitor runner.
func NewMonitorRunner(
	store domain.StateStore,
	shield domain.ShieldController,
	override domain.OverrideGate,
	logger *zap.Logger,
) *MonitorRunner {
	return &MonitorRunner{
		store:    store,
		shield:   shield,
		override: override,
		logger:   logger,
	}
}

// RunOnce handles one boundary event for one schedule. Mirrors the
// evaluator's decision steps restricted to that schedule; anything that
// would need the full candidate set is left for the primary's next run.
func (r *MonitorRunner) RunOnce(scheduleID string, event MonitorEvent, now time.Time) error {
	today := domain.DateKey(now)
	if err := r.store.PruneSkipped(today); err != nil {
		r.logger.Warn("skip ledger gc failed", zap.Error(err))
	}

	sched, err := r.store.GetSchedule(scheduleID)
	if err != nil {
		return fmt.Errorf("read schedule %s: %w", scheduleID, err)
	}
	if sched == nil {
		r.logger.Warn("monitor fired for unknown schedule",
			zap.String("schedule", scheduleID))
		return nil
	}

	switch event {
	case EventWindowStart:
		return r.handleStart(*sched, now, today)
	case EventWindowEnd:
		return r.handleEnd(*sched, now, today)
	default:
		return fmt.Errorf("unknown monitor event %q", event)
	}
}

func (r *MonitorRunner) handleStart(sched domain.Schedule, now time.Time, today string) error {
	// Manual sessions suppress schedule activation unconditionally.
	if r.override.IsManualSessionActive() {
		r.logger.Info("manual session active, schedule start suppressed",
			zap.String("schedule", sched.ID))
		return nil
	}

	if !sched.Enabled || sched.ZeroLength() || !window.InWindow(sched, now) {
		return nil
	}

	if skipped, err := r.store.IsSkipped(sched.ID, today); err != nil || skipped {
		return err
	}

	// Sticky session: a valid in-window active schedule is never displaced.
	activeID, err := r.store.ActiveScheduleID()
	if err != nil {
		return fmt.Errorf("read active schedule: %w", err)
	}
	if activeID != "" && activeID != sched.ID {
		active, err := r.store.GetSchedule(activeID)
		if err != nil {
			return fmt.Errorf("read schedule %s: %w", activeID, err)
		}
		if active != nil && active.Enabled && window.InWindow(*active, now) {
			if skipped, _ := r.store.IsSkipped(active.ID, today); !skipped {
				return nil
			}
		}
	}

	mode, err := r.store.GetMode(sched.ModeID)
	if err != nil {
		return fmt.Errorf("read mode %s: %w", sched.ModeID, err)
	}
	if mode == nil {
		r.logger.Warn("schedule references missing mode, start ignored",
			zap.String("schedule", sched.ID),
			zap.String("mode", sched.ModeID))
		return nil
	}

	if err := r.store.SetActiveScheduleID(sched.ID); err != nil {
		return fmt.Errorf("record active schedule: %w", err)
	}
	if err := r.shield.Apply(mode.Selection); err != nil {
		return fmt.Errorf("apply shields for %s: %w", sched.ID, err)
	}
	r.logger.Info("schedule activated by monitor", zap.String("schedule", sched.ID))
	return nil
}

func (r *MonitorRunner) handleEnd(sched domain.Schedule, now time.Time, today string) error {
	activeID, err := r.store.ActiveScheduleID()
	if err != nil {
		return fmt.Errorf("read active schedule: %w", err)
	}
	if activeID != sched.ID {
		return nil
	}

	// The reported boundary is advisory; the event may arrive late,
	// duplicated, or spuriously. Recompute from durable state and keep a
	// still-live session rather than trusting the event.
	if sched.Enabled && window.InWindow(sched, now) {
		if skipped, err := r.store.IsSkipped(sched.ID, today); err == nil && !skipped {
			r.logger.Info("end event ignored, window still live",
				zap.String("schedule", sched.ID))
			return nil
		}
	}

	// A manual-end-only window keeps its shields past the boundary.
	if sched.ManualEndOnly {
		r.logger.Info("window elapsed but schedule requires manual end",
			zap.String("schedule", sched.ID))
		return nil
	}

	if err := r.shield.Clear(); err != nil {
		return fmt.Errorf("clear shields: %w", err)
	}
	if err := r.store.ClearActiveScheduleID(); err != nil {
		return fmt.Errorf("clear active schedule: %w", err)
	}
	r.logger.Info("schedule deactivated by monitor", zap.String("schedule", sched.ID))
	return nil
}
