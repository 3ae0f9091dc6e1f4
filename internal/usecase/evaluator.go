// Package usecase contains application business logic.
package usecase

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
	"github.com/eliteGoblin/focusd/schedmon/internal/window"
)

// Engine is the schedule evaluator. Every run recomputes the full decision
// from durable state, so invoking it any number of times from any trigger
// source converges to the same outcome.
type Engine struct {
	store    domain.StateStore
	modes    domain.ModeResolver
	shield   domain.ShieldController
	override domain.OverrideGate
	logger   *zap.Logger
}

// NewEngine creates a schedule evaluator.
func NewEngine(
	store domain.StateStore,
	modes domain.ModeResolver,
	shield domain.ShieldController,
	override domain.OverrideGate,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:    store,
		modes:    modes,
		shield:   shield,
		override: override,
		logger:   logger,
	}
}

// Evaluate decides what should be enforced at the given instant. It has no
// side effects beyond skip-ledger garbage collection; Apply performs the
// store write and the enforcement call.
func (e *Engine) Evaluate(now time.Time) (domain.Decision, error) {
	today := domain.DateKey(now)

	if err := e.store.PruneSkipped(today); err != nil {
		e.logger.Warn("skip ledger gc failed", zap.Error(err))
	}

	// A manual session suppresses schedule activation unconditionally.
	// Clear here governs the schedule slot only; the manual session's own
	// shields live in a separate slot and are untouched.
	if e.override.IsManualSessionActive() {
		return domain.Decision{Kind: domain.DecisionClear}, nil
	}

	activeID, err := e.store.ActiveScheduleID()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("read active schedule: %w", err)
	}

	var active *domain.Schedule
	if activeID != "" {
		active, err = e.store.GetSchedule(activeID)
		if err != nil {
			return domain.Decision{}, fmt.Errorf("read schedule %s: %w", activeID, err)
		}
	}

	// Sticky session: while the active schedule is still valid and
	// in-window it is never displaced, and its resource set is re-applied
	// unconditionally so a crash or reboot recovers to the same shields.
	if active != nil && active.Enabled && window.InWindow(*active, now) {
		if skipped, _ := e.store.IsSkipped(active.ID, today); !skipped {
			if mode := e.resolveMode(active.ModeID, active.ID); mode != nil {
				return domain.Decision{Kind: domain.DecisionKeep, Schedule: active, Mode: mode}, nil
			}
		}
	}

	candidates, err := e.collectCandidates(now, today)
	if err != nil {
		return domain.Decision{}, err
	}

	if len(candidates) == 0 {
		// A manual-end-only window that merely elapsed keeps its shields
		// until an explicit end action.
		if active != nil && active.Enabled && active.ManualEndOnly {
			if skipped, _ := e.store.IsSkipped(active.ID, today); !skipped {
				if mode := e.resolveMode(active.ModeID, active.ID); mode != nil {
					return domain.Decision{Kind: domain.DecisionKeep, Schedule: active, Mode: mode}, nil
				}
			}
		}
		return domain.Decision{Kind: domain.DecisionClear}, nil
	}

	// Start-time primacy, id as a deterministic tiebreak.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sched.StartMinute != candidates[j].sched.StartMinute {
			return candidates[i].sched.StartMinute < candidates[j].sched.StartMinute
		}
		return candidates[i].sched.ID < candidates[j].sched.ID
	})

	winner := candidates[0]
	return domain.Decision{
		Kind:     domain.DecisionActivate,
		Schedule: &winner.sched,
		Mode:     winner.mode,
	}, nil
}

type candidate struct {
	sched domain.Schedule
	mode  *domain.Mode
}

func (e *Engine) collectCandidates(now time.Time, today string) ([]candidate, error) {
	schedules, err := e.store.ListSchedules()
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	var out []candidate
	for _, s := range schedules {
		if !s.Enabled {
			continue
		}
		if s.ZeroLength() {
			e.logger.Warn("schedule has zero-length window, excluded",
				zap.String("schedule", s.ID))
			continue
		}
		if !window.InWindow(s, now) {
			continue
		}
		if skipped, err := e.store.IsSkipped(s.ID, today); err != nil || skipped {
			continue
		}
		mode := e.resolveMode(s.ModeID, s.ID)
		if mode == nil {
			continue
		}
		out = append(out, candidate{sched: s, mode: mode})
	}
	return out, nil
}

// resolveMode looks up a schedule's mode. A missing mode invalidates the
// schedule for this run but is never fatal.
func (e *Engine) resolveMode(modeID, scheduleID string) *domain.Mode {
	mode, err := e.modes.Resolve(modeID)
	if err != nil {
		e.logger.Warn("mode lookup failed",
			zap.String("schedule", scheduleID),
			zap.String("mode", modeID),
			zap.Error(err))
		return nil
	}
	if mode == nil {
		e.logger.Warn("schedule references missing mode, excluded",
			zap.String("schedule", scheduleID),
			zap.String("mode", modeID))
		return nil
	}
	return mode
}

// Apply performs the side effects a decision calls for: the store write and
// the enforcement call. Safe to repeat; applying the same decision twice
// leaves store and shields unchanged.
func (e *Engine) Apply(d domain.Decision) error {
	switch d.Kind {
	case domain.DecisionActivate:
		if err := e.store.SetActiveScheduleID(d.Schedule.ID); err != nil {
			return fmt.Errorf("record active schedule: %w", err)
		}
		if err := e.shield.Apply(d.Mode.Selection); err != nil {
			return fmt.Errorf("apply shields for %s: %w", d.Schedule.ID, err)
		}
		e.logger.Info("schedule activated",
			zap.String("schedule", d.Schedule.ID),
			zap.String("mode", d.Mode.ID))

	case domain.DecisionKeep:
		// Re-apply unconditionally so a restarted process converges to
		// the same enforcement state.
		if err := e.shield.Apply(d.Mode.Selection); err != nil {
			return fmt.Errorf("reapply shields for %s: %w", d.Schedule.ID, err)
		}

	case domain.DecisionClear:
		if err := e.store.ClearActiveScheduleID(); err != nil {
			return fmt.Errorf("clear active schedule: %w", err)
		}
		if err := e.shield.Clear(); err != nil {
			return fmt.Errorf("clear shields: %w", err)
		}
	}
	return nil
}

// Reconcile runs one full evaluate-and-apply cycle. This is the single
// entry point every trigger source funnels into.
func (e *Engine) Reconcile(now time.Time) (domain.Decision, error) {
	d, err := e.Evaluate(now)
	if err != nil {
		return domain.Decision{}, err
	}
	if err := e.Apply(d); err != nil {
		return d, err
	}
	return d, nil
}

// EndActiveSchedule ends the current session early. The schedule is
// suppressed for the rest of the calendar day, shields come down, and a
// handoff re-evaluation runs immediately so an overlapping schedule can
// take over in the same instant. The handoff honors the fresh skip entry,
// so the just-ended schedule cannot win its own handoff.
func (e *Engine) EndActiveSchedule(now time.Time) error {
	activeID, err := e.store.ActiveScheduleID()
	if err != nil {
		return fmt.Errorf("read active schedule: %w", err)
	}
	if activeID == "" {
		return nil
	}

	if err := e.store.MarkSkipped(activeID, domain.DateKey(now)); err != nil {
		return fmt.Errorf("record skip for %s: %w", activeID, err)
	}
	if err := e.shield.Clear(); err != nil {
		e.logger.Warn("failed to clear shields on manual end", zap.Error(err))
	}
	if err := e.store.ClearActiveScheduleID(); err != nil {
		return fmt.Errorf("clear active schedule: %w", err)
	}

	e.logger.Info("schedule ended manually", zap.String("schedule", activeID))

	// Handoff: let a second, overlapping, still-in-window schedule take
	// over without waiting for the next external trigger.
	if _, err := e.Reconcile(now); err != nil {
		e.logger.Warn("handoff reconciliation failed", zap.Error(err))
	}
	return nil
}
