package usecase

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

// weekdayNames renders a repeat-day set for notification copy.
func weekdayNames(days []time.Weekday) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	return out
}

// Registrar maintains the persisted schedule/mode records, the OS window
// monitor registrations, and the informational start notifications. It is
// the write path the configuration layer calls; the evaluator only reads.
type Registrar struct {
	store    domain.StateStore
	monitor  domain.WindowMonitor
	notifier domain.Notifier
	logger   *zap.Logger
}

// NewRegistrar creates a schedule registrar.
func NewRegistrar(
	store domain.StateStore,
	monitor domain.WindowMonitor,
	notifier domain.Notifier,
	logger *zap.Logger,
) *Registrar {
	return &Registrar{
		store:    store,
		monitor:  monitor,
		notifier: notifier,
		logger:   logger,
	}
}

// RegisterSchedule persists a schedule together with its mode mapping and
// starts boundary monitoring for it. A zero-length window is rejected
// outright rather than persisted in a state the evaluator would only skip.
func (r *Registrar) RegisterSchedule(s domain.Schedule, m domain.Mode) error {
	if s.ZeroLength() {
		return fmt.Errorf("schedule %s: start and end are equal, window would never activate", s.ID)
	}
	if s.ModeID != m.ID {
		return fmt.Errorf("schedule %s references mode %s but %s was supplied", s.ID, s.ModeID, m.ID)
	}

	if err := r.store.PutMode(m); err != nil {
		return fmt.Errorf("persist mode %s: %w", m.ID, err)
	}
	if err := r.store.PutSchedule(s); err != nil {
		return fmt.Errorf("persist schedule %s: %w", s.ID, err)
	}

	if s.Enabled {
		// Registration failure is not fatal: the schedule stays intended
		// and the next registration attempt picks it up.
		if err := r.monitor.Register(s); err != nil {
			r.logger.Warn("window monitor registration failed",
				zap.String("schedule", s.ID), zap.Error(err))
		}
		r.notifier.ScheduleStart(s.ID, s.StartMinute, weekdayNames(s.RepeatDays))
	}
	return nil
}

// UnregisterSchedule deletes a schedule, purging its skip-ledger entries and
// its persisted mode mapping, and stops boundary monitoring. The mode record
// is removed too unless another schedule still references it.
func (r *Registrar) UnregisterSchedule(scheduleID string) error {
	if err := r.monitor.Unregister(scheduleID); err != nil {
		r.logger.Warn("window monitor unregistration failed",
			zap.String("schedule", scheduleID), zap.Error(err))
	}
	r.notifier.CancelFor(scheduleID)

	sched, err := r.store.GetSchedule(scheduleID)
	if err != nil {
		return fmt.Errorf("read schedule %s: %w", scheduleID, err)
	}

	if err := r.store.DeleteSchedule(scheduleID); err != nil {
		return fmt.Errorf("delete schedule %s: %w", scheduleID, err)
	}
	if sched == nil {
		return nil
	}

	remaining, err := r.store.ListSchedules()
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}
	for _, s := range remaining {
		if s.ModeID == sched.ModeID {
			return nil
		}
	}
	if err := r.store.DeleteMode(sched.ModeID); err != nil {
		return fmt.Errorf("delete mode %s: %w", sched.ModeID, err)
	}
	return nil
}

// ReregisterAll reconciles monitor registrations against the desired
// schedule set differentially: newly-enabled schedules start monitoring,
// removed or disabled ones stop, and schedules already registered are left
// untouched so in-flight OS registrations are not disturbed.
func (r *Registrar) ReregisterAll(schedules []domain.Schedule, modes []domain.Mode) error {
	for _, m := range modes {
		if err := r.store.PutMode(m); err != nil {
			return fmt.Errorf("persist mode %s: %w", m.ID, err)
		}
	}

	desired := make(map[string]domain.Schedule, len(schedules))
	for _, s := range schedules {
		if err := r.store.PutSchedule(s); err != nil {
			return fmt.Errorf("persist schedule %s: %w", s.ID, err)
		}
		if s.Enabled && !s.ZeroLength() {
			desired[s.ID] = s
		}
	}

	registered, err := r.monitor.Registered()
	if err != nil {
		return fmt.Errorf("list monitor registrations: %w", err)
	}
	current := make(map[string]bool, len(registered))
	for _, id := range registered {
		current[id] = true
	}

	for id := range current {
		if _, ok := desired[id]; !ok {
			if err := r.monitor.Unregister(id); err != nil {
				r.logger.Warn("window monitor unregistration failed",
					zap.String("schedule", id), zap.Error(err))
			}
			r.notifier.CancelFor(id)
		}
	}

	for id, s := range desired {
		if current[id] {
			continue
		}
		if err := r.monitor.Register(s); err != nil {
			r.logger.Warn("window monitor registration failed",
				zap.String("schedule", id), zap.Error(err))
			continue
		}
		r.notifier.ScheduleStart(s.ID, s.StartMinute, weekdayNames(s.RepeatDays))
	}
	return nil
}

// SetEnabled toggles a schedule's enabled flag and adjusts its monitor
// registration accordingly.
func (r *Registrar) SetEnabled(scheduleID string, enabled bool) error {
	s, err := r.store.GetSchedule(scheduleID)
	if err != nil {
		return fmt.Errorf("read schedule %s: %w", scheduleID, err)
	}
	if s == nil {
		return fmt.Errorf("schedule %s not found", scheduleID)
	}
	if s.Enabled == enabled {
		return nil
	}

	s.Enabled = enabled
	if err := r.store.PutSchedule(*s); err != nil {
		return fmt.Errorf("persist schedule %s: %w", scheduleID, err)
	}

	if enabled {
		if err := r.monitor.Register(*s); err != nil {
			r.logger.Warn("window monitor registration failed",
				zap.String("schedule", scheduleID), zap.Error(err))
		}
		r.notifier.ScheduleStart(s.ID, s.StartMinute, weekdayNames(s.RepeatDays))
	} else {
		if err := r.monitor.Unregister(scheduleID); err != nil {
			r.logger.Warn("window monitor unregistration failed",
				zap.String("schedule", scheduleID), zap.Error(err))
		}
		r.notifier.CancelFor(scheduleID)
	}
	return nil
}
