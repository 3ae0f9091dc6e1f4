// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// DateKey formats an instant as the calendar-day key used by the skip ledger.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ResourceSelection is an opaque handle for a set of resources to enforce.
// The engine never inspects it; only the shield controller interprets it.
type ResourceSelection struct {
	ProcessPatterns []string `json:"process_patterns"`
}

// IsEmpty reports whether the selection names no resources at all.
func (s ResourceSelection) IsEmpty() bool {
	return len(s.ProcessPatterns) == 0
}

// Mode is a named resource-set. Owned by the configuration layer; the engine
// holds schedules referencing modes by id, resolved at evaluation time.
type Mode struct {
	ID        string
	Name      string
	Selection ResourceSelection
}

// Schedule is a recurring, weekday-scoped time window bound to a Mode.
// Created and edited by the configuration layer; read-only to the engine.
type Schedule struct {
	ID            string
	ModeID        string
	StartMinute   int // minutes since midnight, 0..1439
	EndMinute     int // minutes since midnight; EndMinute <= StartMinute crosses midnight
	RepeatDays    []time.Weekday
	Enabled       bool
	ManualEndOnly bool // window does not auto-clear at EndMinute
}

// RepeatsOn reports whether the schedule recurs on the given weekday.
func (s Schedule) RepeatsOn(d time.Weekday) bool {
	for _, rd := range s.RepeatDays {
		if rd == d {
			return true
		}
	}
	return false
}

// ZeroLength reports whether the window spans no time at all.
// Zero-length windows are a configuration error and never activate.
func (s Schedule) ZeroLength() bool {
	return s.StartMinute == s.EndMinute
}

// DecisionKind classifies the outcome of a schedule evaluation.
type DecisionKind int

const (
	// DecisionKeep re-applies the currently active schedule's resource set.
	DecisionKeep DecisionKind = iota
	// DecisionActivate switches enforcement to a new schedule.
	DecisionActivate
	// DecisionClear removes the active schedule and its resource set.
	DecisionClear
)

// String returns a human-readable name for logging.
func (k DecisionKind) String() string {
	switch k {
	case DecisionKeep:
		return "keep"
	case DecisionActivate:
		return "activate"
	case DecisionClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Decision is the result of one evaluator run. Schedule and Mode are set for
// Keep and Activate; both are nil for Clear.
type Decision struct {
	Kind     DecisionKind
	Schedule *Schedule
	Mode     *Mode
}
