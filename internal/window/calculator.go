// Package window implements the pure time math for recurring schedule
// windows: the in-window predicate and the next-transition scan.
package window

import (
	"time"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

// lookaheadDays bounds the next-transition scan. Every repeat-day pattern
// produces an occurrence within a week, so 7 days (plus one for
// midnight-crossing ends) covers all of them.
const lookaheadDays = 7

// MinuteOfDay converts an instant to minutes since local midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// InWindow reports whether the schedule's window contains the given instant.
//
// Same-day windows (end > start) match when start <= m < end on a repeat
// day. Midnight-crossing windows (end <= start) match either after start on
// a repeat day, or before end on the day following a repeat day. A
// zero-length window (start == end) never matches; it is a configuration
// error flagged upstream.
func InWindow(s domain.Schedule, now time.Time) bool {
	if s.ZeroLength() {
		return false
	}

	m := MinuteOfDay(now)
	today := now.Weekday()
	yesterday := (today + 6) % 7

	if s.EndMinute > s.StartMinute {
		return m >= s.StartMinute && m < s.EndMinute && s.RepeatsOn(today)
	}

	// Crosses midnight: the tail before EndMinute belongs to the window
	// that started the previous day.
	if m >= s.StartMinute && s.RepeatsOn(today) {
		return true
	}
	return m < s.EndMinute && s.RepeatsOn(yesterday)
}

// NextTransition returns the nearest start or end instant strictly after now
// across all enabled schedules, scanning up to 7 days ahead. The boolean is
// false when no enabled schedule has a repeat day.
//
// Used only as a deadline hint for the opportunistic background wake; the
// caller falls back to a fixed horizon when no transition exists.
func NextTransition(schedules []domain.Schedule, now time.Time) (time.Time, bool) {
	var best time.Time
	found := false

	consider := func(t time.Time) {
		if !t.After(now) {
			return
		}
		if !found || t.Before(best) {
			best = t
			found = true
		}
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, s := range schedules {
		if !s.Enabled || len(s.RepeatDays) == 0 || s.ZeroLength() {
			continue
		}
		for offset := 0; offset <= lookaheadDays; offset++ {
			day := midnight.AddDate(0, 0, offset)
			if !s.RepeatsOn(day.Weekday()) {
				continue
			}
			start := day.Add(time.Duration(s.StartMinute) * time.Minute)
			consider(start)

			end := day.Add(time.Duration(s.EndMinute) * time.Minute)
			if s.EndMinute <= s.StartMinute {
				// Midnight-crossing window ends the following day.
				end = end.AddDate(0, 0, 1)
			}
			consider(end)
		}
	}

	return best, found
}

// NextStartWithin returns the earliest upcoming start instant no further
// than horizon from now, considering only enabled schedules. Used to arm
// the in-process imminent timer for transitions the coarse background wake
// would miss.
func NextStartWithin(schedules []domain.Schedule, now time.Time, horizon time.Duration) (time.Time, bool) {
	var best time.Time
	found := false

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	limit := now.Add(horizon)

	for _, s := range schedules {
		if !s.Enabled || len(s.RepeatDays) == 0 || s.ZeroLength() {
			continue
		}
		// A start within a sub-day horizon is on today's or tomorrow's date.
		for offset := 0; offset <= 1; offset++ {
			day := midnight.AddDate(0, 0, offset)
			if !s.RepeatsOn(day.Weekday()) {
				continue
			}
			start := day.Add(time.Duration(s.StartMinute) * time.Minute)
			if !start.After(now) || start.After(limit) {
				continue
			}
			if !found || start.Before(best) {
				best = start
				found = true
			}
		}
	}

	return best, found
}
