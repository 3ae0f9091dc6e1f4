package infra

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

// LogNotifier implements domain.Notifier by logging the notification
// schedule. The real notification delivery is a platform concern; the
// engine only announces intent and never reads notification state back.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a logging notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// ScheduleStart records that a start notification should fire for the
// schedule on each of its repeat days.
func (n *LogNotifier) ScheduleStart(scheduleID string, startMinute int, days []string) {
	n.logger.Info("start notification scheduled",
		zap.String("schedule", scheduleID),
		zap.Int("start_minute", startMinute),
		zap.Strings("days", days))
}

// CancelFor drops any pending start notifications for the schedule.
func (n *LogNotifier) CancelFor(scheduleID string) {
	n.logger.Info("start notifications cancelled",
		zap.String("schedule", scheduleID))
}

// Ensure LogNotifier implements domain.Notifier.
var _ domain.Notifier = (*LogNotifier)(nil)
