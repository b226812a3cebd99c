package actions

import (
	"context"

	"taskdesk/internal/toast"
	"taskdesk/pkg/logx"
)

const msgRemindersFailed = "Failed to schedule reminders"

// SendReminders asks the server to send due-task reminders.
func (a *Actions) SendReminders(ctx context.Context) bool {
	res, err := a.api.ScheduleReminders(ctx)
	if err != nil || !res.Success {
		a.log.Warn("reminder request failed", logx.Err(err), logx.Bool("success", res.Success))
		a.n.Notify("Error", msgRemindersFailed, toast.SeverityDanger)
		return false
	}
	msg := res.Message
	if msg == "" {
		msg = "Reminders scheduled to be sent"
	}
	a.n.Notify("Info", msg, toast.SeverityInfo)
	return true
}
