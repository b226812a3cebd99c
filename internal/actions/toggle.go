package actions

import (
	"context"
	"strings"

	"taskdesk/internal/taskapi"
	"taskdesk/internal/toast"
	"taskdesk/pkg/logx"
)

// TaskState is a task's completion state as reported after a toggle.
type TaskState int

const (
	// StateUnknown means the view should be left as it is.
	StateUnknown TaskState = iota
	StateOpen
	StateDone
)

func (s TaskState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

const (
	msgToggleFailed = "Failed to update task status"
	msgToggleError  = "An error occurred while updating task status"
)

// Toggle flips a task and reports the outcome with exactly one toast.
func (a *Actions) Toggle(ctx context.Context, id int64) TaskState {
	res, err := a.api.Toggle(ctx, id)
	if err != nil {
		a.log.Warn("toggle request failed", logx.Int64("task", id), logx.Err(err))
		a.n.Notify("Error", msgToggleError, toast.SeverityDanger)
		return StateUnknown
	}
	if !res.Success {
		a.log.Info("toggle rejected", logx.Int64("task", id), logx.String("message", res.Message))
		a.n.Notify("Error", msgToggleFailed, toast.SeverityDanger)
		return StateUnknown
	}
	a.n.Notify("Success", res.Message, toast.SeveritySuccess)
	return stateFromStatus(res.Status)
}

// stateFromStatus reads the explicit status field. The message text is never
// inspected.
func stateFromStatus(status string) TaskState {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "":
		return StateUnknown
	case taskapi.StatusDone:
		return StateDone
	default:
		return StateOpen
	}
}
