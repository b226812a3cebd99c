// Package actions implements the user operations that report their outcome
// as toasts: toggling a task, exporting data and charts, refreshing the
// view, scheduling reminders and watching for overdue tasks.
package actions

import (
	"context"
	"sync/atomic"
	"time"

	"taskdesk/internal/taskapi"
	"taskdesk/internal/toast"
	"taskdesk/pkg/logx"
)

// Notifier is the toast entry point the actions report through.
type Notifier interface {
	Notify(title, body string, sev toast.Severity)
}

// TaskAPI is the subset of taskapi.Client the actions call.
type TaskAPI interface {
	Toggle(ctx context.Context, id int64) (taskapi.ToggleResult, error)
	ExportData(ctx context.Context) error
	Overdue(ctx context.Context) (taskapi.OverdueResult, error)
	ScheduleReminders(ctx context.Context) (taskapi.ReminderResult, error)
}

const DefaultRefreshDelay = 500 * time.Millisecond

type Actions struct {
	api   TaskAPI
	n     Notifier
	log   logx.Logger
	clock toast.Clock

	refreshDelay atomic.Int64
}

type Option func(*Actions)

func WithClock(c toast.Clock) Option { return func(a *Actions) { a.clock = c } }

// WithRefreshDelay sets the pause before Refresh reloads; <= 0 keeps the default.
func WithRefreshDelay(d time.Duration) Option {
	return func(a *Actions) {
		a.SetRefreshDelay(d)
	}
}

// SetRefreshDelay changes the delay for later Refresh calls; <= 0 is ignored.
func (a *Actions) SetRefreshDelay(d time.Duration) {
	if d > 0 {
		a.refreshDelay.Store(int64(d))
	}
}

func New(api TaskAPI, n Notifier, log logx.Logger, opts ...Option) *Actions {
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Actions{
		api:   api,
		n:     n,
		log:   log,
		clock: toast.SystemClock{},
	}
	a.refreshDelay.Store(int64(DefaultRefreshDelay))
	for _, o := range opts {
		o(a)
	}
	return a
}
