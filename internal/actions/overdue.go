package actions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"taskdesk/internal/toast"
	"taskdesk/pkg/logx"
)

const overdueTimeout = 15 * time.Second

// OverdueWatcher polls the server on a cron schedule and raises a warning
// toast while tasks are overdue. Failures are only logged; nobody asked for
// the check, so there is nobody to tell.
type OverdueWatcher struct {
	a *Actions

	mu       sync.Mutex
	c        *cron.Cron
	schedule string
	loc      *time.Location
	ctx      context.Context
}

func (a *Actions) NewOverdueWatcher(schedule string, loc *time.Location) *OverdueWatcher {
	if loc == nil {
		loc = time.Local
	}
	return &OverdueWatcher{a: a, schedule: schedule, loc: loc}
}

// Check runs one poll and returns the overdue count (-1 on error).
func (w *OverdueWatcher) Check(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, overdueTimeout)
	defer cancel()
	res, err := w.a.api.Overdue(ctx)
	if err != nil {
		w.a.log.Warn("overdue check failed", logx.Err(err))
		return -1
	}
	if res.Count > 0 {
		w.a.n.Notify("Warning", overdueMessage(res.Count), toast.SeverityWarning)
	}
	w.a.log.Debug("overdue check", logx.Int("count", res.Count))
	return res.Count
}

func overdueMessage(n int) string {
	if n == 1 {
		return "1 task overdue"
	}
	return fmt.Sprintf("%d tasks overdue", n)
}

// Run schedules checks until ctx is done.
func (w *OverdueWatcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	err := w.restartLocked()
	w.mu.Unlock()
	if err != nil {
		return err
	}

	<-ctx.Done()

	w.mu.Lock()
	c := w.c
	w.c = nil
	w.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	w.a.log.Info("overdue watcher stopped")
	return nil
}

// Apply swaps the schedule and timezone; a running watcher is restarted.
func (w *OverdueWatcher) Apply(schedule string, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("overdue schedule %q: %w", schedule, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.schedule == schedule && w.loc.String() == loc.String() {
		return nil
	}
	w.schedule, w.loc = schedule, loc
	if w.c == nil {
		return nil
	}
	return w.restartLocked()
}

func (w *OverdueWatcher) restartLocked() error {
	if w.c != nil {
		<-w.c.Stop().Done()
	}
	c := cron.New(cron.WithLocation(w.loc))
	ctx := w.ctx
	if _, err := c.AddFunc(strings.TrimSpace(w.schedule), func() { w.Check(ctx) }); err != nil {
		w.c = nil
		return fmt.Errorf("overdue schedule %q: %w", w.schedule, err)
	}
	w.c = c
	c.Start()
	w.a.log.Info("overdue watcher scheduled", logx.String("schedule", w.schedule), logx.String("tz", w.loc.String()))
	return nil
}
