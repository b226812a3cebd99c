package toast_test

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/internal/eventbus"
	"taskdesk/internal/toast"
	"taskdesk/internal/toast/toasttest"
	"taskdesk/pkg/logx"
)

type fixture struct {
	svc      *toast.Service
	clock    *toasttest.Clock
	surface  *toasttest.Surface
	fallback *toasttest.Fallback
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		clock:    toasttest.NewClock(time.Time{}),
		surface:  &toasttest.Surface{},
		fallback: &toasttest.Fallback{},
	}
	f.svc = toast.New(toast.Config{}, logx.Nop(), nil,
		toast.WithClock(f.clock),
		toast.WithSurface(f.surface),
		toast.WithFallback(f.fallback),
	)
	return f
}

func ids(ts []toast.Toast) []toast.ID {
	out := make([]toast.ID, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestNotifyShowsOneToastPerSeverity(t *testing.T) {
	for _, sev := range toast.Severities {
		t.Run(string(sev), func(t *testing.T) {
			f := newFixture(t)
			f.svc.Notify("Title", "Body", sev)

			stack := f.surface.Stack()
			require.Len(t, stack, 1)
			assert.Equal(t, sev, stack[0].Severity)
			assert.Equal(t, toast.StateDisplayed, stack[0].State)
		})
	}
}

func TestNotifyDefaultsToInfo(t *testing.T) {
	f := newFixture(t)
	f.svc.Notify("Heads up", "no severity", "")
	f.svc.Notify("Heads up", "bogus severity", "purple")
	f.svc.Notify("Oops", "alias", "error")

	stack := f.surface.Stack()
	require.Len(t, stack, 3)
	assert.Equal(t, toast.SeverityInfo, stack[0].Severity)
	assert.Equal(t, toast.SeverityInfo, stack[1].Severity)
	assert.Equal(t, toast.SeverityDanger, stack[2].Severity)
}

func TestNotifyStacksInCallOrder(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.svc.Notify("n", fmt.Sprint(i), toast.SeverityInfo)
	}

	active := f.svc.Active()
	require.Len(t, active, 5)
	for i, tt := range active {
		assert.Equal(t, fmt.Sprint(i), tt.Body)
	}
	assert.Equal(t, ids(active), ids(f.surface.Stack()))
}

func TestToastAutoDismissesAfterFixedDuration(t *testing.T) {
	f := newFixture(t)
	f.svc.Notify("Success", "Task marked complete", toast.SeveritySuccess)

	stack := f.surface.Stack()
	require.Len(t, stack, 1)
	assert.Equal(t, "Success: Task marked complete", stack[0].Text())
	assert.Equal(t, toast.SeveritySuccess, stack[0].Severity)

	f.clock.Advance(4999 * time.Millisecond)
	assert.Len(t, f.svc.Active(), 1)

	f.clock.Advance(time.Millisecond)
	assert.Empty(t, f.svc.Active())
	assert.Empty(t, f.surface.Stack())
	assert.Equal(t, []toast.ID{stack[0].ID}, f.surface.Removed())
}

func TestManualDismissWinsOverTimer(t *testing.T) {
	f := newFixture(t)
	f.svc.Notify("Info", "closing soon", toast.SeverityInfo)
	id := f.svc.Active()[0].ID

	f.clock.Advance(time.Second)
	require.True(t, f.svc.Dismiss(id))
	assert.Empty(t, f.surface.Stack())
	assert.Equal(t, 0, f.clock.Pending(), "timer must be cancelled")

	f.clock.Advance(10 * time.Second)
	assert.False(t, f.svc.Dismiss(id))
	assert.Equal(t, []toast.ID{id}, f.surface.Removed(), "exactly one removal")
}

func TestDismissAfterTimeoutIsNoop(t *testing.T) {
	f := newFixture(t)
	f.svc.Notify("Info", "expires", toast.SeverityInfo)
	id := f.svc.Active()[0].ID

	f.clock.Advance(toast.DefaultDismissAfter)
	assert.False(t, f.svc.Dismiss(id))
	assert.Len(t, f.surface.Removed(), 1)
}

func TestDismissingOneLeavesOthers(t *testing.T) {
	f := newFixture(t)
	f.svc.Notify("a", "1", toast.SeverityInfo)
	f.clock.Advance(time.Second)
	f.svc.Notify("b", "2", toast.SeverityWarning)
	f.clock.Advance(time.Second)
	f.svc.Notify("c", "3", toast.SeveritySuccess)

	active := f.svc.Active()
	require.True(t, f.svc.Dismiss(active[1].ID))
	assert.Equal(t, []toast.ID{active[0].ID, active[2].ID}, ids(f.svc.Active()))

	// The others keep their own deadlines.
	f.clock.Advance(3 * time.Second)
	assert.Equal(t, []toast.ID{active[2].ID}, ids(f.svc.Active()))
	f.clock.Advance(2 * time.Second)
	assert.Empty(t, f.svc.Active())
}

func TestErrorToastJoinsExistingStack(t *testing.T) {
	f := newFixture(t)
	f.svc.Notify("Success", "Task completed", toast.SeveritySuccess)
	f.svc.Notify("Info", "Reminders scheduled to be sent", toast.SeverityInfo)
	f.clock.Advance(2 * time.Second)

	f.svc.Notify("Error", "Failed to update task status", toast.SeverityDanger)

	stack := f.surface.Stack()
	require.Len(t, stack, 3)
	assert.Equal(t, "Error: Failed to update task status", stack[2].Text())
	assert.Equal(t, toast.SeverityDanger, stack[2].Severity)

	f.clock.Advance(3 * time.Second)
	require.Len(t, f.svc.Active(), 1)
	assert.Equal(t, stack[2].ID, f.svc.Active()[0].ID)
}

func TestFallbackWhenSurfaceFails(t *testing.T) {
	f := newFixture(t)
	f.surface.Broken = true

	assert.NotPanics(t, func() { f.svc.Notify("Error", "Failed to export data. Please try again.", toast.SeverityDanger) })
	assert.Empty(t, f.svc.Active())
	assert.Equal(t, []string{"Error: Failed to export data. Please try again."}, f.fallback.Alerts())
	assert.Equal(t, 0, f.clock.Pending())
}

func TestFallbackWhenSurfacePanics(t *testing.T) {
	f := newFixture(t)
	f.surface.Panic = true

	assert.NotPanics(t, func() { f.svc.Notify("Warning", "No charts found to export", toast.SeverityWarning) })
	assert.Equal(t, []string{"Warning: No charts found to export"}, f.fallback.Alerts())
}

type panickyFallback struct{}

func (panickyFallback) Alert(string, string) { panic("alert unavailable") }

func TestFallbackNeverPanics(t *testing.T) {
	svc := toast.New(toast.Config{}, logx.Nop(), nil, toast.WithFallback(panickyFallback{}))
	assert.NotPanics(t, func() { svc.Notify("Error", "nothing can render this", toast.SeverityDanger) })
}

func TestWriterFallbackWritesAlertLine(t *testing.T) {
	var buf bytes.Buffer
	svc := toast.New(toast.Config{}, logx.Nop(), nil, toast.WithFallback(&toast.WriterFallback{W: &buf}))

	svc.Notify("Error", "An error occurred while updating task status", toast.SeverityDanger)
	assert.Equal(t, "Error: An error occurred while updating task status\n", buf.String())
}

func TestSurfaceAttachedLater(t *testing.T) {
	clock := toasttest.NewClock(time.Time{})
	fb := &toasttest.Fallback{}
	svc := toast.New(toast.Config{}, logx.Nop(), nil, toast.WithClock(clock), toast.WithFallback(fb))

	svc.Notify("early", "bird", toast.SeverityInfo)
	require.Len(t, fb.Alerts(), 1)

	first := &toasttest.Surface{}
	svc.SetSurface(first)
	svc.Notify("on", "first", toast.SeverityInfo)

	second := &toasttest.Surface{}
	svc.SetSurface(second)
	clock.Advance(toast.DefaultDismissAfter)

	assert.Len(t, first.Removed(), 1, "removal goes to the surface that showed it")
	assert.Empty(t, second.Removed())
}

func TestApplyChangesDurationForNewToasts(t *testing.T) {
	f := newFixture(t)
	f.svc.Notify("old", "5s", toast.SeverityInfo)
	f.svc.Apply(toast.Config{DismissAfter: time.Second})
	f.svc.Notify("new", "1s", toast.SeverityInfo)

	f.clock.Advance(time.Second)
	active := f.svc.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "old", active[0].Title)

	f.svc.Apply(toast.Config{})
	assert.Equal(t, toast.DefaultDismissAfter, f.svc.DismissAfter())
}

func TestLifecycleEventsPublished(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	clock := toasttest.NewClock(time.Time{})
	svc := toast.New(toast.Config{}, logx.Nop(), bus, toast.WithClock(clock), toast.WithSurface(&toasttest.Surface{}))
	svc.Notify("Success", "done", toast.SeveritySuccess)
	id := svc.Active()[0].ID
	svc.Dismiss(id)

	shown := <-events
	gone := <-events
	assert.Equal(t, toast.EventDisplayed, shown.Type)
	assert.Equal(t, toast.EventDismissed, gone.Type)

	dismissed, ok := gone.Data.(toast.Toast)
	require.True(t, ok)
	assert.Equal(t, toast.StateDismissed, dismissed.State)
	assert.Equal(t, toast.ReasonUser, dismissed.Reason)
}

func TestConcurrentNotifyAndDismiss(t *testing.T) {
	svc := toast.New(toast.Config{DismissAfter: time.Hour}, logx.Nop(), nil, toast.WithSurface(&toasttest.Surface{}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Notify("load", "test", toast.SeverityInfo)
		}()
	}
	wg.Wait()
	require.Len(t, svc.Active(), 50)

	for _, tt := range svc.Active() {
		wg.Add(2)
		go func(id toast.ID) { defer wg.Done(); svc.Dismiss(id) }(tt.ID)
		go func(id toast.ID) { defer wg.Done(); svc.Dismiss(id) }(tt.ID)
	}
	wg.Wait()
	assert.Empty(t, svc.Active())
}

func TestRealClockDismisses(t *testing.T) {
	surface := &toasttest.Surface{}
	svc := toast.New(toast.Config{DismissAfter: 20 * time.Millisecond}, logx.Nop(), nil, toast.WithSurface(surface))
	svc.Notify("Info", "short lived", toast.SeverityInfo)

	require.Eventually(t, func() bool { return len(svc.Active()) == 0 }, time.Second, 5*time.Millisecond)
	assert.Len(t, surface.Removed(), 1)
}
