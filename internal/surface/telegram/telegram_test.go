package telegram

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"taskdesk/internal/toast"
	"taskdesk/internal/toast/toasttest"
	"taskdesk/pkg/logx"
)

type sentMsg struct {
	chat  int64
	text  string
	opts  *tele.SendOptions
	msgID int
}

type fakeAPI struct {
	mu      sync.Mutex
	next    int
	sent    []sentMsg
	deleted []int
	failing bool
	// gate, when set, holds every Send until it is closed.
	gate chan struct{}
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("telegram: Bad Request")
	}
	f.next++
	chat := to.(*tele.Chat)
	m := sentMsg{chat: chat.ID, text: what.(string), msgID: f.next}
	if len(opts) > 0 {
		m.opts, _ = opts[0].(*tele.SendOptions)
	}
	f.sent = append(f.sent, m)
	return &tele.Message{ID: f.next, Chat: chat}, nil
}

func (f *fakeAPI) Delete(msg tele.Editable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := msg.MessageSig()
	n, err := strconv.Atoi(id)
	if err != nil {
		return err
	}
	f.deleted = append(f.deleted, n)
	return nil
}

func (f *fakeAPI) snapshot() ([]sentMsg, []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...), append([]int(nil), f.deleted...)
}

func startSurface(t *testing.T, cfg Config, a api, d toast.Dismisser) *Surface {
	t.Helper()
	s, err := newSurface(cfg, a, d, logx.Nop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = s.Run(ctx); close(done) }()
	t.Cleanup(func() { cancel(); <-done })
	return s
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "✅ Success: Task marked complete", Format(toast.Toast{Title: "Success", Body: "Task marked complete", Severity: toast.SeveritySuccess}))
	assert.Equal(t, "ℹ️ plain", Format(toast.Toast{Body: "plain"}))
}

func TestNewSurfaceRequiresChat(t *testing.T) {
	_, err := newSurface(Config{}, &fakeAPI{}, nil, logx.Nop())
	assert.ErrorIs(t, err, ErrNoChat)
}

func TestShowSendsWithCloseButtonAndRemoveDeletes(t *testing.T) {
	fake := &fakeAPI{}
	s := startSurface(t, Config{ChatID: 42, ThreadID: 7, RatePerSec: 100}, fake, nil)

	require.NoError(t, s.Show(toast.Toast{ID: "toast-1", Title: "Error", Body: "Failed to update task status", Severity: toast.SeverityDanger}))
	require.Eventually(t, func() bool { return s.Pending() == 1 }, time.Second, 5*time.Millisecond)

	sent, _ := fake.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(42), sent[0].chat)
	assert.Equal(t, "❌ Error: Failed to update task status", sent[0].text)
	require.NotNil(t, sent[0].opts)
	assert.Equal(t, 7, sent[0].opts.ThreadID)
	btn := sent[0].opts.ReplyMarkup.InlineKeyboard[0][0]
	assert.Equal(t, "Close", btn.Text)
	assert.Equal(t, dismissUnique, btn.Unique)
	assert.Equal(t, "toast-1", btn.Data)

	require.NoError(t, s.Remove("toast-1"))
	require.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		_, deleted := fake.snapshot()
		return len(deleted) == 1 && deleted[0] == sent[0].msgID
	}, time.Second, 5*time.Millisecond)
}

func TestRemoveUnsentIsNoop(t *testing.T) {
	fake := &fakeAPI{failing: true}
	s := startSurface(t, Config{ChatID: 1, RatePerSec: 100}, fake, nil)

	require.NoError(t, s.Show(toast.Toast{ID: "toast-1", Body: "x"}))
	require.NoError(t, s.Remove("toast-1"))
	require.NoError(t, s.Remove("toast-404"))
	time.Sleep(20 * time.Millisecond)

	_, deleted := fake.snapshot()
	assert.Empty(t, deleted)
	assert.Equal(t, 0, s.Pending())
}

func TestQueueFull(t *testing.T) {
	s, err := newSurface(Config{ChatID: 1, QueueSize: 1}, &fakeAPI{}, nil, logx.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Show(toast.Toast{ID: "toast-1"}))
	assert.ErrorIs(t, s.Show(toast.Toast{ID: "toast-2"}), ErrQueueFull)
}

func TestCloseButtonDismissesToast(t *testing.T) {
	clock := toasttest.NewClock(time.Time{})
	svc := toast.New(toast.Config{}, logx.Nop(), nil, toast.WithClock(clock))
	fake := &fakeAPI{}
	s := startSurface(t, Config{ChatID: 1, RatePerSec: 100}, fake, svc)
	svc.SetSurface(s)

	svc.Notify("Info", "Reminders scheduled to be sent", toast.SeverityInfo)
	require.Eventually(t, func() bool { return s.Pending() == 1 }, time.Second, 5*time.Millisecond)

	id := svc.Active()[0].ID
	s.onDismiss(string(id))
	assert.Empty(t, svc.Active())
	require.Eventually(t, func() bool {
		_, deleted := fake.snapshot()
		return len(deleted) == 1
	}, time.Second, 5*time.Millisecond)

	// A second press is harmless.
	s.onDismiss(string(id))
	s.onDismiss("")
}

func TestFailingSurfaceFallsBack(t *testing.T) {
	fb := &toasttest.Fallback{}
	svc := toast.New(toast.Config{}, logx.Nop(), nil, toast.WithFallback(fb))
	s, err := newSurface(Config{ChatID: 1, QueueSize: 1}, &fakeAPI{}, svc, logx.Nop())
	require.NoError(t, err)
	svc.SetSurface(s)

	svc.Notify("a", "queued", toast.SeverityInfo)
	svc.Notify("b", "overflow", toast.SeverityInfo)
	assert.Equal(t, []string{"b: overflow"}, fb.Alerts())
}

func TestDismissWhileQueueFullStillClearsChat(t *testing.T) {
	clock := toasttest.NewClock(time.Time{})
	svc := toast.New(toast.Config{}, logx.Nop(), nil, toast.WithClock(clock))
	fake := &fakeAPI{}
	s, err := newSurface(Config{ChatID: 1, RatePerSec: 100, QueueSize: 1}, fake, svc, logx.Nop())
	require.NoError(t, err)
	svc.SetSurface(s)

	svc.Notify("Warning", "3 tasks overdue", toast.SeverityWarning)
	clock.Advance(toast.DefaultDismissAfter)
	require.Empty(t, svc.Active())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = s.Run(ctx); close(done) }()
	defer func() { cancel(); <-done }()

	require.Eventually(t, func() bool { return len(s.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		sent, deleted := fake.snapshot()
		return len(sent) == len(deleted)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Pending())
}

func TestRemoveDuringSendDeletesAfterwards(t *testing.T) {
	fake := &fakeAPI{gate: make(chan struct{})}
	s := startSurface(t, Config{ChatID: 1, RatePerSec: 100, QueueSize: 1}, fake, nil)

	require.NoError(t, s.Show(toast.Toast{ID: "toast-1", Body: "first"}))
	require.Eventually(t, func() bool { return len(s.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Show(toast.Toast{ID: "toast-2", Body: "second"}))
	assert.ErrorIs(t, s.Show(toast.Toast{ID: "toast-3", Body: "third"}), ErrQueueFull)

	// The queue is full, yet the removal is accepted.
	require.NoError(t, s.Remove("toast-1"))
	close(fake.gate)

	require.Eventually(t, func() bool {
		_, deleted := fake.snapshot()
		return len(deleted) == 1 && deleted[0] == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.Pending() == 1 }, time.Second, 5*time.Millisecond)

	sent, _ := fake.snapshot()
	require.Len(t, sent, 2)
	assert.Equal(t, "ℹ️ second", sent[1].text)
}
