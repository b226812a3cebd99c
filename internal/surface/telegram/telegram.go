// Package telegram mirrors toasts into a Telegram chat. Each toast becomes a
// message with a Close button; dismissing the toast deletes the message.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"taskdesk/internal/toast"
	"taskdesk/pkg/logx"
)

var (
	ErrQueueFull = errors.New("telegram toast queue full")
	ErrNoChat    = errors.New("telegram chat_id is not set")
	ErrStopped   = errors.New("telegram surface stopped")
)

// dismissUnique is the callback endpoint of the Close button.
const dismissUnique = "toast_dismiss"

var dismissBtn = tele.Btn{Unique: dismissUnique}

type Config struct {
	Token       string
	ChatID      int64
	ThreadID    int
	RatePerSec  int
	QueueSize   int
	PollTimeout time.Duration
}

// api is the part of *tele.Bot the surface uses.
type api interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// entry tracks one toast from Show until its message is deleted. msg is nil
// until the send completes.
type entry struct {
	msg     *tele.Message
	removed bool
}

type Surface struct {
	cfg       Config
	log       logx.Logger
	bot       *tele.Bot
	api       api
	dismisser toast.Dismisser
	limiter   *rate.Limiter

	queue   chan toast.Toast
	wake    chan struct{}
	stopped atomic.Bool

	// Removals never go through queue, so a full queue cannot strand a
	// sent message.
	mu      sync.Mutex
	entries map[toast.ID]*entry

	dropped atomic.Uint64
}

// New connects a long-polling bot. Nothing is sent until Run is called.
func New(cfg Config, d toast.Dismisser, log logx.Logger) (*Surface, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	s, err := newSurface(cfg, b, d, log)
	if err != nil {
		return nil, err
	}
	s.bot = b
	return s, nil
}

func newSurface(cfg Config, a api, d toast.Dismisser, log logx.Logger) (*Surface, error) {
	if cfg.ChatID == 0 {
		return nil, ErrNoChat
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Surface{
		cfg:       cfg,
		log:       log,
		api:       a,
		dismisser: d,
		// Burst equals the per-second rate so short spikes go out at once.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		queue:   make(chan toast.Toast, cfg.QueueSize),
		wake:    make(chan struct{}, 1),
		entries: map[toast.ID]*entry{},
	}, nil
}

func (s *Surface) Show(t toast.Toast) error {
	if s.stopped.Load() {
		return ErrStopped
	}
	s.mu.Lock()
	s.entries[t.ID] = &entry{}
	s.mu.Unlock()
	select {
	case s.queue <- t:
		return nil
	default:
		s.mu.Lock()
		delete(s.entries, t.ID)
		s.mu.Unlock()
		s.dropped.Add(1)
		return ErrQueueFull
	}
}

// Remove marks the toast for deletion. A message still in the queue is never
// sent; a sent one is deleted by the worker.
func (s *Surface) Remove(id toast.ID) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		e.removed = true
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run drains the queue until ctx is done. When backed by a real bot it also
// polls for Close button presses.
func (s *Surface) Run(ctx context.Context) error {
	if s.bot != nil {
		s.bot.Handle(&dismissBtn, func(c tele.Context) error {
			s.onDismiss(c.Data())
			return c.Respond()
		})
		go func() {
			<-ctx.Done()
			s.bot.Stop()
		}()
		go s.bot.Start()
		s.log.Info("telegram polling started")
	}
	defer func() {
		s.stopped.Store(true)
		if n := s.dropped.Swap(0); n > 0 {
			s.log.Warn("telegram toasts dropped (queue full)", logx.Uint64("count", n), logx.Int("queue_cap", cap(s.queue)))
		}
	}()

	for {
		// Stop wins over queued work.
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
			s.deleteRemoved(ctx)
		case t := <-s.queue:
			s.send(ctx, t)
		}
	}
}

func (s *Surface) send(ctx context.Context, t toast.Toast) {
	s.mu.Lock()
	e, ok := s.entries[t.ID]
	if ok && e.removed {
		delete(s.entries, t.ID)
	}
	s.mu.Unlock()
	if !ok || e.removed {
		return
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	msg, err := s.api.Send(&tele.Chat{ID: s.cfg.ChatID}, Format(t), &tele.SendOptions{
		ThreadID:    s.cfg.ThreadID,
		ReplyMarkup: closeMarkup(t.ID),
	})

	s.mu.Lock()
	if err != nil || e.removed {
		delete(s.entries, t.ID)
	} else {
		e.msg = msg
	}
	removed := e.removed
	s.mu.Unlock()

	switch {
	case err != nil:
		s.log.Warn("telegram toast send failed", logx.String("id", string(t.ID)), logx.Err(err))
	case removed:
		// Dismissed while the send was in flight.
		s.delete(ctx, t.ID, msg)
	}
}

// deleteRemoved deletes every sent message whose toast was removed.
func (s *Surface) deleteRemoved(ctx context.Context) {
	s.mu.Lock()
	gone := make(map[toast.ID]*tele.Message)
	for id, e := range s.entries {
		if e.removed && e.msg != nil {
			gone[id] = e.msg
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()
	for id, msg := range gone {
		s.delete(ctx, id, msg)
	}
}

func (s *Surface) delete(ctx context.Context, id toast.ID, msg *tele.Message) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	if err := s.api.Delete(msg); err != nil {
		s.log.Debug("telegram toast delete failed", logx.String("id", string(id)), logx.Err(err))
	}
}

// onDismiss handles a Close button press carrying the toast ID.
func (s *Surface) onDismiss(data string) {
	id := toast.ID(strings.TrimSpace(data))
	if id == "" || s.dismisser == nil {
		return
	}
	if !s.dismisser.Dismiss(id) {
		s.log.Debug("telegram close on inactive toast", logx.String("id", string(id)))
	}
}

// Pending returns the number of sent messages not yet deleted.
func (s *Surface) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.msg != nil {
			n++
		}
	}
	return n
}

func closeMarkup(id toast.ID) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data("Close", dismissUnique, string(id))))
	return m
}

var icons = map[toast.Severity]string{
	toast.SeveritySuccess: "✅",
	toast.SeverityDanger:  "❌",
	toast.SeverityWarning: "⚠️",
	toast.SeverityInfo:    "ℹ️",
}

// Format renders a toast as plain message text.
func Format(t toast.Toast) string {
	return icons[t.Severity.Normalize()] + " " + t.Text()
}
