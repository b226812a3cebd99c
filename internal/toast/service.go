package toast

import (
	"fmt"
	"runtime/debug"
	"slices"
	"strconv"
	"sync"
	"time"

	"taskdesk/internal/eventbus"
	"taskdesk/pkg/logx"
)

type entry struct {
	toast   Toast
	timer   Timer
	surface Surface
}

// Service owns the active toast stack and the timers that dismiss it.
//
// It is safe for concurrent use. Every mutation of the stack, and every
// surface call it implies, runs under one mutex, so surfaces observe shows
// and removals in the same order as the stack changes.
type Service struct {
	mu sync.Mutex

	cfg      Config
	clock    Clock
	surface  Surface
	fallback Fallback
	log      logx.Logger
	bus      eventbus.Bus

	seq    uint64
	active []*entry
}

type Option func(*Service)

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

func WithFallback(f Fallback) Option { return func(s *Service) { s.fallback = f } }

func WithSurface(sf Surface) Option { return func(s *Service) { s.surface = sf } }

func New(cfg Config, log logx.Logger, bus eventbus.Bus, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:      log,
		bus:      bus,
		clock:    SystemClock{},
		fallback: &WriterFallback{},
	}
	for _, o := range opts {
		o(s)
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.DismissAfter <= 0 {
		cfg.DismissAfter = DefaultDismissAfter
	}
	s.cfg = cfg
}

// SetSurface attaches the presentation surface. Toasts already displayed
// stay on the previous surface until dismissed.
func (s *Service) SetSurface(sf Surface) {
	s.mu.Lock()
	s.surface = sf
	s.mu.Unlock()
}

// Notify displays a new toast and schedules its dismissal.
// An empty or unknown severity is shown as info.
func (s *Service) Notify(title, body string, sev Severity) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("notify panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	t, err := s.display(title, body, sev.Normalize())
	if err != nil {
		s.log.Warn("toast surface unavailable; using fallback", logx.String("id", string(t.ID)), logx.Err(err))
		s.alert(t)
		s.publish(EventFallback, t)
		return
	}
	s.log.Debug("toast displayed", logx.String("id", string(t.ID)), logx.String("severity", string(t.Severity)))
	s.publish(EventDisplayed, t)
}

func (s *Service) display(title, body string, sev Severity) (Toast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.seq++
	t := Toast{
		ID:        ID("toast-" + strconv.FormatUint(s.seq, 10)),
		Title:     title,
		Body:      body,
		Severity:  sev,
		State:     StateCreated,
		CreatedAt: now,
	}

	shown := t
	shown.State = StateDisplayed
	shown.DisplayedAt = now
	if err := s.presentLocked(shown); err != nil {
		return t, err
	}

	e := &entry{toast: shown, surface: s.surface}
	id := shown.ID
	e.timer = s.clock.AfterFunc(s.cfg.DismissAfter, func() { s.dismiss(id, ReasonTimeout) })
	s.active = append(s.active, e)
	return shown, nil
}

// Dismiss is the user close action. It reports whether the toast was still
// displayed; dismissing twice, or after the timer fired, is a no-op.
func (s *Service) Dismiss(id ID) bool {
	return s.dismiss(id, ReasonUser)
}

func (s *Service) dismiss(id ID, reason Reason) bool {
	t, ok, err := s.remove(id, reason)
	if !ok {
		return false
	}
	if err != nil {
		s.log.Warn("toast removal failed", logx.String("id", string(id)), logx.Err(err))
	}
	s.log.Debug("toast dismissed", logx.String("id", string(id)), logx.String("reason", string(reason)))
	s.publish(EventDismissed, t)
	return true
}

func (s *Service) remove(id ID, reason Reason) (Toast, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.active, func(e *entry) bool { return e.toast.ID == id })
	if i < 0 {
		return Toast{}, false, nil
	}
	e := s.active[i]
	s.active = slices.Delete(s.active, i, i+1)
	if e.timer != nil {
		e.timer.Stop()
	}
	t := e.toast
	t.State = StateDismissed
	t.Reason = reason
	t.DismissedAt = s.clock.Now()
	return t, true, unpresent(e.surface, id)
}

// Active returns the displayed toasts, oldest first.
func (s *Service) Active() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Toast, 0, len(s.active))
	for _, e := range s.active {
		out = append(out, e.toast)
	}
	return out
}

// DismissAfter returns the current auto-dismiss duration.
func (s *Service) DismissAfter() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.DismissAfter
}

func (s *Service) presentLocked(t Toast) (err error) {
	if s.surface == nil {
		return ErrNoSurface
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("surface panic: %v", r)
		}
	}()
	return s.surface.Show(t)
}

func unpresent(sf Surface, id ID) (err error) {
	if sf == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("surface panic: %v", r)
		}
	}()
	return sf.Remove(id)
}

func (s *Service) alert(t Toast) {
	if s.fallback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("toast fallback panicked", logx.Any("panic", r))
		}
	}()
	s.fallback.Alert(t.Title, t.Body)
}

func (s *Service) publish(typ string, t Toast) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.clock.Now(), Data: t})
}
