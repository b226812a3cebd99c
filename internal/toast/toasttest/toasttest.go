// Package toasttest provides a manual clock and recording surfaces for
// driving toast.Service deterministically in tests.
package toasttest

import (
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"taskdesk/internal/toast"
)

// Clock is a manual toast.Clock. Timers fire only from Advance, on the
// calling goroutine, in deadline order.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*timer
}

type timer struct {
	c     *Clock
	at    time.Time
	seq   int
	fn    func()
	ended bool
}

func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, fn func()) toast.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &timer{c: c, at: c.now.Add(d), seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *timer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.ended {
		return false
	}
	t.ended = true
	t.c.drop(t)
	return true
}

// drop must be called with c.mu held.
func (c *Clock) drop(t *timer) {
	if i := slices.Index(c.timers, t); i >= 0 {
		c.timers = slices.Delete(c.timers, i, i+1)
	}
}

// Advance moves time forward by d, firing due timers one by one.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.Slice(c.timers, func(i, j int) bool {
			if !c.timers[i].at.Equal(c.timers[j].at) {
				return c.timers[i].at.Before(c.timers[j].at)
			}
			return c.timers[i].seq < c.timers[j].seq
		})
		if len(c.timers) == 0 || c.timers[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := c.timers[0]
		c.timers = c.timers[1:]
		next.ended = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.fn()
	}
}

// Pending is the number of timers that have neither fired nor been stopped.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

var ErrBroken = errors.New("surface broken")

// Surface records the stack it is asked to show.
type Surface struct {
	mu      sync.Mutex
	stack   []toast.Toast
	removed []toast.ID

	// Broken makes Show fail with ErrBroken. Panic makes Show panic.
	Broken bool
	Panic  bool
}

func (s *Surface) Show(t toast.Toast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Panic {
		panic("surface exploded")
	}
	if s.Broken {
		return ErrBroken
	}
	s.stack = append(s.stack, t)
	return nil
}

func (s *Surface) Remove(id toast.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.stack, func(t toast.Toast) bool { return t.ID == id })
	if i < 0 {
		return nil
	}
	s.stack = slices.Delete(s.stack, i, i+1)
	s.removed = append(s.removed, id)
	return nil
}

// Stack returns the toasts currently shown, oldest first.
func (s *Surface) Stack() []toast.Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]toast.Toast(nil), s.stack...)
}

// Removed returns every removal in order.
func (s *Surface) Removed() []toast.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]toast.ID(nil), s.removed...)
}

// Fallback records alerts.
type Fallback struct {
	mu     sync.Mutex
	alerts []string
}

func (f *Fallback) Alert(title, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, toast.Toast{Title: title, Body: body}.Text())
}

func (f *Fallback) Alerts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.alerts...)
}

// Notifier records Notify calls for collaborator tests.
type Notifier struct {
	mu    sync.Mutex
	calls []toast.Toast
}

func (n *Notifier) Notify(title, body string, sev toast.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, toast.Toast{Title: title, Body: body, Severity: sev.Normalize()})
}

func (n *Notifier) Calls() []toast.Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]toast.Toast(nil), n.calls...)
}
