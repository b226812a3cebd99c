// Package web presents toasts in connected browser pages as Bootstrap
// toasts, pushed over a websocket.
package web

import (
	"errors"
	"slices"
	"sync"

	"taskdesk/internal/toast"
	"taskdesk/pkg/logx"
)

var ErrBacklog = errors.New("web toast backlog full")

// Surface tracks the displayed stack so pages that connect later can fetch
// it, and pushes every change to connected pages.
type Surface struct {
	hub *Hub

	mu      sync.Mutex
	started bool
	stack   []toast.Toast
}

func New(d toast.Dismisser, log logx.Logger) *Surface {
	s := &Surface{hub: NewHub(d, log)}
	s.hub.state = s.syncMessage
	return s
}

func (s *Surface) Hub() *Hub { return s.hub }

func (s *Surface) Show(t toast.Toast) error {
	html, err := RenderToast(t)
	if err != nil {
		return err
	}
	// Publishing under mu keeps the stack and the broadcast order in step
	// with the sync frame.
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hub.publish(Message{Type: MessageShow, ID: string(t.ID), HTML: html}) {
		return ErrBacklog
	}
	s.started = true
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
	if !s.hub.publish(Message{Type: MessageRemove, ID: string(id)}) {
		// A page connecting later still gets the right state from sync.
		return ErrBacklog
	}
	return nil
}

// Snapshot returns the displayed toasts and whether the container exists
// yet. It is created by the first Show.
func (s *Surface) Snapshot() ([]toast.Toast, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.stack), s.started
}

// syncMessage renders the current container. HTML is empty before the first
// Show.
func (s *Surface) syncMessage() Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := Message{Type: MessageSync}
	if !s.started {
		return m
	}
	html, err := RenderContainer(s.stack)
	if err != nil {
		s.hub.log.Warn("render sync frame failed", logx.Err(err))
		return m
	}
	m.HTML = html
	return m
}
