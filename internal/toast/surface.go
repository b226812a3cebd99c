package toast

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var ErrNoSurface = errors.New("no toast surface attached")

// Surface presents toasts. Implementations must not block and must not call
// back into the Service from Show or Remove. Removing an unknown ID is a no-op.
type Surface interface {
	Show(t Toast) error
	Remove(id ID) error
}

// Dismisser is what a surface's close control calls.
type Dismisser interface {
	Dismiss(id ID) bool
}

// Fallback is the last-resort synchronous presenter.
type Fallback interface {
	Alert(title, body string)
}

// MultiSurface shows every toast on all member surfaces. Show fails only if
// every member fails, so the fallback runs only when nothing rendered.
type MultiSurface []Surface

func (m MultiSurface) Show(t Toast) error {
	var errs []error
	shown := 0
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Show(t); err != nil {
			errs = append(errs, err)
			continue
		}
		shown++
	}
	if shown > 0 {
		return nil
	}
	if len(errs) == 0 {
		return ErrNoSurface
	}
	return errors.Join(errs...)
}

func (m MultiSurface) Remove(id ID) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Remove(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriterFallback writes "Title: Body" lines to W (stderr when nil).
type WriterFallback struct {
	mu sync.Mutex
	W  io.Writer
}

func (f *WriterFallback) Alert(title, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.W
	if w == nil {
		w = os.Stderr
	}
	_, _ = fmt.Fprintln(w, Toast{Title: title, Body: body}.Text())
}
