// Package term renders toasts as colored boxes on a terminal.
package term

import (
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"taskdesk/internal/toast"
)

var (
	success = lipgloss.Color("#22C55E") // green
	danger  = lipgloss.Color("#EF4444") // red
	warning = lipgloss.Color("#F59E0B") // amber
	info    = lipgloss.Color("#3B82F6") // blue
	dim     = lipgloss.Color("#6B7280")
)

// clearScreen moves the cursor home and clears the display.
const clearScreen = "\x1b[H\x1b[2J"

const DefaultWidth = 48

func severityColor(s toast.Severity) lipgloss.Color {
	switch s.Normalize() {
	case toast.SeveritySuccess:
		return success
	case toast.SeverityDanger:
		return danger
	case toast.SeverityWarning:
		return warning
	default:
		return info
	}
}

type Options struct {
	// Width of each box in cells; DefaultWidth when <= 0.
	Width int
	// Live clears the screen and redraws the whole stack on every change.
	// Otherwise each toast is printed once, when shown.
	Live bool
}

// Surface keeps its own copy of the displayed stack so it can redraw it.
type Surface struct {
	mu    sync.Mutex
	w     io.Writer
	opt   Options
	r     *lipgloss.Renderer
	stack []toast.Toast
}

func New(w io.Writer, opt Options) *Surface {
	if opt.Width <= 0 {
		opt.Width = DefaultWidth
	}
	return &Surface{w: w, opt: opt, r: lipgloss.NewRenderer(w)}
}

func (s *Surface) Show(t toast.Toast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = append(s.stack, t)
	if !s.opt.Live {
		_, err := io.WriteString(s.w, s.render(t)+"\n")
		return err
	}
	return s.redrawLocked()
}

func (s *Surface) Remove(id toast.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.stack, func(t toast.Toast) bool { return t.ID == id })
	if i < 0 {
		return nil
	}
	s.stack = slices.Delete(s.stack, i, i+1)
	if !s.opt.Live {
		return nil
	}
	return s.redrawLocked()
}

// Len returns the number of toasts currently drawn.
func (s *Surface) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

func (s *Surface) redrawLocked() error {
	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(s.renderStackLocked())
	_, err := io.WriteString(s.w, b.String())
	return err
}

// Render returns the current stack, newest last, without writing it.
func (s *Surface) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderStackLocked()
}

func (s *Surface) renderStackLocked() string {
	if len(s.stack) == 0 {
		return ""
	}
	boxes := make([]string, 0, len(s.stack))
	for _, t := range s.stack {
		boxes = append(boxes, s.render(t))
	}
	return lipgloss.JoinVertical(lipgloss.Left, boxes...) + "\n"
}

func (s *Surface) render(t toast.Toast) string {
	c := severityColor(t.Severity)
	box := s.r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c).
		Padding(0, 1).
		Width(s.opt.Width)

	var line string
	if t.Title != "" {
		line = s.r.NewStyle().Bold(true).Foreground(c).Render(t.Title+":") + " " + t.Body
	} else {
		line = t.Body
	}
	if s.opt.Live {
		line += "\n" + s.r.NewStyle().Foreground(dim).Render(string(t.ID))
	}
	return box.Render(line)
}
