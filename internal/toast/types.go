package toast

import (
	"fmt"
	"strings"
	"time"
)

// Severity selects a toast's visual styling.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityDanger  Severity = "danger"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Severities lists the closed set, in display-priority order.
var Severities = []Severity{SeveritySuccess, SeverityDanger, SeverityWarning, SeverityInfo}

func (s Severity) Valid() bool {
	switch s {
	case SeveritySuccess, SeverityDanger, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// Normalize maps the empty value and unknown values to info and the "error"
// alias to danger.
func (s Severity) Normalize() Severity {
	v := Severity(strings.ToLower(strings.TrimSpace(string(s))))
	if v == "error" {
		return SeverityDanger
	}
	if !v.Valid() {
		return SeverityInfo
	}
	return v
}

// ParseSeverity is the strict variant used for user input.
func ParseSeverity(raw string) (Severity, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return SeverityInfo, nil
	}
	if v == "error" {
		return SeverityDanger, nil
	}
	s := Severity(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity %q (want success, danger, warning or info)", raw)
	}
	return s, nil
}

type ID string

type State int

const (
	StateCreated State = iota
	StateDisplayed
	StateDismissed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateDisplayed:
		return "displayed"
	case StateDismissed:
		return "dismissed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reason records which trigger dismissed a toast.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonTimeout Reason = "timeout"
	ReasonUser    Reason = "user"
)

// Toast is a value snapshot of one notification.
type Toast struct {
	ID       ID       `json:"id"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Severity Severity `json:"severity"`
	State    State    `json:"-"`
	Reason   Reason   `json:"reason,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	DisplayedAt time.Time `json:"displayed_at,omitempty"`
	DismissedAt time.Time `json:"dismissed_at,omitempty"`
}

// Text is the plain rendering shared by every surface: "Title: Body".
func (t Toast) Text() string {
	if t.Title == "" {
		return t.Body
	}
	return t.Title + ": " + t.Body
}

// Config controls toast timing.
type Config struct {
	// DismissAfter is how long a toast stays up without user action.
	DismissAfter time.Duration
}

const DefaultDismissAfter = 5 * time.Second

// Event types published on the eventbus. Data is a Toast.
const (
	EventDisplayed = "toast.displayed"
	EventDismissed = "toast.dismissed"
	EventFallback  = "toast.fallback"
)
