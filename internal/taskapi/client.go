// Package taskapi is the client for the task manager's AJAX endpoints.
package taskapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrBadBaseURL       = errors.New("base url must be absolute")
	ErrNotJSON          = errors.New("response is not json")
)

// Task status names as the server reports them.
const (
	StatusTodo       = "TODO"
	StatusInProgress = "IN_PROGRESS"
	StatusReview     = "REVIEW"
	StatusDone       = "DONE"
	StatusArchived   = "ARCHIVED"
)

type ToggleResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Status is the task's status after the toggle. Older servers omit it.
	Status string `json:"status,omitempty"`
}

type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date,omitempty"`
	IsOverdue   bool   `json:"is_overdue"`
	IsDueSoon   bool   `json:"is_due_soon"`
}

type OverdueResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Tasks   []Task `json:"tasks"`
}

type ReminderResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client sends every request with the JSON and XMLHttpRequest headers the
// server uses to pick its AJAX responses.
type Client struct {
	rc *resty.Client
}

type options struct {
	hc      *http.Client
	cookies []*http.Cookie
}

type Option func(*options)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.hc = hc }
}

// WithCookie attaches a session cookie, e.g. one copied from a browser.
func WithCookie(name, value string) Option {
	return func(o *options) {
		o.cookies = append(o.cookies, &http.Cookie{Name: name, Value: value})
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadBaseURL, baseURL)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	rc := resty.New()
	if o.hc != nil {
		rc = resty.NewWithClient(o.hc)
	}
	rc.SetCookies(o.cookies)
	if timeout > 0 {
		rc.SetTimeout(timeout)
	}
	rc.SetBaseURL(strings.TrimRight(u.String(), "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Requested-With", "XMLHttpRequest")
	return &Client{rc: rc}, nil
}

// Toggle flips a task between TODO and DONE.
func (c *Client) Toggle(ctx context.Context, id int64) (ToggleResult, error) {
	var out ToggleResult
	err := c.do(ctx, http.MethodPost, "/tasks/"+strconv.FormatInt(id, 10)+"/toggle", &out)
	return out, err
}

// ExportData schedules an export of the user's data. Only the status matters.
func (c *Client) ExportData(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/profile/export-data", nil)
}

func (c *Client) Overdue(ctx context.Context) (OverdueResult, error) {
	var out OverdueResult
	err := c.do(ctx, http.MethodGet, "/api/tasks/overdue", &out)
	return out, err
}

func (c *Client) ScheduleReminders(ctx context.Context) (ReminderResult, error) {
	var out ReminderResult
	err := c.do(ctx, http.MethodPost, "/api/tasks/reminder", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req := c.rc.R().SetContext(ctx)
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%s %s: %w: %d", method, path, ErrUnexpectedStatus, resp.StatusCode())
	}
	if out != nil && !strings.Contains(resp.Header().Get("Content-Type"), "json") {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotJSON)
	}
	return nil
}
