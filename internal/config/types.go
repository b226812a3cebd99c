package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the on-disk configuration (YAML or JSON).
//
// Durations are Go duration strings ("500ms", "5s", "1m").
//
// Example:
//
//	server:
//	  base_url: http://127.0.0.1:5000
//	toast:
//	  dismiss_after: 5s
//	surfaces:
//	  terminal: { enabled: true }
//	  web: { enabled: true, addr: "127.0.0.1:8089" }
//	overdue:
//	  enabled: true
//	  schedule: "*/15 * * * *"
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Toast    ToastConfig    `json:"toast"`
	Server   ServerConfig   `json:"server"`
	Surfaces SurfacesConfig `json:"surfaces"`
	Overdue  OverdueConfig  `json:"overdue"`
	Refresh  RefreshConfig  `json:"refresh,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type ToastConfig struct {
	// DismissAfter defaults to "5s".
	DismissAfter string `json:"dismiss_after"`
}

// ServerConfig points at the task manager the actions talk to.
type ServerConfig struct {
	BaseURL string `json:"base_url"`
	// Timeout bounds each request (default "10s").
	Timeout string `json:"timeout,omitempty"`
}

type SurfacesConfig struct {
	Terminal TerminalSurface `json:"terminal"`
	Web      WebSurface      `json:"web"`
	Telegram TelegramSurface `json:"telegram"`
}

type TerminalSurface struct {
	Enabled bool `json:"enabled"`
	// Width of a rendered toast box in cells (default 48).
	Width int `json:"width,omitempty"`
}

type WebSurface struct {
	Enabled bool `json:"enabled"`
	// Addr defaults to "127.0.0.1:8089".
	Addr string `json:"addr,omitempty"`
}

// TelegramSurface mirrors toasts into a chat. The token is never logged.
type TelegramSurface struct {
	Enabled     bool   `json:"enabled"`
	Token       string `json:"token"`
	ChatID      int64  `json:"chat_id"`
	ThreadID    int    `json:"thread_id,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type OverdueConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron expression or descriptor ("@every 10m").
	Schedule string `json:"schedule"`
	Timezone string `json:"timezone,omitempty"`
}

type RefreshConfig struct {
	// Delay before reloading (default "500ms").
	Delay string `json:"delay,omitempty"`
}

const (
	DefaultDismissAfter    = 5 * time.Second
	DefaultServerTimeout   = 10 * time.Second
	DefaultPollTimeout     = 10 * time.Second
	DefaultRefreshDelay    = 500 * time.Millisecond
	DefaultWebAddr         = "127.0.0.1:8089"
	DefaultOverdueSchedule = "@every 15m"
	DefaultTerminalWidth   = 48
	DefaultTelegramRate    = 1
)

// Default is used when no config file exists.
func Default() *Config {
	return &Config{
		Logging:  LoggingConfig{Level: "info", Console: true},
		Toast:    ToastConfig{DismissAfter: "5s"},
		Server:   ServerConfig{BaseURL: "http://127.0.0.1:5000", Timeout: "10s"},
		Surfaces: SurfacesConfig{Terminal: TerminalSurface{Enabled: true}},
		Overdue:  OverdueConfig{Schedule: DefaultOverdueSchedule},
	}
}

// Resolved holds parsed values derived from Config.
type Resolved struct {
	DismissAfter        time.Duration
	ServerTimeout       time.Duration
	RefreshDelay        time.Duration
	TelegramPollTimeout time.Duration
	OverdueLocation     *time.Location
}

var ErrInvalid = errors.New("invalid config")

// Resolve parses and validates cfg.
func Resolve(cfg *Config) (Resolved, error) {
	var r Resolved
	if cfg == nil {
		return r, fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	if err := r.resolveDurations(cfg); err != nil {
		return r, err
	}

	u, err := url.Parse(strings.TrimSpace(cfg.Server.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return r, fmt.Errorf("%w: server.base_url: want an absolute http(s) URL, got %q", ErrInvalid, cfg.Server.BaseURL)
	}

	if tg := cfg.Surfaces.Telegram; tg.Enabled {
		if strings.TrimSpace(tg.Token) == "" {
			return r, fmt.Errorf("%w: surfaces.telegram.token is required when enabled", ErrInvalid)
		}
		if tg.ChatID == 0 {
			return r, fmt.Errorf("%w: surfaces.telegram.chat_id is required when enabled", ErrInvalid)
		}
	}

	r.OverdueLocation = time.Local
	if tz := strings.TrimSpace(cfg.Overdue.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return r, fmt.Errorf("%w: overdue.timezone: %v", ErrInvalid, err)
		}
		r.OverdueLocation = loc
	}
	if cfg.Overdue.Enabled {
		if _, err := cron.ParseStandard(OverdueSchedule(cfg)); err != nil {
			return r, fmt.Errorf("%w: overdue.schedule: %v", ErrInvalid, err)
		}
	}
	return r, nil
}

// OverdueSchedule returns the configured schedule or the default.
func OverdueSchedule(cfg *Config) string {
	if s := strings.TrimSpace(cfg.Overdue.Schedule); s != "" {
		return s
	}
	return DefaultOverdueSchedule
}
