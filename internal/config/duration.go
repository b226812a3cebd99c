package config

import (
	"fmt"
	"strings"
	"time"
)

// durationSetting is one duration key of the config file. An unset key takes
// def; a set key must parse and be positive, so "0s" is a mistake rather
// than a way to ask for the default.
type durationSetting struct {
	path string
	raw  string
	def  time.Duration
	dst  *time.Duration
}

func (s durationSetting) resolve() error {
	raw := strings.TrimSpace(s.raw)
	if raw == "" {
		*s.dst = s.def
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: invalid duration %q", ErrInvalid, s.path, s.raw)
	}
	if d <= 0 {
		return fmt.Errorf("%w: %s: must be positive, got %s", ErrInvalid, s.path, d)
	}
	*s.dst = d
	return nil
}

func (r *Resolved) resolveDurations(cfg *Config) error {
	for _, s := range []durationSetting{
		{"toast.dismiss_after", cfg.Toast.DismissAfter, DefaultDismissAfter, &r.DismissAfter},
		{"server.timeout", cfg.Server.Timeout, DefaultServerTimeout, &r.ServerTimeout},
		{"refresh.delay", cfg.Refresh.Delay, DefaultRefreshDelay, &r.RefreshDelay},
		{"surfaces.telegram.poll_timeout", cfg.Surfaces.Telegram.PollTimeout, DefaultPollTimeout, &r.TelegramPollTimeout},
	} {
		if err := s.resolve(); err != nil {
			return err
		}
	}
	return nil
}
