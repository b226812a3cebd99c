package config

import (
	"strings"

	"taskdesk/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs and
// returns log fields describing the new values. Secrets are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 6)
	fields := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Toast != newCfg.Toast {
		changed = append(changed, "toast")
		fields = append(fields, logx.String("toast.dismiss_after", newCfg.Toast.DismissAfter))
	}
	if oldCfg.Server != newCfg.Server {
		changed = append(changed, "server")
		fields = append(fields,
			logx.String("server.base_url", newCfg.Server.BaseURL),
			logx.String("server.timeout", newCfg.Server.Timeout),
		)
	}
	if oldCfg.Surfaces.Terminal != newCfg.Surfaces.Terminal || oldCfg.Surfaces.Web != newCfg.Surfaces.Web {
		changed = append(changed, "surfaces")
		fields = append(fields,
			logx.Bool("surfaces.terminal", newCfg.Surfaces.Terminal.Enabled),
			logx.Bool("surfaces.web", newCfg.Surfaces.Web.Enabled),
			logx.String("surfaces.web.addr", newCfg.Surfaces.Web.Addr),
		)
	}
	if oldCfg.Surfaces.Telegram != newCfg.Surfaces.Telegram {
		tg := newCfg.Surfaces.Telegram
		changed = append(changed, "surfaces.telegram")
		fields = append(fields,
			logx.Bool("surfaces.telegram", tg.Enabled),
			logx.Bool("surfaces.telegram.token_set", strings.TrimSpace(tg.Token) != ""),
			logx.Int64("surfaces.telegram.chat_id", tg.ChatID),
		)
	}
	if oldCfg.Overdue != newCfg.Overdue {
		changed = append(changed, "overdue")
		fields = append(fields,
			logx.Bool("overdue.enabled", newCfg.Overdue.Enabled),
			logx.String("overdue.schedule", newCfg.Overdue.Schedule),
		)
	}
	if oldCfg.Refresh != newCfg.Refresh {
		changed = append(changed, "refresh")
		fields = append(fields, logx.String("refresh.delay", newCfg.Refresh.Delay))
	}
	return changed, fields
}

// NeedsRestart reports whether a change touches settings that are only read
// at startup (listeners, bot sessions and the task server client).
func NeedsRestart(changed []string) bool {
	for _, c := range changed {
		switch c {
		case "surfaces", "surfaces.telegram", "server":
			return true
		}
	}
	return false
}
