package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"taskdesk/internal/actions"
	"taskdesk/internal/config"
	"taskdesk/internal/eventbus"
	"taskdesk/internal/runtime/supervisor"
	"taskdesk/internal/surface/telegram"
	"taskdesk/internal/surface/term"
	"taskdesk/internal/surface/web"
	"taskdesk/internal/taskapi"
	"taskdesk/internal/toast"
	"taskdesk/pkg/logx"
)

// Mode selects which surfaces are built.
type Mode int

const (
	// ModeOneShot prints toasts once on the terminal and starts nothing.
	ModeOneShot Mode = iota
	// ModeDaemon builds every enabled surface and runs the overdue watcher.
	ModeDaemon
)

type Options struct {
	ConfigPath string
	Mode       Mode
	// Out receives the terminal surface (stdout when nil).
	Out io.Writer
	// LogLevel overrides logging.level when set.
	LogLevel string
}

type App struct {
	opt  Options
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	toasts  *toast.Service
	term    *term.Surface
	web     *web.Surface
	webSrv  *web.Server
	tg      *telegram.Surface
	actions *actions.Actions
	overdue *actions.OverdueWatcher

	mu  sync.Mutex
	cfg *config.Config
	res config.Resolved
}

// New loads the config (defaults when the file does not exist) and builds
// the toast service, its surfaces and the actions.
func New(opt Options) (*App, error) {
	if opt.Out == nil {
		opt.Out = os.Stdout
	}
	cfgm := config.NewManager(opt.ConfigPath)
	cfg, err := cfgm.Load()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
		cfgm.Commit(cfg)
	case err != nil:
		return nil, fmt.Errorf("load config %s: %w", opt.ConfigPath, err)
	}
	res, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	logCfg := mapLogConfig(cfg)
	if opt.LogLevel != "" {
		logCfg.Level = opt.LogLevel
	}
	logSvc, log := logx.NewService(logCfg)
	a := &App{
		opt:  opt,
		cfgm: cfgm,
		log:  log.With(logx.String("comp", "app")),
		logs: logSvc,
		bus:  eventbus.New(),
		cfg:  cfg,
		res:  res,
	}
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a.toasts = toast.New(toast.Config{DismissAfter: res.DismissAfter}, log.With(logx.String("comp", "toast")), a.bus)
	if err := a.buildSurfaces(log); err != nil {
		return nil, err
	}

	client, err := taskapi.New(cfg.Server.BaseURL, res.ServerTimeout)
	if err != nil {
		return nil, err
	}
	a.actions = actions.New(client, a.toasts, log.With(logx.String("comp", "actions")),
		actions.WithRefreshDelay(res.RefreshDelay))
	a.overdue = a.actions.NewOverdueWatcher(config.OverdueSchedule(cfg), res.OverdueLocation)
	return a, nil
}

func (a *App) buildSurfaces(log logx.Logger) error {
	cfg := a.cfg
	var surfaces toast.MultiSurface

	if a.opt.Mode == ModeOneShot {
		a.term = term.New(a.opt.Out, term.Options{Width: cfg.Surfaces.Terminal.Width})
		a.toasts.SetSurface(a.term)
		return nil
	}

	if cfg.Surfaces.Terminal.Enabled {
		a.term = term.New(a.opt.Out, term.Options{Width: cfg.Surfaces.Terminal.Width, Live: true})
		surfaces = append(surfaces, a.term)
	}
	if cfg.Surfaces.Web.Enabled {
		wlog := log.With(logx.String("comp", "web"))
		a.web = web.New(a.toasts, wlog)
		a.webSrv = web.NewServer(a.web, a.toasts, wlog)
		surfaces = append(surfaces, a.web)
	}
	if tc := cfg.Surfaces.Telegram; tc.Enabled {
		tg, err := telegram.New(telegram.Config{
			Token:       tc.Token,
			ChatID:      tc.ChatID,
			ThreadID:    tc.ThreadID,
			RatePerSec:  tc.RatePerSec,
			PollTimeout: a.res.TelegramPollTimeout,
		}, a.toasts, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return fmt.Errorf("telegram surface: %w", err)
		}
		a.tg = tg
		surfaces = append(surfaces, tg)
	}
	if len(surfaces) > 0 {
		a.toasts.SetSurface(surfaces)
	}
	return nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func (a *App) Toasts() *toast.Service { return a.toasts }

func (a *App) Actions() *actions.Actions { return a.actions }

func (a *App) Overdue() *actions.OverdueWatcher { return a.overdue }

func (a *App) Logger() logx.Logger { return a.log }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the daemon: surfaces, overdue watcher and config hot reload.
func (a *App) Start(ctx context.Context) error {
	if a.opt.Mode != ModeDaemon {
		return errors.New("app: Start requires daemon mode")
	}
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := config.Resolve(cfg)
		return err
	})

	if a.web != nil {
		hub := a.web.Hub()
		a.sup.Go("web.hub", hub.Run)
		addr := strings.TrimSpace(cfg.Surfaces.Web.Addr)
		if addr == "" {
			addr = config.DefaultWebAddr
		}
		a.sup.Go("web.http", func(c context.Context) error { return a.webSrv.Run(c, addr) })
	}
	if a.tg != nil {
		a.sup.Go("telegram", a.tg.Run)
	}
	if cfg.Overdue.Enabled {
		a.sup.Go("overdue", a.overdue.Run)
	}

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128, "toast.")
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					fields := []logx.Field{logx.String("type", e.Type)}
					if t, ok := e.Data.(toast.Toast); ok {
						fields = append(fields, logx.String("id", string(t.ID)), logx.String("severity", string(t.Severity)))
						if t.Reason != "" {
							fields = append(fields, logx.String("reason", string(t.Reason)))
						}
					}
					a.log.Debug("event", fields...)
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(newCfg)
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started",
		logx.Bool("terminal", a.term != nil),
		logx.Bool("web", a.web != nil),
		logx.Bool("telegram", a.tg != nil),
		logx.Bool("overdue", cfg.Overdue.Enabled),
	)
	return nil
}

// applyConfig applies a hot-reloaded config. Settings that are only read at
// startup are reported, not applied.
func (a *App) applyConfig(newCfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sections, attrs := config.SummarizeChange(a.cfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	res, err := config.Resolve(newCfg)
	if err != nil {
		a.log.Warn("invalid config; keeping previous", logx.Err(err))
		return
	}
	overdueToggled := a.cfg.Overdue.Enabled != newCfg.Overdue.Enabled
	a.cfg, a.res = newCfg, res

	logCfg := mapLogConfig(newCfg)
	if a.opt.LogLevel != "" {
		logCfg.Level = a.opt.LogLevel
	}
	a.logs.Apply(logCfg)
	a.toasts.Apply(toast.Config{DismissAfter: res.DismissAfter})
	a.actions.SetRefreshDelay(res.RefreshDelay)
	if err := a.overdue.Apply(config.OverdueSchedule(newCfg), res.OverdueLocation); err != nil {
		a.log.Warn("overdue schedule not applied", logx.Err(err))
	}
	if config.NeedsRestart(sections) || overdueToggled {
		a.log.Warn("startup-only config changed; restart required for changes to take effect")
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Refresh re-reads the config and runs an overdue check after the refresh
// delay. The daemon calls it on SIGHUP.
func (a *App) Refresh(ctx context.Context) {
	a.actions.Refresh(&reloadControl{a: a, ctx: ctx})
}

type reloadControl struct {
	a   *App
	ctx context.Context
}

func (r *reloadControl) Disable(label string) {
	r.a.log.Info(label)
}

func (r *reloadControl) Reload() {
	if _, err := r.a.cfgm.Reload(r.ctx); err != nil {
		r.a.log.Warn("refresh: config reload failed", logx.Err(err))
	}
	r.a.mu.Lock()
	enabled := r.a.cfg.Overdue.Enabled
	r.a.mu.Unlock()
	if enabled {
		r.a.overdue.Check(r.ctx)
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		if a.logs != nil {
			_ = a.logs.Close()
		}
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sup.Cancel()

	stepCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	if err := a.sup.Wait(stepCtx); err != nil {
		a.log.Warn("stop: supervisor", logx.Err(err))
	}

	a.log.Info("stopped", logx.Uint64("events_dropped", a.bus.Dropped()))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
