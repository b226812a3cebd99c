package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/pkg/logx"
)

const sampleYAML = `
logging:
  level: debug
  console: true
toast:
  dismiss_after: 3s
server:
  base_url: http://127.0.0.1:5000
surfaces:
  terminal:
    enabled: true
  web:
    enabled: true
overdue:
  enabled: true
  schedule: "*/10 * * * *"
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDecodeYAML(t *testing.T) {
	cfg, err := Decode("taskdesk.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "3s", cfg.Toast.DismissAfter)
	assert.True(t, cfg.Surfaces.Web.Enabled)
	assert.Equal(t, "*/10 * * * *", cfg.Overdue.Schedule)

	r, err := Resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, r.DismissAfter)
	assert.Equal(t, DefaultServerTimeout, r.ServerTimeout)
	assert.Equal(t, DefaultRefreshDelay, r.RefreshDelay)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode("c.yaml", []byte("toast:\n  dismis_after: 5s\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dismis_after")
}

func TestDecodeRejectsTrailingJSON(t *testing.T) {
	_, err := Decode("c.json", []byte(`{"toast":{}} {"toast":{}}`))
	require.Error(t, err)
}

func TestDecodeEmptyYAML(t *testing.T) {
	cfg, err := Decode("c.yml", nil)
	require.NoError(t, err)
	assert.Equal(t, Config{}, *cfg)
}

func TestResolveDefaults(t *testing.T) {
	r, err := Resolve(Default())
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, r.DismissAfter)
	assert.Equal(t, time.Local, r.OverdueLocation)
}

func TestResolveValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "bad duration", mutate: func(c *Config) { c.Toast.DismissAfter = "soon" }},
		{name: "negative duration", mutate: func(c *Config) { c.Refresh.Delay = "-1s" }},
		{name: "zero dismiss", mutate: func(c *Config) { c.Toast.DismissAfter = "0s" }},
		{name: "zero timeout", mutate: func(c *Config) { c.Server.Timeout = "0" }},
		{name: "relative base url", mutate: func(c *Config) { c.Server.BaseURL = "/tasks" }},
		{name: "telegram no token", mutate: func(c *Config) { c.Surfaces.Telegram = TelegramSurface{Enabled: true, ChatID: 1} }},
		{name: "telegram no chat", mutate: func(c *Config) { c.Surfaces.Telegram = TelegramSurface{Enabled: true, Token: "x"} }},
		{name: "bad timezone", mutate: func(c *Config) { c.Overdue.Timezone = "Mars/Olympus" }},
		{name: "bad schedule", mutate: func(c *Config) { c.Overdue = OverdueConfig{Enabled: true, Schedule: "every tuesday"} }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			_, err := Resolve(cfg)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Resolve() error = %v, want ErrInvalid", err)
			}
		})
	}

	if _, err := Resolve(nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Resolve(nil) error = %v, want ErrInvalid", err)
	}
}

func TestResolveDurations(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "", want: DefaultDismissAfter},
		{raw: "  ", want: DefaultDismissAfter},
		{raw: "2s", want: 2 * time.Second},
		{raw: " 1500ms ", want: 1500 * time.Millisecond},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			cfg.Toast.DismissAfter = tt.raw
			r, err := Resolve(cfg)
			if err != nil {
				t.Fatalf("Resolve(dismiss_after=%q) error: %v", tt.raw, err)
			}
			if r.DismissAfter != tt.want {
				t.Fatalf("DismissAfter = %v, want %v", r.DismissAfter, tt.want)
			}
		})
	}
}

func TestOverdueScheduleDefault(t *testing.T) {
	assert.Equal(t, DefaultOverdueSchedule, OverdueSchedule(&Config{}))
	assert.Equal(t, "@hourly", OverdueSchedule(&Config{Overdue: OverdueConfig{Schedule: " @hourly "}}))
}

func TestManagerLoadAndReload(t *testing.T) {
	path := writeFile(t, "taskdesk.yaml", sampleYAML)
	m := NewManager(path)

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	published, err := m.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, published, "same content is not republished")

	require.NoError(t, os.WriteFile(path, []byte(sampleYAML+"refresh:\n  delay: 1s\n"), 0o600))
	published, err = m.Reload(context.Background())
	require.NoError(t, err)
	require.True(t, published)

	got := <-ch
	assert.Equal(t, "1s", got.Refresh.Delay)
	assert.Same(t, got, m.Get())
}

func TestManagerValidatorRejects(t *testing.T) {
	path := writeFile(t, "taskdesk.yaml", sampleYAML)
	m := NewManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	before := m.Get()

	m.SetValidator(func(context.Context, *Config) error { return errors.New("nope") })
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML+"refresh:\n  delay: 2s\n"), 0o600))

	published, err := m.Reload(context.Background())
	require.Error(t, err)
	assert.False(t, published)
	assert.Same(t, before, m.Get())
}

func TestPublishKeepsNewestForSlowSubscriber(t *testing.T) {
	m := NewManager("unused.yaml")
	ch := m.Subscribe(1)
	a, b := &Config{}, &Config{}
	m.publish(a)
	m.publish(b)
	assert.Same(t, b, <-ch)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := NewManager("unused.yaml")
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
	assert.NotPanics(t, func() { m.Unsubscribe(ch) })
}

func TestWatchPicksUpChanges(t *testing.T) {
	path := writeFile(t, "taskdesk.yaml", sampleYAML)
	m := NewManager(path)
	m.debounce = 10 * time.Millisecond
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = m.Watch(ctx); close(done) }()
	defer func() { cancel(); <-done }()

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML+"refresh:\n  delay: 750ms\n"), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, "750ms", cfg.Refresh.Delay)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestSummarizeChange(t *testing.T) {
	old := Default()
	next := Default()
	next.Toast.DismissAfter = "8s"
	next.Surfaces.Telegram = TelegramSurface{Enabled: true, Token: "123:secret", ChatID: 42}

	changed, fields := SummarizeChange(old, next)
	assert.Equal(t, []string{"toast", "surfaces.telegram"}, changed)
	assert.True(t, NeedsRestart(changed))
	var buf bytes.Buffer
	logx.New(&buf, "debug").Info("config changed", fields...)
	assert.Contains(t, buf.String(), "8s")
	assert.NotContains(t, buf.String(), "secret")

	changed, _ = SummarizeChange(old, old)
	assert.Empty(t, changed)
	assert.False(t, NeedsRestart(changed))
}
