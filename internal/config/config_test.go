package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestParseYAMLOverDefaults(t *testing.T) {
	path := write(t, "config.yaml", `
telegram:
  token: "123:abc"
storage:
  driver: sqlite
  path: ./pawbot.db
scheduler:
  timezone: UTC
  delivery_timeout: 20s
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Storage.Driver != "sqlite" || cfg.Scheduler.Timezone != "UTC" {
		t.Fatalf("cfg = %+v", cfg)
	}
	// Omitted fields keep defaults.
	if cfg.Storage.FlushInterval != "30s" || cfg.TaskEngine.Workers != 2 || cfg.Logging.Level != "info" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if d := MustDuration(cfg.Scheduler.DeliveryTimeout, time.Second); d != 20*time.Second {
		t.Fatalf("delivery timeout = %v, want 20s", d)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{name: "unknown field", file: "c.json", body: `{"telegram":{"tokn":"x"}}`, want: "unknown field"},
		{name: "trailing data", file: "c.json", body: `{} {}`, want: "trailing data"},
		{name: "bad duration", file: "c.json", body: `{"scheduler":{"delivery_timeout":"soon"}}`, want: "scheduler.delivery_timeout"},
		{name: "negative duration", file: "c.yml", body: "storage:\n  flush_interval: -1s\n", want: "storage.flush_interval"},
		{name: "bad dial timeout", file: "c.yml", body: "storage:\n  dial_timeout: later\n", want: "storage.dial_timeout"},
		{name: "unknown driver", file: "c.json", body: `{"storage":{"driver":"mongo"}}`, want: "unknown driver"},
		{name: "redis without addr", file: "c.json", body: `{"storage":{"driver":"redis"}}`, want: "redis_addr"},
		{name: "bad timezone", file: "c.json", body: `{"scheduler":{"timezone":"Mars/Olympus"}}`, want: "scheduler.timezone"},
		{name: "negative workers", file: "c.json", body: `{"task_engine":{"workers":-1}}`, want: "task_engine.workers"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(write(t, tt.file, tt.body)).Parse()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Parse err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PAWBOT_TELEGRAM_TOKEN", "from-env")
	t.Setenv("PAWBOT_STORAGE_PATH", "/var/lib/pawbot/data.json")
	t.Setenv("PAWBOT_LOG_LEVEL", "debug")

	path := write(t, "config.json", `{"telegram":{"token":"from-file"}}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "from-env" || cfg.Storage.Path != "/var/lib/pawbot/data.json" || cfg.Logging.Level != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestEmptyPathUsesDefaults(t *testing.T) {
	t.Setenv("PAWBOT_TELEGRAM_TOKEN", "")
	cfg, err := NewManager("").Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.Path != "dog_care_data.json" {
		t.Fatalf("storage.path = %q", cfg.Storage.Path)
	}
	if err := RequireToken(cfg); err != ErrMissingToken {
		t.Fatalf("RequireToken = %v, want ErrMissingToken", err)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := Default()
	b := Default()
	b.Logging.Level = "debug"
	b.Storage.Driver = "sqlite"

	changed, attrs := SummarizeChange(a, b)
	if strings.Join(changed, ",") != "logging,storage" || len(attrs) == 0 {
		t.Fatalf("changed = %v", changed)
	}
	if got := RestartRequired(a, b); len(got) != 1 || got[0] != "storage" {
		t.Fatalf("RestartRequired = %v", got)
	}
}

func TestWatchPublishesChanges(t *testing.T) {
	path := write(t, "config.json", `{"logging":{"level":"info"}}`)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		// Rewrite until the watcher is up and picks the change.
		if err := os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		select {
		case cfg := <-sub:
			if cfg.Logging.Level != "debug" {
				t.Fatalf("published level = %q", cfg.Logging.Level)
			}
			if m.Get().Logging.Level != "debug" {
				t.Fatalf("Get not updated")
			}
			cancel()
			<-done
			return
		case <-deadline:
			t.Fatalf("no config published")
		case <-tick.C:
		}
	}
}
