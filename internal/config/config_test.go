package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const jsonConfig = `{
  "http": {"addr": "127.0.0.1:0", "read_timeout": "10s"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
  "storage": {"path": "./test.db", "busy_timeout": "5s"},
  "scheduler": {"dispatch_timeout": "30s", "audit_interval": "5m"},
  "notify": {
    "rate_per_sec": 10,
    "send_timeout": "10s",
    "push": {"enabled": true, "write_timeout": "5s"},
    "email": {"enabled": false},
    "sms": {"enabled": false},
    "telegram": {"enabled": false}
  }
}`

const yamlConfig = `
http:
  addr: "127.0.0.1:0"
  read_timeout: "10s"
logging:
  level: "debug"
  console: true
  file:
    enabled: false
    path: ""
storage:
  path: "./test.db"
  busy_timeout: "5s"
scheduler:
  dispatch_timeout: "30s"
  audit_interval: "5m"
notify:
  rate_per_sec: 10
  send_timeout: "10s"
  push:
    enabled: true
    write_timeout: "5s"
  email:
    enabled: false
  sms:
    enabled: false
  telegram:
    enabled: false
`

func TestLoadJSONAndYAMLAgree(t *testing.T) {
	jc, err := NewManager(writeFile(t, "config.json", jsonConfig)).Load()
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	yc, err := NewManager(writeFile(t, "config.yaml", yamlConfig)).Load()
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if !reflect.DeepEqual(jc, yc) {
		t.Fatalf("json and yaml configs differ:\njson: %+v\nyaml: %+v", jc, yc)
	}
	if jc.Logging.Level != "debug" || !jc.Notify.Push.Enabled {
		t.Fatalf("unexpected config: %+v", jc)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "config.json", `{"http": {"adress": "oops"}}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatalf("expected unknown-field error")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	path := writeFile(t, "config.json", `{"http": {}} {"extra": true}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatalf("expected trailing-data error")
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", " 10s "); err != nil || d != 10*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty field must be zero, got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "ten seconds"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatalf("negative duration must be rejected")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("missing field must use default, got %v, %v", d, err)
	}
	// Explicit zero means "off", not "use the default".
	if d, err := ParseDurationOrDefault("x", "0s", time.Minute); err != nil || d != 0 {
		t.Fatalf("explicit 0s must stay zero, got %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "2m", time.Minute); err != nil || d != 2*time.Minute {
		t.Fatalf("got %v, %v", d, err)
	}
}

func TestWatchPublishesOnChange(t *testing.T) {
	path := writeFile(t, "config.json", jsonConfig)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	updates := m.Subscribe(1)
	defer m.Unsubscribe(updates)

	// Give the watcher a moment to attach before touching the file.
	time.Sleep(300 * time.Millisecond)
	changed := []byte(`{"logging": {"level": "warn", "console": false, "file": {"enabled": false, "path": ""}}}`)
	if err := os.WriteFile(path, changed, 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-updates:
		if cfg.Logging.Level != "warn" {
			t.Fatalf("stale config published: %+v", cfg)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no config update published")
	}

	cancel()
	<-done
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	path := writeFile(t, "config.json", jsonConfig)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	updates := m.Subscribe(1)
	defer m.Unsubscribe(updates)

	// Same bytes on disk: reload must not publish.
	m.reload(context.Background())
	select {
	case cfg := <-updates:
		t.Fatalf("unchanged config was published: %+v", cfg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReloadHonorsValidator(t *testing.T) {
	path := writeFile(t, "config.json", jsonConfig)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		return context.Canceled // reject everything
	})

	updates := m.Subscribe(1)
	defer m.Unsubscribe(updates)

	changed := []byte(`{"logging": {"level": "warn", "console": false, "file": {"enabled": false, "path": ""}}}`)
	if err := os.WriteFile(path, changed, 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload(context.Background())

	select {
	case cfg := <-updates:
		t.Fatalf("rejected config was published: %+v", cfg)
	case <-time.After(100 * time.Millisecond):
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("rejected config must not be committed")
	}
}
