package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mindcare/guardian/core/alert"
	"github.com/mindcare/guardian/core/model"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "guardian"
  username: "user"
  password: "pass"
  position_topic: "subject/+/position"
  use_tls: false
dispatch:
  channels: ["push", "socket"]
  max_attempts: 3
  base_backoff_ms: 1000
  backoff_cap_ms: 30000
  send_timeout_ms: 5000
alert:
  timeout_seconds: 600
  query_radius_meters: 5000
  on_duplicate_trigger: "merge"
redis:
  enabled: true
  addr: "localhost:6379"
metrics:
  sinks:
    - type: "nop"
geocode:
  enabled: false
http:
  listen_addr: ":8080"
  prometheus_addr: ":9100"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "guardian"},
		{"position_topic", cfg.MQTT.PositionTopic, "subject/+/position"},
		{"use_tls", cfg.MQTT.UseTLS, false},
		{"channels", len(cfg.Dispatch.Channels), 2},
		{"max_attempts", cfg.Dispatch.MaxAttempts, 3},
		{"alert_timeout", cfg.Alert.TimeoutSeconds, 600},
		{"duplicate_policy", cfg.Alert.OnDuplicateTrigger, alert.DuplicateMerge},
		{"redis_enabled", cfg.Redis.Enabled, true},
		{"redis_addr", cfg.Redis.Addr, "localhost:6379"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"geocode_disabled", cfg.Geocode.Enabled, false},
		{"prometheus_addr", cfg.HTTP.PrometheusAddr, ":9100"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}

	core := cfg.Dispatch.ToCore()
	if core.BaseBackoff != time.Second || core.SendTimeout != 5*time.Second {
		t.Errorf("duration conversion wrong: %+v", core)
	}
	policy := cfg.Dispatch.Policy()
	if len(policy) != 2 || policy[0] != model.ChannelPush {
		t.Errorf("policy conversion wrong: %v", policy)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("mqtt:\n  broker: \"tcp://localhost:1883\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GUARDIAN_MQTT__BROKER", "tcp://other:1883")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://other:1883" {
		t.Errorf("env override not applied: %s", cfg.MQTT.Broker)
	}
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("alert:\n  on_duplicate_trigger: \"explode\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected policy validation error")
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestDispatchValidateRejectsUnknownChannel(t *testing.T) {
	c := DispatchConfig{Channels: []string{"fax"}}
	if err := c.Validate(); err == nil {
		t.Fatal("expected channel validation error")
	}
}
