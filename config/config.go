// Package config loads the service configuration from a yaml or json file
// with optional GUARDIAN_ environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mindcare/guardian/core/metrics"
	infrageocode "github.com/mindcare/guardian/infra/geocode"
	"github.com/mindcare/guardian/infra/mqtt"
	"github.com/mindcare/guardian/infra/push"
	"github.com/mindcare/guardian/infra/sms"
	"github.com/mindcare/guardian/infra/storage"
	"github.com/mindcare/guardian/infra/ws"
)

type Config struct {
	MQTT      mqtt.Config     `json:"mqtt"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Alert     AlertConfig     `json:"alert"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Redis     RedisConfig     `json:"redis"`
	Metrics   metrics.Config  `json:"metrics"`
	Push      push.Config     `json:"push"`
	SMS       sms.Config      `json:"sms"`
	Geocode   GeocodeConfig   `json:"geocode"`
	WebSocket ws.Config       `json:"websocket"`
	HTTP      HTTPConfig      `json:"http"`
}

// RedisConfig enables the Redis store; when disabled the in-memory store is
// used.
type RedisConfig struct {
	Enabled    bool   `json:"enabled"`
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	PoolSize   int    `json:"pool_size"`
	AlertTTLHr int    `json:"alert_ttl_hours"`
}

// ToStorage converts the section into the store's config.
func (c RedisConfig) ToStorage() storage.Config {
	return storage.Config{
		Addr:       c.Addr,
		Password:   c.Password,
		DB:         c.DB,
		PoolSize:   c.PoolSize,
		AlertTTLHr: c.AlertTTLHr,
	}
}

// GeocodeConfig enables the Google Maps provider.
type GeocodeConfig struct {
	Enabled        bool   `json:"enabled"`
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ToProvider converts the section into the provider's config.
func (c GeocodeConfig) ToProvider() infrageocode.Config {
	return infrageocode.Config{
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		TimeoutSeconds: c.TimeoutSeconds,
	}
}

// HTTPConfig defines the listen addresses for the websocket endpoint and the
// Prometheus exposition server.
type HTTPConfig struct {
	ListenAddr     string `json:"listen_addr"`
	PrometheusAddr string `json:"prometheus_addr"`
}

// SetDefaults fills zero values.
func (c *HTTPConfig) SetDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("GUARDIAN_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "guardian_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Dispatch.SetDefaults()
	cfg.Alert.SetDefaults()
	cfg.Broadcast.SetDefaults()
	cfg.WebSocket.SetDefaults()
	cfg.HTTP.SetDefaults()
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Alert.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
