package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
http:
  timeout_seconds: 45
  user_agent: relay-agent
registry:
  store_file: /tmp/endpoints.json
  seed_file: /tmp/seed.json
relay:
  default_type: text
  enabled_types: ["text", "image"]
  disabled_sites: ["https://bad.example.com"]
cache:
  dir: /tmp/cache
probe:
  per_origin_rps: 2.5
  per_origin_burst: 2
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.HTTP.UserAgent != "relay-agent" {
		t.Fatalf("expected user agent override, got %q", cfg.HTTP.UserAgent)
	}
	if cfg.Relay.DefaultType != "text" || len(cfg.Relay.EnabledTypes) != 2 {
		t.Fatalf("expected relay overrides to apply: %+v", cfg.Relay)
	}
	if len(cfg.Relay.DisabledSites) != 1 {
		t.Fatalf("expected one disabled site, got %v", cfg.Relay.DisabledSites)
	}
	if cfg.Probe.PerOriginRPS != 2.5 || cfg.Probe.PerOriginBurst != 2 {
		t.Fatalf("expected probe overrides to apply: %+v", cfg.Probe)
	}
	if cfg.Logging.Development {
		t.Fatal("expected development logging to be disabled")
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.HTTP.TimeoutSeconds != 30 {
		t.Fatalf("expected default timeout 30s, got %d", cfg.HTTP.TimeoutSeconds)
	}
	if cfg.Relay.DefaultType != "image" {
		t.Fatalf("expected default type image, got %q", cfg.Relay.DefaultType)
	}
	if len(cfg.Relay.EnabledTypes) != 4 {
		t.Fatalf("expected all four types enabled, got %v", cfg.Relay.EnabledTypes)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }},
		{"missing store file", func(c *Config) { c.Registry.StoreFile = "" }},
		{"missing cache dir", func(c *Config) { c.Cache.Dir = "" }},
		{"negative burst", func(c *Config) { c.Probe.PerOriginBurst = -1 }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}
