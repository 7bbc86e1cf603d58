// Package config loads and validates apirelay configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Registry RegistryConfig `mapstructure:"registry"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// HTTPConfig configures the outbound fetch client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// RegistryConfig sets the persisted catalog and the read-only seed catalog.
type RegistryConfig struct {
	StoreFile string `mapstructure:"store_file"`
	SeedFile  string `mapstructure:"seed_file"`
}

// RelayConfig governs trigger resolution gating.
type RelayConfig struct {
	DefaultType       string   `mapstructure:"default_type"`
	EnabledTypes      []string `mapstructure:"enabled_types"`
	DisabledEndpoints []string `mapstructure:"disabled_endpoints"`
	DisabledSites     []string `mapstructure:"disabled_sites"`
}

// CacheConfig sets the local fallback cache location.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// ProbeConfig paces availability probing per origin.
type ProbeConfig struct {
	PerOriginRPS   float64 `mapstructure:"per_origin_rps"`
	PerOriginBurst int     `mapstructure:"per_origin_burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APIRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "apirelay/0.1")
	v.SetDefault("registry.store_file", "data/endpoints.json")
	v.SetDefault("registry.seed_file", "seed/endpoints.json")
	v.SetDefault("relay.default_type", "image")
	v.SetDefault("relay.enabled_types", []string{"text", "image", "video", "audio"})
	v.SetDefault("cache.dir", "data/cache")
	v.SetDefault("probe.per_origin_rps", 1.0)
	v.SetDefault("probe.per_origin_burst", 1)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Registry.StoreFile == "" {
		return fmt.Errorf("registry.store_file must be set")
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must be set")
	}
	if c.Probe.PerOriginBurst < 0 {
		return fmt.Errorf("probe.per_origin_burst must be >= 0")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
