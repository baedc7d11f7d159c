// Package config loads engine configuration from YAML files and supports
// hot reload via fsnotify.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file-backed engine configuration.
type Config struct {
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
	DefaultProvider       string        `yaml:"default_provider"`
	RetryAttempts         int           `yaml:"retry_attempts"`
	RetryBackoff          time.Duration `yaml:"retry_backoff"`
	RetryMaxBackoff       time.Duration `yaml:"retry_max_backoff"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`

	Cache     CacheConfig      `yaml:"cache"`
	Health    HealthConfig     `yaml:"health"`
	Netprobe  NetprobeConfig   `yaml:"netprobe"`
	Providers []ProviderConfig `yaml:"providers"`
}

// CacheConfig selects and tunes the response cache backend.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Backend string        `yaml:"backend"` // "local" or "redis"
	TTL     time.Duration `yaml:"ttl"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds the Redis backend settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

// HealthConfig tunes the background provider health monitor.
type HealthConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// NetprobeConfig tunes the network reachability prober.
type NetprobeConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	URLs     []string      `yaml:"urls"`
}

// ProviderConfig declares one provider instance to register.
type ProviderConfig struct {
	Name         string            `yaml:"name"`
	Type         string            `yaml:"type"`
	APIKey       string            `yaml:"api_key"`
	BaseURL      string            `yaml:"base_url"`
	DefaultModel string            `yaml:"default_model"`
	Timeout      time.Duration     `yaml:"timeout"`
	RateLimit    float64           `yaml:"rate_limit"`
	RateBurst    int               `yaml:"rate_burst"`
	Capabilities []string          `yaml:"capabilities"`
	Headers      map[string]string `yaml:"headers"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		MaxConcurrentRequests: 8,
		RetryAttempts:         2,
		RetryBackoff:          500 * time.Millisecond,
		RetryMaxBackoff:       30 * time.Second,
		RequestTimeout:        60 * time.Second,
		Cache: CacheConfig{
			Enabled: true,
			Backend: "local",
			TTL:     time.Hour,
		},
		Health: HealthConfig{
			Enabled:      true,
			Interval:     60 * time.Second,
			ProbeTimeout: 5 * time.Second,
		},
		Netprobe: NetprobeConfig{
			Interval: 30 * time.Second,
		},
	}
}

// LoadFromFile reads and validates a YAML configuration file.
// Unset fields fall back to the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.MaxConcurrentRequests <= 0 {
		c.MaxConcurrentRequests = d.MaxConcurrentRequests
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.RetryMaxBackoff <= 0 {
		c.RetryMaxBackoff = d.RetryMaxBackoff
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = d.Cache.Backend
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.Health.Interval <= 0 {
		c.Health.Interval = d.Health.Interval
	}
	if c.Health.ProbeTimeout <= 0 {
		c.Health.ProbeTimeout = d.Health.ProbeTimeout
	}
	if c.Netprobe.Interval <= 0 {
		c.Netprobe.Interval = d.Netprobe.Interval
	}
}

// Validate rejects configurations that cannot be run.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Enabled && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache backend redis requires an address")
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if p.Type == "" {
			return fmt.Errorf("provider %q: type is required", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
	}

	if c.DefaultProvider != "" && len(c.Providers) > 0 && !seen[c.DefaultProvider] {
		return fmt.Errorf("default provider %q is not declared", c.DefaultProvider)
	}
	return nil
}
