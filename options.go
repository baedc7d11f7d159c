package aigate

import (
	"log/slog"
	"time"

	"github.com/13108387302/aigate/pkg/cache"
	"github.com/13108387302/aigate/pkg/provider"
	"github.com/13108387302/aigate/routers"
)

// Config holds all configuration for the Orchestrator.
type Config struct {
	// Providers declared by config; instances created via the registry.
	Providers []provider.Config

	// ProviderInstances are pre-built providers (for advanced use).
	ProviderInstances []provider.Provider

	// Concurrency
	MaxConcurrentRequests int

	// Routing
	Selector         routers.Selector // custom selector (overrides SelectorConfig)
	SelectorConfig   routers.Config
	DefaultProvider  string
	FallbackProvider string

	// Retry / failover
	RetryAttempts   int
	RetryBackoff    time.Duration
	RetryMaxBackoff time.Duration
	RetryJitter     float64

	// Caching
	CacheEnabled bool
	Cache        cache.Cache // custom cache backend
	CacheTTL     time.Duration

	// Timeouts
	RequestTimeout time.Duration

	// Health monitoring
	HealthCheckEnabled  bool
	HealthCheckInterval time.Duration
	ProbeTimeout        time.Duration

	// Network reachability probing
	NetprobeEnabled  bool
	NetprobeInterval time.Duration
	NetprobeURLs     []string

	// Logging
	Logger *slog.Logger
}

// Option is a function that configures the Orchestrator.
type Option func(*Config)

// defaultConfig returns sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MaxConcurrentRequests: 8,
		SelectorConfig:        routers.DefaultConfig(),
		RetryAttempts:         2,
		RetryBackoff:          500 * time.Millisecond,
		RetryMaxBackoff:       30 * time.Second,
		RetryJitter:           0.2,
		CacheEnabled:          true,
		CacheTTL:              time.Hour,
		RequestTimeout:        60 * time.Second,
		HealthCheckEnabled:    true,
		HealthCheckInterval:   60 * time.Second,
		ProbeTimeout:          5 * time.Second,
		NetprobeInterval:      30 * time.Second,
		Logger:                slog.Default(),
	}
}

// WithProvider declares a provider to create from the registry.
//
// Example:
//
//	aigate.WithProvider(provider.Config{
//	    Name:   "openai",
//	    Type:   "openai",
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
func WithProvider(cfg provider.Config) Option {
	return func(c *Config) {
		c.Providers = append(c.Providers, cfg)
	}
}

// WithProviderInstance registers a pre-built provider instance.
func WithProviderInstance(p provider.Provider) Option {
	return func(c *Config) {
		c.ProviderInstances = append(c.ProviderInstances, p)
	}
}

// WithMaxConcurrentRequests bounds how many requests run at once.
func WithMaxConcurrentRequests(n int) Option {
	return func(c *Config) {
		c.MaxConcurrentRequests = n
	}
}

// WithSelector sets a custom provider selector.
// This overrides WithSelectorConfig.
func WithSelector(s routers.Selector) Option {
	return func(c *Config) {
		c.Selector = s
	}
}

// WithSelectorConfig tunes the built-in scoring selector.
func WithSelectorConfig(cfg routers.Config) Option {
	return func(c *Config) {
		c.SelectorConfig = cfg
	}
}

// WithDefaultProvider prefers a provider whenever it is healthy.
func WithDefaultProvider(name string) Option {
	return func(c *Config) {
		c.DefaultProvider = name
	}
}

// WithFallbackProvider pins the provider tried after the primary exhausts
// its retries. When unset, the selector picks an alternate.
func WithFallbackProvider(name string) Option {
	return func(c *Config) {
		c.FallbackProvider = name
	}
}

// WithRetry configures retry behavior.
// attempts: retries after the initial attempt (0 = no retries)
// backoff: initial backoff duration (exponential backoff is applied)
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Config) {
		c.RetryAttempts = attempts
		c.RetryBackoff = backoff
	}
}

// WithRetryMaxBackoff caps the exponential backoff. Use 0 to disable the cap.
func WithRetryMaxBackoff(d time.Duration) Option {
	return func(c *Config) {
		c.RetryMaxBackoff = d
	}
}

// WithRetryJitter sets the jitter ratio for backoff delays (0.0 - 1.0).
func WithRetryJitter(jitter float64) Option {
	return func(c *Config) {
		c.RetryJitter = jitter
	}
}

// WithCache sets a custom cache backend and enables caching.
func WithCache(backend cache.Cache) Option {
	return func(c *Config) {
		c.Cache = backend
		c.CacheEnabled = backend != nil
	}
}

// WithCacheEnabled toggles response caching.
func WithCacheEnabled(enabled bool) Option {
	return func(c *Config) {
		c.CacheEnabled = enabled
	}
}

// WithCacheTTL sets how long cached responses stay valid.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.CacheTTL = ttl
	}
}

// WithRequestTimeout sets the per-request deadline applied when the
// request itself does not carry one.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.RequestTimeout = d
	}
}

// WithHealthCheck configures the background provider health monitor.
func WithHealthCheck(enabled bool, interval time.Duration) Option {
	return func(c *Config) {
		c.HealthCheckEnabled = enabled
		if interval > 0 {
			c.HealthCheckInterval = interval
		}
	}
}

// WithNetprobe enables network reachability probing against the given URLs.
// While the network is degraded, retry backoff delays are doubled.
func WithNetprobe(urls ...string) Option {
	return func(c *Config) {
		c.NetprobeEnabled = len(urls) > 0
		c.NetprobeURLs = urls
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}
