package aigate

import (
	"context"
	"log/slog"

	"github.com/13108387302/aigate/caches/memory"
	caredis "github.com/13108387302/aigate/caches/redis"
	"github.com/13108387302/aigate/internal/config"
	"github.com/13108387302/aigate/pkg/provider"
)

// NewFromConfigFile builds an Orchestrator from a YAML configuration file
// and watches the file for changes. Edits to the runtime-tunable settings
// (concurrency limit, retry policy, timeouts, default provider) apply
// without restart; provider and cache topology changes need a new engine.
// Options given here are applied after the file and win over it.
func NewFromConfigFile(path string, opts ...Option) (*Orchestrator, error) {
	mgr, err := config.NewManager(path, slog.Default())
	if err != nil {
		return nil, err
	}

	fileOpts, err := optionsFromFile(mgr.Get())
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}

	o, err := New(append(fileOpts, opts...)...)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}

	mgr.OnChange(func(c *config.Config) {
		o.UpdateConfig(func(cfg *Config) {
			cfg.MaxConcurrentRequests = c.MaxConcurrentRequests
			cfg.RetryAttempts = c.RetryAttempts
			cfg.RetryBackoff = c.RetryBackoff
			cfg.RetryMaxBackoff = c.RetryMaxBackoff
			cfg.RequestTimeout = c.RequestTimeout
			cfg.DefaultProvider = c.DefaultProvider
			cfg.CacheTTL = c.Cache.TTL
		})
	})

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	if err := mgr.Watch(watchCtx); err != nil {
		cancelWatch()
		_ = mgr.Close()
		_ = o.Close()
		return nil, err
	}
	o.onClose = append(o.onClose, func() error {
		cancelWatch()
		return mgr.Close()
	})

	return o, nil
}

func optionsFromFile(c *config.Config) ([]Option, error) {
	opts := []Option{
		WithMaxConcurrentRequests(c.MaxConcurrentRequests),
		WithRetry(c.RetryAttempts, c.RetryBackoff),
		WithRetryMaxBackoff(c.RetryMaxBackoff),
		WithRequestTimeout(c.RequestTimeout),
		WithHealthCheck(c.Health.Enabled, c.Health.Interval),
	}
	if c.DefaultProvider != "" {
		opts = append(opts, WithDefaultProvider(c.DefaultProvider))
	}
	if c.Netprobe.Enabled {
		opts = append(opts, WithNetprobe(c.Netprobe.URLs...))
	}

	opts = append(opts, WithCacheEnabled(c.Cache.Enabled), WithCacheTTL(c.Cache.TTL))
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case "redis":
			rcfg := caredis.DefaultConfig()
			rcfg.Addr = c.Cache.Redis.Addr
			rcfg.Password = c.Cache.Redis.Password
			rcfg.DB = c.Cache.Redis.DB
			if c.Cache.Redis.Namespace != "" {
				rcfg.Namespace = c.Cache.Redis.Namespace
			}
			rcfg.DefaultTTL = c.Cache.TTL
			backend, err := caredis.New(rcfg)
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithCache(backend))
		default:
			opts = append(opts, WithCache(memory.New(memory.Config{DefaultTTL: c.Cache.TTL})))
		}
	}

	for _, pc := range c.Providers {
		caps := make([]provider.Capability, 0, len(pc.Capabilities))
		for _, s := range pc.Capabilities {
			caps = append(caps, provider.Capability(s))
		}
		opts = append(opts, WithProvider(provider.Config{
			Name:         pc.Name,
			Type:         pc.Type,
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
			Timeout:      pc.Timeout,
			Headers:      pc.Headers,
			Capabilities: caps,
			RateLimit:    pc.RateLimit,
			RateBurst:    pc.RateBurst,
		}))
	}

	return opts, nil
}
