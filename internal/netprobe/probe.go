// Package netprobe watches general network reachability so the dispatcher
// can stretch its retry backoff while connectivity is poor.
package netprobe

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	defaultInterval   = 30 * time.Second
	defaultURLTimeout = 3 * time.Second
)

// Config controls the reachability prober.
type Config struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration // per-URL probe timeout
	URLs     []string      // endpoints to probe, typically the provider API hosts
}

// Prober periodically HEADs a set of URLs and derives a degraded flag.
type Prober struct {
	cfg      Config
	client   *http.Client
	logger   *slog.Logger
	degraded atomic.Bool
	started  atomic.Bool
}

// New creates a reachability prober.
func New(cfg Config, logger *slog.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultURLTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Start begins the probe loop until the context is canceled.
func (p *Prober) Start(ctx context.Context) {
	if p == nil || !p.cfg.Enabled || len(p.cfg.URLs) == 0 {
		return
	}
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.run(ctx)
}

func (p *Prober) run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce sweeps every configured URL and updates the degraded flag.
// The network counts as degraded when fewer than half the probes succeed.
func (p *Prober) RunOnce(ctx context.Context) {
	if len(p.cfg.URLs) == 0 {
		return
	}

	reachable := 0
	for _, url := range p.cfg.URLs {
		if ctx.Err() != nil {
			return
		}
		if p.probeURL(ctx, url) {
			reachable++
		}
	}

	degraded := reachable*2 < len(p.cfg.URLs)
	if degraded != p.degraded.Swap(degraded) {
		p.logger.Warn("network condition changed",
			"degraded", degraded,
			"reachable", reachable,
			"probed", len(p.cfg.URLs),
		)
	}
}

func (p *Prober) probeURL(ctx context.Context, url string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	// Any HTTP response means the network path works, even a 4xx/5xx.
	return true
}

// Degraded reports whether the last sweep found the network degraded.
func (p *Prober) Degraded() bool {
	if p == nil {
		return false
	}
	return p.degraded.Load()
}
