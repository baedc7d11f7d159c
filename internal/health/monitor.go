package health

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/13108387302/aigate/pkg/provider"
)

const (
	defaultProbeInterval = 60 * time.Second
	defaultProbeTimeout  = 5 * time.Second
)

// MonitorConfig controls the background probe loop.
type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
}

// ProviderLister supplies the current provider set to probe.
type ProviderLister interface {
	List() []provider.Provider
}

// Monitor periodically probes every registered provider and records the
// results in the tracker.
type Monitor struct {
	cfg     MonitorConfig
	lister  ProviderLister
	tracker *Tracker
	logger  *slog.Logger
	started atomic.Bool
}

// NewMonitor creates a health monitor.
func NewMonitor(cfg MonitorConfig, lister ProviderLister, tracker *Tracker, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:     cfg,
		lister:  lister,
		tracker: tracker,
		logger:  logger,
	}
}

// Start begins the probe loop until the context is canceled. The first
// sweep runs immediately so startup state reflects real probes quickly.
func (m *Monitor) Start(ctx context.Context) {
	if m == nil || !m.cfg.Enabled {
		return
	}
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			m.RunOnce(ctx)
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return
		}
	}
}

// RunOnce probes every provider a single time.
func (m *Monitor) RunOnce(ctx context.Context) {
	for _, p := range m.lister.List() {
		if ctx.Err() != nil {
			return
		}
		m.probe(ctx, p)
	}
}

func (m *Monitor) probe(ctx context.Context, p provider.Provider) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	ok := p.IsAvailable(probeCtx)
	m.tracker.SetProbeResult(p.Name(), ok)
	if !ok {
		m.logger.Warn("provider probe failed", "provider", p.Name())
	}
}
