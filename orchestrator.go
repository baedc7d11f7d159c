package aigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/13108387302/aigate/caches/memory"
	"github.com/13108387302/aigate/internal/gate"
	"github.com/13108387302/aigate/internal/health"
	"github.com/13108387302/aigate/internal/metrics"
	"github.com/13108387302/aigate/internal/netprobe"
	"github.com/13108387302/aigate/pkg/cache"
	aierrors "github.com/13108387302/aigate/pkg/errors"
	"github.com/13108387302/aigate/pkg/provider"
	"github.com/13108387302/aigate/pkg/types"
	"github.com/13108387302/aigate/providers"
	"github.com/13108387302/aigate/routers"
)

// Orchestrator routes AI requests across registered providers with caching,
// bounded concurrency, retries, and failover.
type Orchestrator struct {
	mu        sync.RWMutex
	cfg       *Config
	providers map[string]provider.Provider
	order     []string
	selector  routers.Selector

	tracker  *health.Tracker
	gate     *gate.Gate
	registry *gate.Registry
	cache    cache.Cache
	events   *eventBus
	probe    *netprobe.Prober
	monitor  *health.Monitor
	logger   *slog.Logger
	tracer   trace.Tracer

	totalRequests  atomic.Int64
	totalSuccesses atomic.Int64
	totalFailures  atomic.Int64
	cacheHits      atomic.Int64
	startedAt      time.Time

	bgCancel context.CancelFunc
	onClose  []func() error
	closed   atomic.Bool
}

// New creates an Orchestrator from the given options.
func New(opts ...Option) (*Orchestrator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	o := &Orchestrator{
		cfg:       cfg,
		providers: make(map[string]provider.Provider),
		tracker:   health.NewTracker(),
		gate:      gate.New(cfg.MaxConcurrentRequests),
		registry:  gate.NewRegistry(),
		events:    newEventBus(),
		logger:    cfg.Logger,
		tracer:    otel.Tracer("github.com/13108387302/aigate"),
		startedAt: time.Now(),
	}

	o.selector = cfg.Selector
	if o.selector == nil {
		selCfg := cfg.SelectorConfig
		if selCfg.DefaultProvider == "" {
			selCfg.DefaultProvider = cfg.DefaultProvider
		}
		o.selector = routers.NewScoreSelector(selCfg, o.tracker)
	}

	if cfg.CacheEnabled {
		o.cache = cfg.Cache
		if o.cache == nil {
			o.cache = memory.New(memory.Config{DefaultTTL: cfg.CacheTTL})
		}
	}

	for _, pc := range cfg.Providers {
		p, err := providers.Create(pc)
		if err != nil {
			return nil, fmt.Errorf("create provider %q: %w", pc.Name, err)
		}
		if err := o.RegisterProvider(p); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.ProviderInstances {
		if err := o.RegisterProvider(p); err != nil {
			return nil, err
		}
	}

	bg, cancel := context.WithCancel(context.Background())
	o.bgCancel = cancel

	o.monitor = health.NewMonitor(health.MonitorConfig{
		Enabled:  cfg.HealthCheckEnabled,
		Interval: cfg.HealthCheckInterval,
		Timeout:  cfg.ProbeTimeout,
	}, providerLister{o}, o.tracker, o.logger)
	o.monitor.Start(bg)

	o.probe = netprobe.New(netprobe.Config{
		Enabled:  cfg.NetprobeEnabled,
		Interval: cfg.NetprobeInterval,
		URLs:     cfg.NetprobeURLs,
	}, o.logger)
	o.probe.Start(bg)

	return o, nil
}

// providerLister adapts the orchestrator for the health monitor.
type providerLister struct{ o *Orchestrator }

func (l providerLister) List() []provider.Provider {
	l.o.mu.RLock()
	defer l.o.mu.RUnlock()
	out := make([]provider.Provider, 0, len(l.o.order))
	for _, name := range l.o.order {
		out = append(out, l.o.providers[name])
	}
	return out
}

// RegisterProvider adds a provider. Names must be unique.
func (o *Orchestrator) RegisterProvider(p provider.Provider) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("provider has no name")
	}

	o.mu.Lock()
	if _, exists := o.providers[name]; exists {
		o.mu.Unlock()
		return fmt.Errorf("provider %q already registered", name)
	}
	o.providers[name] = p
	o.order = append(o.order, name)
	o.mu.Unlock()

	o.tracker.Register(name)
	metrics.ProviderHealth.WithLabelValues(name).Set(1)
	o.events.publish(Event{Type: EventProviderRegistered, Provider: name})
	o.logger.Info("provider registered", "provider", name)
	return nil
}

// Provider returns a registered provider by name.
func (o *Orchestrator) Provider(name string) (provider.Provider, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.providers[name]
	return p, ok
}

// Providers returns the registered provider names in registration order.
func (o *Orchestrator) Providers() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// Capabilities returns the union of all registered providers' capabilities.
func (o *Orchestrator) Capabilities() []provider.Capability {
	o.mu.RLock()
	defer o.mu.RUnlock()

	seen := make(map[provider.Capability]bool)
	var out []provider.Capability
	for _, name := range o.order {
		for _, c := range o.providers[name].Capabilities() {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// CheckAvailability reports whether any provider is currently reachable.
func (o *Orchestrator) CheckAvailability(ctx context.Context) bool {
	for _, p := range (providerLister{o}).List() {
		if p.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

// RouteRequest validates, admits, routes, and executes a request.
// providerName pins a specific provider; leave it empty to let the scoring
// selector choose.
func (o *Orchestrator) RouteRequest(ctx context.Context, req *types.Request, providerName string) (*types.Response, error) {
	if o.closed.Load() {
		return nil, aierrors.NewProcessing("", "orchestrator is closed", nil)
	}

	ctx, span := o.tracer.Start(ctx, "aigate.RouteRequest",
		trace.WithAttributes(attribute.String("request.type", string(req.Type))))
	defer span.End()

	if violations := req.Validate(); len(violations) > 0 {
		err := aierrors.NewInvalidRequest(violations)
		span.RecordError(err)
		o.events.publish(Event{Type: EventRequestFailed, RequestID: req.ID, Err: err})
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	o.totalRequests.Add(1)

	// Cache hits skip provider stats and gate admission entirely.
	if resp, ok := o.cacheRead(ctx, req); ok {
		o.cacheHits.Add(1)
		o.totalSuccesses.Add(1)
		metrics.CacheEvents.WithLabelValues("hit").Inc()
		o.events.publish(Event{Type: EventRequestCompleted, RequestID: req.ID, Provider: resp.Provider})
		return resp, nil
	}

	reqCtx, cancel := o.requestContext(ctx, req)
	defer cancel()
	removeActive := o.registry.Add(req.ID, cancel)
	defer removeActive()

	metrics.QueueDepth.WithLabelValues(req.Priority.String()).Inc()
	release, err := o.gate.Acquire(reqCtx, req.Priority)
	metrics.QueueDepth.WithLabelValues(req.Priority.String()).Dec()
	if err != nil {
		err = o.admissionError(reqCtx, err)
		span.RecordError(err)
		o.totalFailures.Add(1)
		o.events.publish(Event{Type: EventRequestFailed, RequestID: req.ID, Err: err})
		return nil, err
	}
	metrics.ActiveRequests.Inc()
	defer func() {
		metrics.ActiveRequests.Dec()
		release()
	}()

	prov, err := o.pickProvider(req, providerName)
	if err != nil {
		span.RecordError(err)
		o.totalFailures.Add(1)
		o.events.publish(Event{Type: EventRequestFailed, RequestID: req.ID, Err: err})
		return nil, err
	}
	span.SetAttributes(attribute.String("provider", prov.Name()))
	o.events.publish(Event{Type: EventRequestStarted, RequestID: req.ID, Provider: prov.Name()})

	start := time.Now()
	resp, err := o.dispatch(reqCtx, prov, req)

	// A result that lands after CancelRequest is discarded.
	if reqCtx.Err() == context.Canceled {
		o.totalFailures.Add(1)
		metrics.RequestsTotal.WithLabelValues(prov.Name(), string(req.Type), "canceled").Inc()
		o.events.publish(Event{Type: EventRequestCanceled, RequestID: req.ID, Provider: prov.Name()})
		return nil, context.Canceled
	}

	if err != nil {
		span.RecordError(err)
		o.totalFailures.Add(1)
		metrics.RequestsTotal.WithLabelValues(prov.Name(), string(req.Type), "failure").Inc()
		o.events.publish(Event{Type: EventRequestFailed, RequestID: req.ID, Provider: prov.Name(), Err: err})
		return nil, err
	}

	o.totalSuccesses.Add(1)
	metrics.RequestsTotal.WithLabelValues(resp.Provider, string(req.Type), "success").Inc()
	metrics.RequestLatency.WithLabelValues(resp.Provider, string(req.Type)).Observe(time.Since(start).Seconds())
	o.cacheWrite(ctx, req, resp)
	o.events.publish(Event{Type: EventRequestCompleted, RequestID: req.ID, Provider: resp.Provider})
	return resp, nil
}

// ProcessRequestStream executes a request in streaming mode. Streaming
// bypasses the cache on both read and write but still counts against the
// concurrency bound.
func (o *Orchestrator) ProcessRequestStream(ctx context.Context, req *types.Request) (*Stream, error) {
	if o.closed.Load() {
		return nil, aierrors.NewProcessing("", "orchestrator is closed", nil)
	}

	ctx, span := o.tracer.Start(ctx, "aigate.ProcessRequestStream",
		trace.WithAttributes(attribute.String("request.type", string(req.Type))))
	defer span.End()

	if violations := req.Validate(); len(violations) > 0 {
		err := aierrors.NewInvalidRequest(violations)
		span.RecordError(err)
		o.events.publish(Event{Type: EventStreamFailed, RequestID: req.ID, Err: err})
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Stream = true
	metrics.CacheEvents.WithLabelValues("bypass").Inc()

	o.totalRequests.Add(1)

	reqCtx, cancel := o.requestContext(ctx, req)
	removeActive := o.registry.Add(req.ID, cancel)

	finish := func() {
		removeActive()
		cancel()
	}

	metrics.QueueDepth.WithLabelValues(req.Priority.String()).Inc()
	release, err := o.gate.Acquire(reqCtx, req.Priority)
	metrics.QueueDepth.WithLabelValues(req.Priority.String()).Dec()
	if err != nil {
		err = o.admissionError(reqCtx, err)
		finish()
		span.RecordError(err)
		o.totalFailures.Add(1)
		o.events.publish(Event{Type: EventStreamFailed, RequestID: req.ID, Err: err})
		return nil, err
	}
	metrics.ActiveRequests.Inc()
	cleanup := func() {
		metrics.ActiveRequests.Dec()
		release()
		finish()
	}

	prov, err := o.pickProvider(req, "")
	if err != nil {
		cleanup()
		span.RecordError(err)
		o.totalFailures.Add(1)
		o.events.publish(Event{Type: EventStreamFailed, RequestID: req.ID, Err: err})
		return nil, err
	}
	span.SetAttributes(attribute.String("provider", prov.Name()))

	start := time.Now()
	inner, err := prov.GenerateStream(reqCtx, req)
	if err != nil {
		o.tracker.RecordFailure(prov.Name(), time.Since(start))
		cleanup()
		span.RecordError(err)
		o.totalFailures.Add(1)
		metrics.RequestsTotal.WithLabelValues(prov.Name(), string(req.Type), "failure").Inc()
		o.events.publish(Event{Type: EventStreamFailed, RequestID: req.ID, Provider: prov.Name(), Err: err})
		return nil, err
	}

	o.events.publish(Event{Type: EventStreamStarted, RequestID: req.ID, Provider: prov.Name()})
	return newStream(o, inner, prov.Name(), req, start, cleanup), nil
}

// CancelRequest cancels an in-flight request by ID. Returns false when the
// request is not active.
func (o *Orchestrator) CancelRequest(id string) bool {
	return o.registry.Cancel(id)
}

// ActiveRequests lists the IDs of requests currently in flight.
func (o *Orchestrator) ActiveRequests() []string {
	return o.registry.IDs()
}

// Statistics returns an aggregate snapshot of engine counters.
func (o *Orchestrator) Statistics() types.Statistics {
	names := o.Providers()

	total := o.totalRequests.Load()
	successes := o.totalSuccesses.Load()
	var rate float64
	if total > 0 {
		rate = float64(successes) / float64(total)
	}

	return types.Statistics{
		ProvidersCount:      len(names),
		RegisteredProviders: names,
		ActiveRequests:      int(o.gate.Active()),
		TotalRequests:       total,
		TotalSuccesses:      successes,
		TotalFailures:       o.totalFailures.Load(),
		CacheHits:           o.cacheHits.Load(),
		SuccessRate:         rate,
		Uptime:              time.Since(o.startedAt),
		ProviderStats:       o.tracker.SnapshotAll(),
		QueueDepth:          o.gate.QueueDepth(),
	}
}

// ProviderHealth returns the condensed per-provider health view.
func (o *Orchestrator) ProviderHealth() map[string]types.ProviderHealth {
	snapshots := o.tracker.SnapshotAll()
	out := make(map[string]types.ProviderHealth, len(snapshots))
	for name, s := range snapshots {
		out[name] = types.ProviderHealth{
			Healthy:         s.Healthy,
			SuccessRate:     s.SuccessRate,
			AvgResponseTime: s.AvgResponseTime,
			Requests:        s.Requests,
			LastUsed:        s.LastUsed,
		}
		flag := 0.0
		if s.Healthy {
			flag = 1.0
		}
		metrics.ProviderHealth.WithLabelValues(name).Set(flag)
	}
	return out
}

// ResetStatistics zeroes the aggregate and per-provider counters. Provider
// registrations and probe results are preserved.
func (o *Orchestrator) ResetStatistics() {
	o.totalRequests.Store(0)
	o.totalSuccesses.Store(0)
	o.totalFailures.Store(0)
	o.cacheHits.Store(0)
	o.tracker.Reset()
}

// UpdateConfig applies runtime-tunable settings atomically. Requests in
// flight keep the settings they started with; the gate resize takes effect
// for subsequent admissions.
func (o *Orchestrator) UpdateConfig(apply func(*Config)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	apply(o.cfg)

	if o.cfg.MaxConcurrentRequests > 0 {
		o.gate.Resize(o.cfg.MaxConcurrentRequests)
	}
	if o.cfg.Selector != nil {
		o.selector = o.cfg.Selector
	} else {
		selCfg := o.cfg.SelectorConfig
		if selCfg.DefaultProvider == "" {
			selCfg.DefaultProvider = o.cfg.DefaultProvider
		}
		o.selector = routers.NewScoreSelector(selCfg, o.tracker)
	}
	o.logger.Info("configuration updated",
		"max_concurrent_requests", o.cfg.MaxConcurrentRequests,
		"default_provider", o.cfg.DefaultProvider,
	)
}

// Subscribe registers a callback for lifecycle events. Callbacks run
// synchronously on the publishing goroutine and must not block.
func (o *Orchestrator) Subscribe(fn func(Event)) {
	o.events.subscribe(fn)
}

// Close stops background tasks and releases the cache backend.
// In-flight requests are canceled.
func (o *Orchestrator) Close() error {
	if !o.closed.CompareAndSwap(false, true) {
		return nil
	}
	o.bgCancel()
	for _, id := range o.registry.IDs() {
		o.registry.Cancel(id)
	}
	for _, fn := range o.onClose {
		if err := fn(); err != nil {
			o.logger.Warn("close hook failed", "error", err)
		}
	}
	if o.cache != nil {
		if err := o.cache.Close(); err != nil {
			return err
		}
	}
	o.logger.Info("orchestrator closed")
	return nil
}

// requestContext derives the per-request context: the request's own timeout
// wins, then the configured default for non-streaming work.
func (o *Orchestrator) requestContext(ctx context.Context, req *types.Request) (context.Context, context.CancelFunc) {
	timeout := req.Timeout
	if timeout <= 0 && !req.Stream {
		o.mu.RLock()
		timeout = o.cfg.RequestTimeout
		o.mu.RUnlock()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) admissionError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
		return context.Canceled
	}
	return aierrors.NewTimeout("", "timed out waiting for admission")
}

// pickProvider resolves the provider for a request: explicit name, else the
// selector over capability-matching candidates.
func (o *Orchestrator) pickProvider(req *types.Request, providerName string) (provider.Provider, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if providerName != "" {
		p, ok := o.providers[providerName]
		if !ok {
			return nil, aierrors.NewProviderNotFound(providerName)
		}
		return p, nil
	}

	candidates := make([]string, 0, len(o.order))
	for _, name := range o.order {
		if provider.Supports(o.providers[name].Capabilities(), req.Type) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return nil, aierrors.NewNoProviderAvailable()
	}

	name, err := o.selector.Select(candidates)
	if err != nil {
		return nil, err
	}
	return o.providers[name], nil
}

func (o *Orchestrator) cacheKey(req *types.Request) string {
	return cache.Fingerprint(req)
}

func (o *Orchestrator) cacheRead(ctx context.Context, req *types.Request) (*types.Response, bool) {
	if o.cache == nil || req.Stream {
		return nil, false
	}

	data, err := o.cache.Get(ctx, o.cacheKey(req))
	if err != nil {
		o.logger.Warn("cache read failed", "error", err)
		return nil, false
	}
	if data == nil {
		metrics.CacheEvents.WithLabelValues("miss").Inc()
		return nil, false
	}

	var resp types.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		o.logger.Warn("cache entry corrupt, dropping", "error", err)
		_ = o.cache.Delete(ctx, o.cacheKey(req))
		return nil, false
	}
	resp.RequestID = req.ID
	return &resp, true
}

func (o *Orchestrator) cacheWrite(ctx context.Context, req *types.Request, resp *types.Response) {
	if o.cache == nil || req.Stream || !resp.Success() {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		o.logger.Warn("cache write marshal failed", "error", err)
		return
	}

	o.mu.RLock()
	ttl := o.cfg.CacheTTL
	o.mu.RUnlock()

	if err := o.cache.Set(ctx, o.cacheKey(req), data, ttl); err != nil {
		o.logger.Warn("cache write failed", "error", err)
	}
}
