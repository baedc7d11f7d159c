// Package health tracks per-provider runtime statistics and probe results.
// The tracker feeds the provider selector with success rates, smoothed
// latencies, and health flags.
package health

import (
	"sync"
	"time"

	"github.com/13108387302/aigate/pkg/types"
)

const (
	// emaAlpha weights the latest latency sample in the moving average.
	emaAlpha = 0.3

	// healthyRatio is the minimum success rate for a provider with traffic
	// to count as healthy.
	healthyRatio = 0.8
)

type providerState struct {
	requests  int64
	successes int64
	failures  int64
	emaMillis float64
	lastUsed  time.Time
	probeOK   bool
}

// Tracker accumulates per-provider request outcomes and probe results.
type Tracker struct {
	mu        sync.RWMutex
	providers map[string]*providerState
	now       func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		providers: make(map[string]*providerState),
		now:       time.Now,
	}
}

// Register adds a provider to the tracker. New providers start healthy so
// they receive traffic before the first probe completes.
func (t *Tracker) Register(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.providers[name]; !ok {
		t.providers[name] = &providerState{probeOK: true}
	}
}

// Unregister removes a provider and its history.
func (t *Tracker) Unregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.providers, name)
}

// RecordSuccess folds a successful call into the provider's statistics.
func (t *Tracker) RecordSuccess(name string, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(name)
	s.requests++
	s.successes++
	s.lastUsed = t.now()
	s.sampleLatency(elapsed)
}

// RecordFailure folds a failed call into the provider's statistics.
// Failed calls still carry a latency sample: a slow backend that times out
// should look slow, not average.
func (t *Tracker) RecordFailure(name string, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(name)
	s.requests++
	s.failures++
	s.lastUsed = t.now()
	s.sampleLatency(elapsed)
}

// sampleLatency folds one latency observation into the moving average.
// The first observation seeds the average directly.
func (s *providerState) sampleLatency(elapsed time.Duration) {
	sample := float64(elapsed.Milliseconds())
	if s.emaMillis == 0 {
		s.emaMillis = sample
	} else {
		s.emaMillis = emaAlpha*sample + (1-emaAlpha)*s.emaMillis
	}
}

// SetProbeResult records the outcome of a background availability probe.
func (t *Tracker) SetProbeResult(name string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(name).probeOK = ok
}

// Healthy reports whether the provider should receive traffic: its last
// probe must have succeeded and its success rate must hold above the
// healthy threshold. Providers with no recorded attempts count as healthy
// so they receive traffic at all.
func (t *Tracker) Healthy(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.providers[name]
	if !ok {
		return false
	}
	return healthyLocked(s)
}

func healthyLocked(s *providerState) bool {
	if !s.probeOK {
		return false
	}
	if s.requests == 0 {
		return true
	}
	return float64(s.successes)/float64(s.requests) >= healthyRatio
}

// Snapshot returns a copy of one provider's statistics.
func (t *Tracker) Snapshot(name string) (types.ProviderStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.providers[name]
	if !ok {
		return types.ProviderStats{}, false
	}
	return snapshotLocked(s), true
}

// SnapshotAll returns a copy of every provider's statistics.
func (t *Tracker) SnapshotAll() map[string]types.ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]types.ProviderStats, len(t.providers))
	for name, s := range t.providers {
		out[name] = snapshotLocked(s)
	}
	return out
}

// Reset clears accumulated request history but keeps registrations and
// probe flags.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.providers {
		s.requests, s.successes, s.failures = 0, 0, 0
		s.emaMillis = 0
		s.lastUsed = time.Time{}
	}
}

func snapshotLocked(s *providerState) types.ProviderStats {
	var rate float64
	if s.requests > 0 {
		rate = float64(s.successes) / float64(s.requests)
	}
	return types.ProviderStats{
		Requests:        s.requests,
		Successes:       s.successes,
		Failures:        s.failures,
		SuccessRate:     rate,
		AvgResponseTime: time.Duration(s.emaMillis * float64(time.Millisecond)),
		LastUsed:        s.lastUsed,
		Healthy:         healthyLocked(s),
	}
}

func (t *Tracker) state(name string) *providerState {
	s, ok := t.providers[name]
	if !ok {
		s = &providerState{probeOK: true}
		t.providers[name] = s
	}
	return s
}
