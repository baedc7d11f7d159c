package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/13108387302/aigate/pkg/provider"
	"github.com/13108387302/aigate/pkg/types"
)

func TestFirstSampleSeedsAverage(t *testing.T) {
	tr := NewTracker()
	tr.RecordSuccess("openai", 200*time.Millisecond)

	s, ok := tr.Snapshot("openai")
	if !ok {
		t.Fatal("snapshot missing")
	}
	if s.AvgResponseTime != 200*time.Millisecond {
		t.Fatalf("AvgResponseTime = %v, want 200ms", s.AvgResponseTime)
	}
}

func TestMovingAverageSmoothing(t *testing.T) {
	tr := NewTracker()
	tr.RecordSuccess("openai", 100*time.Millisecond)
	tr.RecordSuccess("openai", 200*time.Millisecond)

	// 0.3*200 + 0.7*100 = 130ms
	s, _ := tr.Snapshot("openai")
	if s.AvgResponseTime != 130*time.Millisecond {
		t.Fatalf("AvgResponseTime = %v, want 130ms", s.AvgResponseTime)
	}
}

func TestFailuresSampleLatency(t *testing.T) {
	tr := NewTracker()
	tr.RecordSuccess("openai", 100*time.Millisecond)
	tr.RecordFailure("openai", 200*time.Millisecond)

	// 0.3*200 + 0.7*100 = 130ms: a slow failing backend must look slow.
	s, _ := tr.Snapshot("openai")
	if s.AvgResponseTime != 130*time.Millisecond {
		t.Fatalf("AvgResponseTime = %v, want 130ms", s.AvgResponseTime)
	}
	if s.Requests != 2 || s.Failures != 1 {
		t.Fatalf("counters = %+v", s)
	}
}

func TestFailureFirstHistorySeedsAverage(t *testing.T) {
	tr := NewTracker()
	tr.RecordFailure("openai", 0)
	tr.RecordSuccess("openai", time.Second)

	// A zero-latency failure leaves no prior average; the first real
	// sample seeds it whole.
	s, _ := tr.Snapshot("openai")
	if s.AvgResponseTime != time.Second {
		t.Fatalf("AvgResponseTime = %v, want 1s", s.AvgResponseTime)
	}
}

func TestHealthyThreshold(t *testing.T) {
	tr := NewTracker()
	tr.Register("openai")

	// No attempts yet: healthy by default.
	if !tr.Healthy("openai") {
		t.Fatal("provider with no attempts must start healthy")
	}

	// The rate applies from the very first attempt.
	tr.RecordFailure("openai", 10*time.Millisecond)
	if tr.Healthy("openai") {
		t.Fatal("provider with 0/1 success rate must be unhealthy")
	}

	// Recover to 4/5 = 0.8, exactly at the floor.
	for i := 0; i < 4; i++ {
		tr.RecordSuccess("openai", 50*time.Millisecond)
	}
	if !tr.Healthy("openai") {
		t.Fatal("provider at the 0.8 floor must be healthy")
	}

	// One more failure: 4/6 < 0.8.
	tr.RecordFailure("openai", 10*time.Millisecond)
	if tr.Healthy("openai") {
		t.Fatal("provider under the 0.8 floor must be unhealthy")
	}
}

func TestUnusedProviderRateIsZero(t *testing.T) {
	tr := NewTracker()
	tr.Register("openai")

	s, ok := tr.Snapshot("openai")
	if !ok {
		t.Fatal("snapshot missing")
	}
	if s.SuccessRate != 0 {
		t.Fatalf("SuccessRate = %v, want 0 for a provider with no requests", s.SuccessRate)
	}
	if !s.Healthy {
		t.Fatal("unused provider must still be healthy")
	}
}

func TestConcurrentRecordingStaysConsistent(t *testing.T) {
	tr := NewTracker()
	tr.Register("openai")

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if (w+i)%4 == 0 {
					tr.RecordFailure("openai", 20*time.Millisecond)
				} else {
					tr.RecordSuccess("openai", 10*time.Millisecond)
				}
			}
		}(w)
	}
	wg.Wait()

	s, _ := tr.Snapshot("openai")
	if s.Requests != workers*perWorker {
		t.Fatalf("Requests = %d, want %d", s.Requests, workers*perWorker)
	}
	if s.Successes+s.Failures != s.Requests {
		t.Fatalf("successes %d + failures %d != requests %d",
			s.Successes, s.Failures, s.Requests)
	}
	wantRate := float64(s.Successes) / float64(s.Requests)
	if s.SuccessRate != wantRate {
		t.Fatalf("SuccessRate = %v, want %v", s.SuccessRate, wantRate)
	}
	if s.Healthy != (wantRate >= 0.8) {
		t.Fatalf("Healthy = %v with rate %v", s.Healthy, wantRate)
	}
}

func TestProbeResultOverrides(t *testing.T) {
	tr := NewTracker()
	tr.Register("openai")
	tr.RecordSuccess("openai", 10*time.Millisecond)

	tr.SetProbeResult("openai", false)
	if tr.Healthy("openai") {
		t.Fatal("failed probe must mark provider unhealthy")
	}
	tr.SetProbeResult("openai", true)
	if !tr.Healthy("openai") {
		t.Fatal("passing probe must restore health")
	}
}

func TestUnknownProviderUnhealthy(t *testing.T) {
	tr := NewTracker()
	if tr.Healthy("ghost") {
		t.Fatal("unregistered provider must not be healthy")
	}
}

func TestResetKeepsRegistrations(t *testing.T) {
	tr := NewTracker()
	tr.RecordSuccess("openai", time.Second)
	tr.SetProbeResult("openai", false)

	tr.Reset()

	s, ok := tr.Snapshot("openai")
	if !ok {
		t.Fatal("registration lost on reset")
	}
	if s.Requests != 0 || s.AvgResponseTime != 0 {
		t.Fatalf("history not cleared: %+v", s)
	}
	if tr.Healthy("openai") {
		t.Fatal("probe flag must survive reset")
	}
}

type probeProvider struct {
	name string
	up   bool
}

func (p *probeProvider) Name() string                        { return p.name }
func (p *probeProvider) Capabilities() []provider.Capability { return nil }
func (p *probeProvider) IsAvailable(context.Context) bool    { return p.up }
func (p *probeProvider) Generate(context.Context, *types.Request) (*types.Response, error) {
	return nil, errors.New("not implemented")
}
func (p *probeProvider) GenerateStream(context.Context, *types.Request) (provider.Stream, error) {
	return nil, errors.New("not implemented")
}

type staticLister struct{ providers []provider.Provider }

func (l staticLister) List() []provider.Provider { return l.providers }

func TestMonitorRecordsProbeOutcomes(t *testing.T) {
	tr := NewTracker()
	tr.Register("up")
	tr.Register("down")

	lister := staticLister{providers: []provider.Provider{
		&probeProvider{name: "up", up: true},
		&probeProvider{name: "down"},
	}}

	m := NewMonitor(MonitorConfig{Enabled: true}, lister, tr, slog.Default())
	m.RunOnce(context.Background())

	if !tr.Healthy("up") {
		t.Fatal("reachable provider must be healthy")
	}
	if tr.Healthy("down") {
		t.Fatal("unreachable provider must be unhealthy")
	}
}
