package aigate

import (
	"context"
	"strings"
	"testing"
	"time"

	aierrors "github.com/13108387302/aigate/pkg/errors"
	"github.com/13108387302/aigate/pkg/types"
	"github.com/13108387302/aigate/providers/mock"
)

func TestDispatch_RetryBudget(t *testing.T) {
	p := mock.New(mock.WithName("primary"))
	p.FailWith(aierrors.NewServiceUnavailable("primary", "overloaded"))
	o := newTestOrchestrator(t,
		WithProviderInstance(p),
		WithRetry(2, time.Millisecond),
	)

	_, err := o.RouteRequest(context.Background(), types.NewRequest(types.TypeGenerate, "hi"), "primary")
	if aierrors.KindOf(err) != aierrors.KindServiceUnavailable {
		t.Fatalf("KindOf(err) = %v, want service_unavailable", aierrors.KindOf(err))
	}
	// Initial attempt plus two retries.
	if p.Calls() != 3 {
		t.Errorf("provider calls = %d, want 3", p.Calls())
	}

	stats := o.Statistics().ProviderStats["primary"]
	if stats.Requests != 3 {
		t.Errorf("recorded requests = %d, want 3", stats.Requests)
	}
	if stats.SuccessRate != 0 {
		t.Errorf("SuccessRate = %v, want 0", stats.SuccessRate)
	}
}

func TestDispatch_NonRetryableStopsImmediately(t *testing.T) {
	p := mock.New(mock.WithName("primary"))
	p.FailWith(aierrors.NewProcessing("primary", "malformed output", nil))
	o := newTestOrchestrator(t,
		WithProviderInstance(p),
		WithRetry(3, time.Millisecond),
	)

	_, err := o.RouteRequest(context.Background(), types.NewRequest(types.TypeGenerate, "hi"), "primary")
	if aierrors.KindOf(err) != aierrors.KindProcessing {
		t.Fatalf("KindOf(err) = %v, want processing_error", aierrors.KindOf(err))
	}
	if p.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1 (no retries for a non-retryable error)", p.Calls())
	}
}

func TestDispatch_RetrySucceedsMidway(t *testing.T) {
	p := mock.New(mock.WithName("primary"))
	p.Script("", aierrors.NewTimeout("primary", "upstream timeout"))
	p.Script("second time lucky", nil)
	o := newTestOrchestrator(t,
		WithProviderInstance(p),
		WithRetry(2, time.Millisecond),
	)

	resp, err := o.RouteRequest(context.Background(), types.NewRequest(types.TypeGenerate, "hi"), "primary")
	if err != nil {
		t.Fatalf("RouteRequest() error = %v", err)
	}
	if resp.Content != "second time lucky" {
		t.Errorf("Content = %q", resp.Content)
	}
	if p.Calls() != 2 {
		t.Errorf("provider calls = %d, want 2", p.Calls())
	}
}

func TestDispatch_FailoverSuccess(t *testing.T) {
	primary := mock.New(mock.WithName("primary"))
	primary.FailWith(aierrors.NewServiceUnavailable("primary", "down"))
	secondary := mock.New(mock.WithName("secondary"), mock.WithContent("rescued"))
	o := newTestOrchestrator(t,
		WithProviderInstance(primary),
		WithProviderInstance(secondary),
		WithRetry(2, time.Millisecond),
	)

	resp, err := o.RouteRequest(context.Background(), types.NewRequest(types.TypeGenerate, "hi"), "primary")
	if err != nil {
		t.Fatalf("RouteRequest() error = %v", err)
	}
	if resp.Provider != "secondary" {
		t.Errorf("Provider = %q, want secondary", resp.Provider)
	}
	if primary.Calls() != 3 {
		t.Errorf("primary calls = %d, want 3", primary.Calls())
	}
	if secondary.Calls() != 1 {
		t.Errorf("secondary calls = %d, want 1", secondary.Calls())
	}

	stats := o.Statistics()
	if stats.TotalSuccesses != 1 {
		t.Errorf("TotalSuccesses = %d, want 1", stats.TotalSuccesses)
	}
	if got := stats.ProviderStats["secondary"].SuccessRate; got != 1.0 {
		t.Errorf("secondary SuccessRate = %v, want 1.0", got)
	}
}

func TestDispatch_FailoverFailedCombinedError(t *testing.T) {
	primary := mock.New(mock.WithName("primary"))
	primary.FailWith(aierrors.NewServiceUnavailable("primary", "down"))
	secondary := mock.New(mock.WithName("secondary"))
	secondary.FailWith(aierrors.NewTimeout("secondary", "also down"))
	o := newTestOrchestrator(t,
		WithProviderInstance(primary),
		WithProviderInstance(secondary),
		WithRetry(1, time.Millisecond),
	)

	_, err := o.RouteRequest(context.Background(), types.NewRequest(types.TypeGenerate, "hi"), "primary")
	if err == nil {
		t.Fatal("expected a terminal error")
	}
	if aierrors.KindOf(err) != aierrors.KindProcessing {
		t.Errorf("KindOf(err) = %v, want processing_error", aierrors.KindOf(err))
	}
	msg := err.Error()
	if !strings.Contains(msg, "primary") || !strings.Contains(msg, "secondary") {
		t.Errorf("error should name both providers, got %q", msg)
	}
	if secondary.Calls() != 1 {
		t.Errorf("secondary calls = %d, want 1 (single failover attempt)", secondary.Calls())
	}
}

func TestDispatch_FallbackProviderPinned(t *testing.T) {
	primary := mock.New(mock.WithName("primary"))
	primary.FailWith(aierrors.NewServiceUnavailable("primary", "down"))
	second := mock.New(mock.WithName("second"))
	third := mock.New(mock.WithName("third"), mock.WithContent("from third"))
	o := newTestOrchestrator(t,
		WithProviderInstance(primary),
		WithProviderInstance(second),
		WithProviderInstance(third),
		WithFallbackProvider("third"),
		WithRetry(0, time.Millisecond),
	)

	resp, err := o.RouteRequest(context.Background(), types.NewRequest(types.TypeGenerate, "hi"), "primary")
	if err != nil {
		t.Fatalf("RouteRequest() error = %v", err)
	}
	if resp.Provider != "third" {
		t.Errorf("Provider = %q, want third (pinned fallback)", resp.Provider)
	}
	if second.Calls() != 0 {
		t.Errorf("second calls = %d, want 0", second.Calls())
	}
}

func TestDispatch_NoAlternateReturnsPrimaryError(t *testing.T) {
	p := mock.New(mock.WithName("only"))
	p.FailWith(aierrors.NewRateLimit("only", "slow down", time.Second))
	o := newTestOrchestrator(t,
		WithProviderInstance(p),
		WithRetry(0, time.Millisecond),
	)

	_, err := o.RouteRequest(context.Background(), types.NewRequest(types.TypeGenerate, "hi"), "only")
	if aierrors.KindOf(err) != aierrors.KindRateLimit {
		t.Fatalf("KindOf(err) = %v, want rate_limit", aierrors.KindOf(err))
	}
}

func TestDispatch_EndToEndFailoverFromDefault(t *testing.T) {
	a := mock.New(mock.WithName("A"))
	a.FailWith(aierrors.NewTimeout("A", "upstream timeout"))
	b := mock.New(mock.WithName("B"), mock.WithContent("B answers"))
	o := newTestOrchestrator(t,
		WithProviderInstance(a),
		WithProviderInstance(b),
		WithDefaultProvider("A"),
		WithMaxConcurrentRequests(1),
		WithCacheEnabled(true),
		WithCacheTTL(60*time.Second),
		WithRetry(2, time.Millisecond),
	)

	resp, err := o.RouteRequest(context.Background(), types.NewRequest(types.TypeGenerate, "hi"), "")
	if err != nil {
		t.Fatalf("RouteRequest() error = %v", err)
	}
	if resp.Provider != "B" {
		t.Fatalf("Provider = %q, want B", resp.Provider)
	}

	stats := o.Statistics().ProviderStats
	if stats["A"].Failures != 3 {
		t.Errorf("A failures = %d, want 3 (initial attempt + 2 retries)", stats["A"].Failures)
	}
	if stats["B"].Successes != 1 {
		t.Errorf("B successes = %d, want 1", stats["B"].Successes)
	}
}

func TestDispatch_ProbeFailureExcludesProvider(t *testing.T) {
	a := mock.New(mock.WithName("A"))
	b := mock.New(mock.WithName("B"), mock.WithContent("B answers"))
	o := newTestOrchestrator(t, WithProviderInstance(a), WithProviderInstance(b))

	// A failed probe removes A from the candidate set even with a perfect
	// track record.
	if _, err := o.RouteRequest(context.Background(), types.NewRequest(types.TypeGenerate, "warmup"), "A"); err != nil {
		t.Fatal(err)
	}
	a.SetAvailable(false)
	o.monitor.RunOnce(context.Background())

	resp, err := o.RouteRequest(context.Background(), types.NewRequest(types.TypeGenerate, "hi"), "")
	if err != nil {
		t.Fatalf("RouteRequest() error = %v", err)
	}
	if resp.Provider != "B" {
		t.Errorf("Provider = %q, want B (A's probe failed)", resp.Provider)
	}
}

func TestBackoffDelay_ExponentialAndCap(t *testing.T) {
	o := newTestOrchestrator(t,
		WithRetry(3, 100*time.Millisecond),
		WithRetryJitter(0),
		WithRetryMaxBackoff(300*time.Millisecond),
	)

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 300 * time.Millisecond}, // capped
		{10, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := o.backoffDelay(tt.retry); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestBackoffDelay_JitterBounds(t *testing.T) {
	o := newTestOrchestrator(t,
		WithRetry(1, 100*time.Millisecond),
		WithRetryJitter(0.5),
		WithRetryMaxBackoff(0),
	)

	lo := 50 * time.Millisecond
	hi := 150 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := o.backoffDelay(0)
		if d < lo || d > hi {
			t.Fatalf("backoffDelay(0) = %v, want within [%v, %v]", d, lo, hi)
		}
	}
}
