package aigate

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/13108387302/aigate/internal/metrics"
	aierrors "github.com/13108387302/aigate/pkg/errors"
	"github.com/13108387302/aigate/pkg/provider"
	"github.com/13108387302/aigate/pkg/types"
)

// dispatch runs the request against the primary provider with retries, then
// falls over to a single alternate attempt when the primary exhausts its
// budget. Every failed attempt is recorded against the provider's stats.
func (o *Orchestrator) dispatch(ctx context.Context, prov provider.Provider, req *types.Request) (*types.Response, error) {
	o.mu.RLock()
	attempts := o.cfg.RetryAttempts
	o.mu.RUnlock()

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			metrics.RetriesTotal.WithLabelValues(prov.Name()).Inc()
			if err := o.waitBackoff(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		resp, err := o.executeOnce(ctx, prov, req)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		lastErr = err

		if !aierrors.IsRetryable(err) {
			return nil, err
		}
	}

	return o.failover(ctx, prov, req, lastErr)
}

// executeOnce makes a single provider call and folds the outcome into the
// stats tracker. Cancellation is not charged against the provider.
func (o *Orchestrator) executeOnce(ctx context.Context, prov provider.Provider, req *types.Request) (*types.Response, error) {
	start := time.Now()

	resp, err := prov.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		o.tracker.RecordFailure(prov.Name(), time.Since(start))
		return nil, err
	}
	if !resp.Success() {
		o.tracker.RecordFailure(prov.Name(), time.Since(start))
		msg := resp.Error
		if msg == "" {
			msg = "provider returned empty content"
		}
		return nil, aierrors.NewProcessing(prov.Name(), msg, nil)
	}

	o.tracker.RecordSuccess(prov.Name(), time.Since(start))
	return resp, nil
}

// failover tries one alternate provider after the primary gave up.
func (o *Orchestrator) failover(ctx context.Context, primary provider.Provider, req *types.Request, primaryErr error) (*types.Response, error) {
	alt := o.alternateFor(primary.Name(), req)
	if alt == nil {
		return nil, primaryErr
	}

	metrics.FailoversTotal.WithLabelValues(primary.Name(), alt.Name()).Inc()
	o.logger.Warn("failing over",
		"request_id", req.ID,
		"from", primary.Name(),
		"to", alt.Name(),
		"error", primaryErr,
	)

	resp, err := o.executeOnce(ctx, alt, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		return nil, aierrors.NewFailoverFailed(primary.Name(), alt.Name(), primaryErr, err)
	}
	return resp, nil
}

// alternateFor picks the failover target: the configured fallback provider
// when it exists and differs from the primary, else the selector's best
// pick excluding the primary.
func (o *Orchestrator) alternateFor(primaryName string, req *types.Request) provider.Provider {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if name := o.cfg.FallbackProvider; name != "" && name != primaryName {
		if p, ok := o.providers[name]; ok {
			return p
		}
	}

	candidates := make([]string, 0, len(o.order))
	for _, name := range o.order {
		if name == primaryName {
			continue
		}
		if provider.Supports(o.providers[name].Capabilities(), req.Type) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	name, err := o.selector.Select(candidates)
	if err != nil {
		return nil
	}
	return o.providers[name]
}

// waitBackoff sleeps for the exponential backoff delay of the given retry,
// honoring cancellation. Delays are doubled while the network is degraded.
func (o *Orchestrator) waitBackoff(ctx context.Context, retry int) error {
	delay := o.backoffDelay(retry)
	select {
	case <-ctx.Done():
		if ctx.Err() == context.Canceled {
			return context.Canceled
		}
		return aierrors.NewTimeout("", "canceled during retry backoff")
	case <-time.After(delay):
		return nil
	}
}

func (o *Orchestrator) backoffDelay(retry int) time.Duration {
	o.mu.RLock()
	base := o.cfg.RetryBackoff
	maxBackoff := o.cfg.RetryMaxBackoff
	jitter := o.cfg.RetryJitter
	o.mu.RUnlock()

	if retry > 30 {
		retry = 30
	}
	delay := base * time.Duration(1<<uint(retry))
	if maxBackoff > 0 && delay > maxBackoff {
		delay = maxBackoff
	}
	if jitter > 0 {
		spread := 1 + jitter*(2*rand.Float64()-1)
		delay = time.Duration(float64(delay) * spread)
	}
	if o.probe.Degraded() {
		delay *= 2
	}
	return delay
}
