// Package routers provides provider selection strategies driven by live
// runtime statistics.
package routers

import (
	"time"

	aierrors "github.com/13108387302/aigate/pkg/errors"
	"github.com/13108387302/aigate/pkg/types"
)

// StatsSource supplies the live statistics the selector scores against.
// internal/health.Tracker implements it.
type StatsSource interface {
	Snapshot(name string) (types.ProviderStats, bool)
	Healthy(name string) bool
}

// Selector picks one provider from a candidate list.
// Candidates arrive in registration order; implementations must be
// deterministic for identical stats.
type Selector interface {
	Select(candidates []string) (string, error)
}

// Config holds the scoring weights. The zero value is unusable; start from
// DefaultConfig.
type Config struct {
	// SuccessWeight scales the provider's success rate.
	SuccessWeight float64
	// LatencyWeight scales the inverse smoothed latency.
	LatencyWeight float64
	// IdleBonus is added for providers never used or idle past IdleAfter.
	IdleBonus float64
	// IdleAfter is the idle period that earns the bonus.
	IdleAfter time.Duration
	// LatencyFloor clamps the latency term so very fast providers do not
	// dominate the score.
	LatencyFloor time.Duration
	// DefaultProvider, when healthy and present among the candidates, is
	// chosen without scoring.
	DefaultProvider string
}

// DefaultConfig returns the standard scoring weights.
func DefaultConfig() Config {
	return Config{
		SuccessWeight: 0.7,
		LatencyWeight: 0.3,
		IdleBonus:     0.1,
		IdleAfter:     300 * time.Second,
		LatencyFloor:  100 * time.Millisecond,
	}
}

// ScoreSelector ranks healthy candidates by success rate and smoothed
// latency, preferring the configured default provider when it qualifies.
type ScoreSelector struct {
	cfg   Config
	stats StatsSource
	now   func() time.Time
}

// NewScoreSelector creates a selector over the given stats source.
func NewScoreSelector(cfg Config, stats StatsSource) *ScoreSelector {
	if cfg.SuccessWeight == 0 && cfg.LatencyWeight == 0 {
		cfg = Config{
			SuccessWeight:   DefaultConfig().SuccessWeight,
			LatencyWeight:   DefaultConfig().LatencyWeight,
			IdleBonus:       DefaultConfig().IdleBonus,
			IdleAfter:       DefaultConfig().IdleAfter,
			LatencyFloor:    DefaultConfig().LatencyFloor,
			DefaultProvider: cfg.DefaultProvider,
		}
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = DefaultConfig().IdleAfter
	}
	if cfg.LatencyFloor <= 0 {
		cfg.LatencyFloor = DefaultConfig().LatencyFloor
	}
	return &ScoreSelector{cfg: cfg, stats: stats, now: time.Now}
}

// Select picks the best healthy candidate. Ties break toward the earlier
// candidate, so identical stats always yield the same choice.
func (s *ScoreSelector) Select(candidates []string) (string, error) {
	healthy := candidates[:0:0]
	for _, name := range candidates {
		if s.stats.Healthy(name) {
			healthy = append(healthy, name)
		}
	}
	if len(healthy) == 0 {
		return "", aierrors.NewNoProviderAvailable()
	}

	if s.cfg.DefaultProvider != "" {
		for _, name := range healthy {
			if name == s.cfg.DefaultProvider {
				return name, nil
			}
		}
	}

	best := healthy[0]
	bestScore := s.score(healthy[0])
	for _, name := range healthy[1:] {
		if sc := s.score(name); sc > bestScore {
			best, bestScore = name, sc
		}
	}
	return best, nil
}

func (s *ScoreSelector) score(name string) float64 {
	st, ok := s.stats.Snapshot(name)
	if !ok {
		return 0
	}

	latency := st.AvgResponseTime
	if latency < s.cfg.LatencyFloor {
		latency = s.cfg.LatencyFloor
	}
	score := st.SuccessRate*s.cfg.SuccessWeight +
		(1/latency.Seconds())*s.cfg.LatencyWeight

	if st.LastUsed.IsZero() || s.now().Sub(st.LastUsed) > s.cfg.IdleAfter {
		score += s.cfg.IdleBonus
	}
	return score
}
