package types

import "time"

// ProviderStats is a read-only snapshot of one provider's rolling
// performance counters.
type ProviderStats struct {
	Requests        int64         `json:"requests"`
	Successes       int64         `json:"successes"`
	Failures        int64         `json:"failures"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	LastUsed        time.Time     `json:"last_used"`
	Healthy         bool          `json:"healthy"`
}

// ProviderHealth is the condensed health view exposed to callers.
type ProviderHealth struct {
	Healthy         bool          `json:"healthy"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	Requests        int64         `json:"requests"`
	LastUsed        time.Time     `json:"last_used"`
}

// Statistics aggregates orchestrator-level counters with the per-provider
// table. QueueDepth is keyed by priority name.
type Statistics struct {
	ProvidersCount      int                      `json:"providers_count"`
	RegisteredProviders []string                 `json:"registered_providers"`
	ActiveRequests      int                      `json:"active_requests"`
	TotalRequests       int64                    `json:"total_requests"`
	TotalSuccesses      int64                    `json:"total_successes"`
	TotalFailures       int64                    `json:"total_failures"`
	CacheHits           int64                    `json:"cache_hits"`
	SuccessRate         float64                  `json:"success_rate"`
	Uptime              time.Duration            `json:"uptime"`
	ProviderStats       map[string]ProviderStats `json:"provider_stats"`
	QueueDepth          map[string]int64         `json:"queue_depth"`
}
