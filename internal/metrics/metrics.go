// Package metrics provides Prometheus metrics for the orchestration engine.
// It tracks request outcomes, latencies, cache effectiveness, retries,
// failovers, admission pressure, and provider health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aigate"

// LatencyBuckets defines histogram buckets for latency metrics (in seconds).
var LatencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0,
	7.5, 10.0, 15.0, 20.0, 30.0, 60.0, 120.0,
}

var (
	// RequestsTotal counts dispatched requests by provider, request type,
	// and outcome (success, failure, canceled).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of dispatched requests",
		},
		[]string{"provider", "type", "outcome"},
	)

	// RequestLatency tracks end-to-end request latency.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "End-to-end request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"provider", "type"},
	)

	// CacheEvents counts cache lookups by result (hit, miss, bypass).
	CacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Cache lookup outcomes",
		},
		[]string{"result"},
	)

	// RetriesTotal counts retry attempts by provider.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retry attempts",
		},
		[]string{"provider"},
	)

	// FailoversTotal counts failover attempts from one provider to another.
	FailoversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failovers_total",
			Help:      "Total number of failover attempts",
		},
		[]string{"from", "to"},
	)

	// ActiveRequests gauges requests currently holding an admission slot.
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Requests currently admitted and in flight",
		},
	)

	// QueueDepth gauges callers waiting for admission by priority.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "admission_queue_depth",
			Help:      "Callers waiting for an admission slot",
		},
		[]string{"priority"},
	)

	// ProviderHealth gauges probe-derived provider health (1 healthy, 0 not).
	ProviderHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_healthy",
			Help:      "Provider health flag (1 healthy, 0 unhealthy)",
		},
		[]string{"provider"},
	)

	// StreamChunks counts streamed content chunks by provider.
	StreamChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_chunks_total",
			Help:      "Total streamed content chunks",
		},
		[]string{"provider"},
	)
)
