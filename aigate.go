// Package aigate provides an in-process AI request orchestration engine.
// It validates and fingerprints requests, caches responses with TTL,
// bounds concurrency, routes each request to the best-scoring provider,
// and retries with exponential backoff plus a single failover attempt.
//
// Basic usage:
//
//	engine, err := aigate.New(
//	    aigate.WithProvider(provider.Config{
//	        Name:   "openai",
//	        Type:   "openai",
//	        APIKey: os.Getenv("OPENAI_API_KEY"),
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	req := aigate.NewRequest(aigate.RequestTypeGenerate, "Write an opening line.")
//	resp, err := engine.RouteRequest(ctx, req, "")
package aigate

import (
	"github.com/13108387302/aigate/pkg/cache"
	"github.com/13108387302/aigate/pkg/errors"
	"github.com/13108387302/aigate/pkg/provider"
	"github.com/13108387302/aigate/pkg/types"
)

// Version is the current version of the engine.
const Version = "1.0.0"

// Re-export core request/response types for convenience.
type (
	// Request is a unified AI request.
	Request = types.Request

	// Response is a unified AI response.
	Response = types.Response

	// RequestType classifies what kind of work a request asks for.
	RequestType = types.RequestType

	// Priority orders requests waiting for admission.
	Priority = types.Priority

	// ProviderStats is a per-provider statistics snapshot.
	ProviderStats = types.ProviderStats

	// ProviderHealthInfo is the condensed per-provider health view.
	ProviderHealthInfo = types.ProviderHealth

	// Statistics aggregates engine-level counters.
	Statistics = types.Statistics

	// Provider is the adapter interface backends implement.
	Provider = provider.Provider

	// ProviderConfig declares a provider for registry construction.
	ProviderConfig = provider.Config

	// Capability tags a class of work a provider can perform.
	Capability = provider.Capability

	// Cache is the response cache backend interface.
	Cache = cache.Cache

	// Error is the tagged error type returned by engine operations.
	Error = errors.Error
)

// Re-export request type constants.
const (
	RequestTypeGenerate   = types.TypeGenerate
	RequestTypeChat       = types.TypeChat
	RequestTypeTranslate  = types.TypeTranslate
	RequestTypeSummarize  = types.TypeSummarize
	RequestTypeRewrite    = types.TypeRewrite
	RequestTypeContinue   = types.TypeContinue
	RequestTypeImprove    = types.TypeImprove
	RequestTypeProofread  = types.TypeProofread
	RequestTypeBrainstorm = types.TypeBrainstorm
	RequestTypeAnalyze    = types.TypeAnalyze
)

// Re-export priority constants.
const (
	PriorityLow    = types.PriorityLow
	PriorityNormal = types.PriorityNormal
	PriorityHigh   = types.PriorityHigh
	PriorityUrgent = types.PriorityUrgent
)

// NewRequest builds a request with a fresh ID and the given type and prompt.
var NewRequest = types.NewRequest

// Fingerprint derives the cache key for a request.
var Fingerprint = cache.Fingerprint

// IsRetryable reports whether an error is a transient failure.
var IsRetryable = errors.IsRetryable
