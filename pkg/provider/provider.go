// Package provider defines the public interface for AI provider adapters.
// Each adapter (OpenAI, DeepSeek, etc.) implements this interface to handle
// request execution, streaming, and availability probing against its backend.
package provider

import (
	"context"
	"time"

	"github.com/13108387302/aigate/pkg/types"
)

// Capability tags a class of work a provider can perform.
type Capability string

const (
	CapTextGeneration  Capability = "text_generation"
	CapConversation    Capability = "conversation"
	CapTranslation     Capability = "translation"
	CapSummarization   Capability = "summarization"
	CapCreativeWriting Capability = "creative_writing"
	CapCodeGeneration  Capability = "code_generation"
)

// CapabilityFor maps a request type to the capability required to serve it.
func CapabilityFor(t types.RequestType) Capability {
	switch t {
	case types.TypeChat:
		return CapConversation
	case types.TypeTranslate:
		return CapTranslation
	case types.TypeSummarize:
		return CapSummarization
	case types.TypeRewrite, types.TypeImprove,
		types.TypeProofread, types.TypeBrainstorm:
		return CapCreativeWriting
	case types.TypeAnalyze:
		return CapCodeGeneration
	default:
		return CapTextGeneration
	}
}

// Provider defines the interface that all AI provider adapters must implement.
// It handles the complete lifecycle of a request: execution, streaming, and
// availability probing.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "deepseek").
	Name() string

	// Capabilities returns the classes of work this provider can perform.
	Capabilities() []Capability

	// IsAvailable performs a lightweight reachability check against the
	// backend. Used by the health monitor, not the request path.
	IsAvailable(ctx context.Context) bool

	// Generate runs the request to completion and returns a full response.
	// The returned error follows the taxonomy in pkg/errors.
	Generate(ctx context.Context, req *types.Request) (*types.Response, error)

	// GenerateStream runs the request in streaming mode. The returned
	// Stream yields incremental content chunks until the backend finishes.
	GenerateStream(ctx context.Context, req *types.Request) (Stream, error)
}

// Stream yields incremental content chunks from a streaming response.
// It provides an iterator-like interface over SSE events.
type Stream interface {
	// Recv returns the next content chunk from the stream.
	// Returns io.EOF when the stream is complete.
	Recv() (string, error)

	// Close releases resources associated with the stream.
	Close() error
}

// Supports reports whether the capability list covers the request type.
// An empty list accepts every type.
func Supports(caps []Capability, t types.RequestType) bool {
	if len(caps) == 0 {
		return true
	}
	want := CapabilityFor(t)
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}

// Config contains provider-specific configuration.
type Config struct {
	Name         string
	Type         string
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	Headers      map[string]string
	Capabilities []Capability
	RateLimit    float64 // client-side requests per second, 0 = unlimited
	RateBurst    int
}

// Factory creates provider instances from configuration.
type Factory func(cfg Config) (Provider, error)
