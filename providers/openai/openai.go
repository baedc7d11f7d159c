// Package openai provides the OpenAI provider adapter.
// API Reference: https://platform.openai.com/docs/api-reference
package openai

import (
	"github.com/13108387302/aigate/pkg/provider"
	"github.com/13108387302/aigate/providers/openaicompat"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "openai"

	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com"

	// DefaultModel is used when a request does not name a model.
	DefaultModel = "gpt-4o-mini"
)

var providerInfo = openaicompat.Info{
	Name:           ProviderName,
	DefaultBaseURL: DefaultBaseURL,
	DefaultModel:   DefaultModel,
}

// Provider wraps the OpenAI-compatible adapter for OpenAI.
type Provider struct {
	*openaicompat.Provider
}

// New creates a new OpenAI provider with the given options.
func New(opts ...openaicompat.Option) *Provider {
	return &Provider{
		Provider: openaicompat.New(providerInfo, opts...),
	}
}

// NewFromConfig creates a provider from a Config struct.
func NewFromConfig(cfg provider.Config) (provider.Provider, error) {
	return openaicompat.NewFromConfig(providerInfo, cfg)
}
