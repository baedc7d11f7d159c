// Package deepseek provides the DeepSeek provider adapter.
// API Reference: https://platform.deepseek.com/api-docs
package deepseek

import (
	"github.com/13108387302/aigate/pkg/provider"
	"github.com/13108387302/aigate/providers/openaicompat"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "deepseek"

	// DefaultBaseURL is the default DeepSeek API endpoint.
	DefaultBaseURL = "https://api.deepseek.com"

	// DefaultModel is used when a request does not name a model.
	DefaultModel = "deepseek-chat"
)

var providerInfo = openaicompat.Info{
	Name:           ProviderName,
	DefaultBaseURL: DefaultBaseURL,
	ChatEndpoint:   "/chat/completions",
	ModelsEndpoint: "/models",
	DefaultModel:   DefaultModel,
}

// Provider wraps the OpenAI-compatible adapter for DeepSeek.
type Provider struct {
	*openaicompat.Provider
}

// New creates a new DeepSeek provider with the given options.
func New(opts ...openaicompat.Option) *Provider {
	return &Provider{
		Provider: openaicompat.New(providerInfo, opts...),
	}
}

// NewFromConfig creates a provider from a Config struct.
func NewFromConfig(cfg provider.Config) (provider.Provider, error) {
	return openaicompat.NewFromConfig(providerInfo, cfg)
}
