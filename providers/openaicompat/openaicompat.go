// Package openaicompat provides a base adapter for OpenAI-compatible
// backends. Most hosted AI providers follow OpenAI's chat completion wire
// format with minor variations, so brand packages only supply an Info.
package openaicompat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	aierrors "github.com/13108387302/aigate/pkg/errors"
	"github.com/13108387302/aigate/pkg/provider"
	"github.com/13108387302/aigate/pkg/types"
)

// Info contains the per-brand wire details.
type Info struct {
	// Name is the provider identifier (e.g., "openai", "deepseek").
	Name string

	// DefaultBaseURL is the default API endpoint.
	DefaultBaseURL string

	// ChatEndpoint is the path for chat completions.
	// Default: "/v1/chat/completions".
	ChatEndpoint string

	// ModelsEndpoint is the path probed by IsAvailable.
	// Default: "/v1/models".
	ModelsEndpoint string

	// DefaultModel is used when the request does not name a model.
	DefaultModel string

	// Capabilities lists what the brand can serve. Empty means everything.
	Capabilities []provider.Capability

	// ExtraHeaders are additional headers to include in requests.
	ExtraHeaders map[string]string
}

// Provider implements a generic OpenAI-compatible adapter.
type Provider struct {
	info         Info
	apiKey       string
	baseURL      string
	defaultModel string
	headers      map[string]string
	client       *http.Client
	limiter      *rate.Limiter
}

// New creates an OpenAI-compatible provider instance.
func New(info Info, opts ...Option) *Provider {
	p := &Provider{
		info:         info,
		baseURL:      info.DefaultBaseURL,
		defaultModel: info.DefaultModel,
		headers:      make(map[string]string),
		client:       &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig creates a provider from a Config struct. A non-empty
// cfg.Name overrides the brand identifier so several instances of one
// brand can coexist.
func NewFromConfig(info Info, cfg provider.Config) (provider.Provider, error) {
	if cfg.Name != "" {
		info.Name = cfg.Name
	}
	opts := []Option{WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.DefaultModel != "" {
		opts = append(opts, WithDefaultModel(cfg.DefaultModel))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, WithRateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	if len(cfg.Capabilities) > 0 {
		opts = append(opts, WithCapabilities(cfg.Capabilities...))
	}
	p := New(info, opts...)
	for k, v := range cfg.Headers {
		p.headers[k] = v
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.info.Name
}

// Capabilities returns the brand's supported work classes.
func (p *Provider) Capabilities() []provider.Capability {
	return p.info.Capabilities
}

// IsAvailable probes the models endpoint. Any HTTP response counts as
// available; only transport failures mark the backend unreachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	endpoint := p.info.ModelsEndpoint
	if endpoint == "" {
		endpoint = "/v1/models"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(endpoint), nil)
	if err != nil {
		return false
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// wire types for the chat completion endpoint.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage map[string]any `json:"usage"`
}

// Generate executes the request against the chat completion endpoint.
func (p *Provider) Generate(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()

	httpResp, err := p.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, aierrors.NewNetwork(p.info.Name, "read response body", err)
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, p.mapHTTPError(httpResp.StatusCode, httpResp.Header, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, aierrors.NewProcessing(p.info.Name, "unmarshal response", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, aierrors.NewProcessing(p.info.Name, "response contained no choices", nil)
	}

	model := parsed.Model
	if model == "" {
		model = p.model(req)
	}
	return &types.Response{
		RequestID:      req.ID,
		Content:        parsed.Choices[0].Message.Content,
		Provider:       p.info.Name,
		Model:          model,
		Usage:          parsed.Usage,
		ProcessingTime: time.Since(start),
		CreatedAt:      time.Now(),
	}, nil
}

// GenerateStream executes the request in SSE streaming mode.
func (p *Provider) GenerateStream(ctx context.Context, req *types.Request) (provider.Stream, error) {
	httpResp, err := p.send(ctx, req, true)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()
		return nil, p.mapHTTPError(httpResp.StatusCode, httpResp.Header, body)
	}

	return newSSEStream(p.info.Name, httpResp.Body), nil
}

func (p *Provider) send(ctx context.Context, req *types.Request, stream bool) (*http.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, p.mapTransportError(ctx, err)
		}
	}

	messages := make([]chatMessage, 0, 2)
	if req.Context != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.Context})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       p.model(req),
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, aierrors.NewProcessing(p.info.Name, "marshal request", err)
	}

	endpoint := p.info.ChatEndpoint
	if endpoint == "" {
		endpoint = "/v1/chat/completions"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, aierrors.NewProcessing(p.info.Name, "create request", err)
	}
	p.setHeaders(httpReq)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, p.mapTransportError(ctx, err)
	}
	return resp, nil
}

func (p *Provider) model(req *types.Request) string {
	if m := req.Model(); m != "" {
		return m
	}
	return p.defaultModel
}

func (p *Provider) url(endpoint string) string {
	return strings.TrimSuffix(p.baseURL, "/") + endpoint
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.info.ExtraHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
}

func (p *Provider) mapTransportError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return aierrors.NewTimeout(p.info.Name, "request deadline exceeded")
	default:
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return aierrors.NewTimeout(p.info.Name, err.Error())
		}
		return aierrors.NewNetwork(p.info.Name, "request failed", err)
	}
}

func (p *Provider) mapHTTPError(statusCode int, header http.Header, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := fmt.Sprintf("upstream returned status %d", statusCode)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch statusCode {
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return aierrors.NewTimeout(p.info.Name, message)
	case http.StatusTooManyRequests:
		return aierrors.NewRateLimit(p.info.Name, message, retryAfter(header))
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return aierrors.NewServiceUnavailable(p.info.Name, message)
	default:
		return aierrors.NewProcessing(p.info.Name, message, nil)
	}
}

func retryAfter(header http.Header) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
