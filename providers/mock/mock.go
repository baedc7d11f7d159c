// Package mock provides a scriptable provider for tests and offline use.
// Responses, failures, latency, and availability are all injectable.
package mock

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/13108387302/aigate/pkg/provider"
	"github.com/13108387302/aigate/pkg/types"
)

// ProviderName is the identifier for this provider.
const ProviderName = "mock"

// Provider is an in-process fake backend.
type Provider struct {
	mu sync.Mutex

	name         string
	capabilities []provider.Capability
	available    bool
	latency      time.Duration
	content      string
	chunkSize    int

	// script queues take precedence over the fixed content/failure.
	results []result
	failure error

	calls int
}

type result struct {
	content string
	err     error
}

// Option customizes the mock provider.
type Option func(*Provider)

// WithName overrides the provider name so tests can register several mocks.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithCapabilities sets the advertised capabilities.
func WithCapabilities(caps ...provider.Capability) Option {
	return func(p *Provider) { p.capabilities = caps }
}

// WithContent sets the fixed response content.
func WithContent(content string) Option {
	return func(p *Provider) { p.content = content }
}

// WithLatency adds artificial latency to every call.
func WithLatency(d time.Duration) Option {
	return func(p *Provider) { p.latency = d }
}

// WithChunkSize controls how many bytes each stream chunk carries.
func WithChunkSize(n int) Option {
	return func(p *Provider) { p.chunkSize = n }
}

// New creates a mock provider that echoes a canned completion.
func New(opts ...Option) *Provider {
	p := &Provider{
		name:      ProviderName,
		available: true,
		chunkSize: 8,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig creates a provider from a Config struct.
func NewFromConfig(cfg provider.Config) (provider.Provider, error) {
	opts := []Option{}
	if cfg.Name != "" {
		opts = append(opts, WithName(cfg.Name))
	}
	if len(cfg.Capabilities) > 0 {
		opts = append(opts, WithCapabilities(cfg.Capabilities...))
	}
	return New(opts...), nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Capabilities returns the advertised capability list.
func (p *Provider) Capabilities() []provider.Capability {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capabilities
}

// IsAvailable reports the scripted availability flag.
func (p *Provider) IsAvailable(_ context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// SetAvailable toggles the availability flag.
func (p *Provider) SetAvailable(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = ok
}

// FailWith makes every subsequent call return err until cleared with nil.
func (p *Provider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failure = err
}

// Script enqueues a response; queued entries are consumed in order before
// the fixed content applies.
func (p *Provider) Script(content string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result{content: content, err: err})
}

// Calls returns how many Generate/GenerateStream calls were made.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Provider) next(req *types.Request) (string, error) {
	p.mu.Lock()
	p.calls++
	latency := p.latency
	var content string
	var err error
	switch {
	case len(p.results) > 0:
		r := p.results[0]
		p.results = p.results[1:]
		content, err = r.content, r.err
	case p.failure != nil:
		err = p.failure
	case p.content != "":
		content = p.content
	default:
		content = fmt.Sprintf("mock response for %s: %s", req.Type, req.Prompt)
	}
	p.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}
	return content, err
}

// Generate returns the next scripted or canned response.
func (p *Provider) Generate(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()
	content, err := p.next(req)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return &types.Response{
		RequestID:      req.ID,
		Content:        content,
		Provider:       p.Name(),
		Model:          "mock-model",
		ProcessingTime: time.Since(start),
		CreatedAt:      time.Now(),
	}, nil
}

// GenerateStream returns the canned response sliced into chunks.
func (p *Provider) GenerateStream(ctx context.Context, req *types.Request) (provider.Stream, error) {
	content, err := p.next(req)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.mu.Lock()
	size := p.chunkSize
	p.mu.Unlock()
	if size <= 0 {
		size = 8
	}

	var chunks []string
	for len(content) > 0 {
		n := size
		if n > len(content) {
			n = len(content)
		}
		chunks = append(chunks, content[:n])
		content = content[n:]
	}
	return &stream{ctx: ctx, chunks: chunks}, nil
}

type stream struct {
	ctx    context.Context
	chunks []string
	pos    int
	closed bool
}

func (s *stream) Recv() (string, error) {
	if s.closed || s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *stream) Close() error {
	s.closed = true
	return nil
}
