// Package types defines the request/response value types shared by the
// orchestrator, providers, and caches.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestType identifies what kind of generation the caller wants.
type RequestType string

const (
	TypeGenerate   RequestType = "generate"
	TypeChat       RequestType = "chat"
	TypeTranslate  RequestType = "translate"
	TypeSummarize  RequestType = "summarize"
	TypeRewrite    RequestType = "rewrite"
	TypeContinue   RequestType = "continue"
	TypeImprove    RequestType = "improve"
	TypeProofread  RequestType = "proofread"
	TypeBrainstorm RequestType = "brainstorm"
	TypeAnalyze    RequestType = "analyze"
)

// Priority orders requests for reporting. The gate itself admits in no
// particular order; the field is retained for queue-depth reporting and
// future scheduling extensions.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// Request describes a single generation request. Callers build one, hand it
// to the orchestrator, and must not mutate it afterwards.
type Request struct {
	ID          string            `json:"id"`
	Type        RequestType       `json:"type"`
	Prompt      string            `json:"prompt"`
	Context     string            `json:"context,omitempty"`
	Parameters  map[string]any    `json:"parameters,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Priority    Priority          `json:"priority"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewRequest creates a request with a fresh ID and sensible defaults.
func NewRequest(reqType RequestType, prompt string) *Request {
	return &Request{
		ID:        uuid.NewString(),
		Type:      reqType,
		Prompt:    prompt,
		Priority:  PriorityNormal,
		CreatedAt: time.Now(),
	}
}

// Model returns the model name from Parameters, or "" if unset.
func (r *Request) Model() string {
	if r.Parameters == nil {
		return ""
	}
	if m, ok := r.Parameters["model"].(string); ok {
		return m
	}
	return ""
}

// Validate returns one message per violated constraint. An empty slice
// means the request can be dispatched.
func (r *Request) Validate() []string {
	var violations []string

	if strings.TrimSpace(r.Prompt) == "" {
		violations = append(violations, "prompt must not be empty")
	}
	if r.MaxTokens < 0 {
		violations = append(violations, fmt.Sprintf("max_tokens must be greater than 0, got %d", r.MaxTokens))
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		violations = append(violations, fmt.Sprintf("temperature must be within [0, 2], got %g", *r.Temperature))
	}
	if r.Timeout < 0 {
		violations = append(violations, "timeout must be greater than 0")
	}

	return violations
}

// IsValid reports whether Validate returns no violations.
func (r *Request) IsValid() bool {
	return len(r.Validate()) == 0
}
