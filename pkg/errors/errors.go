// Package errors defines the closed error taxonomy for orchestration
// failures. Every error surfaced by the orchestrator or a provider adapter
// is one of these kinds, so callers can branch on Kind instead of parsing
// message strings.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind tags an Error with its failure class.
type Kind string

const (
	// KindInvalidRequest means the request failed validation. Never retried.
	KindInvalidRequest Kind = "invalid_request"

	// KindProviderNotFound means an explicitly named provider is not
	// registered. Never retried.
	KindProviderNotFound Kind = "provider_not_found"

	// KindNoProviderAvailable means no healthy candidate exists right now.
	// Not retried here; callers should back off and try again later.
	KindNoProviderAvailable Kind = "no_provider_available"

	// KindTimeout means the provider call exceeded its deadline. Transient.
	KindTimeout Kind = "timeout"

	// KindRateLimit means the provider rejected the call for quota reasons.
	// Transient.
	KindRateLimit Kind = "rate_limit"

	// KindServiceUnavailable means the provider reported itself down.
	// Transient.
	KindServiceUnavailable Kind = "service_unavailable"

	// KindNetwork means the call failed below HTTP (DNS, connect, reset).
	// Transient.
	KindNetwork Kind = "network_error"

	// KindProcessing wraps any other provider failure. Not retried.
	KindProcessing Kind = "processing_error"
)

// Error is the single concrete error type for the taxonomy above.
type Error struct {
	Kind       Kind
	Provider   string
	Message    string
	Violations []string      // populated for KindInvalidRequest only
	RetryAfter time.Duration // suggested wait for transient kinds, 0 if unknown
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s (provider=%s)", e.Kind, e.Message, e.Provider)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether this kind of failure is transient.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimit, KindServiceUnavailable, KindNetwork:
		return true
	}
	return false
}

// NewInvalidRequest builds a validation failure listing every violation.
func NewInvalidRequest(violations []string) *Error {
	return &Error{
		Kind:       KindInvalidRequest,
		Message:    "request validation failed: " + strings.Join(violations, "; "),
		Violations: violations,
	}
}

// NewProviderNotFound reports a request for an unregistered provider.
func NewProviderNotFound(name string) *Error {
	return &Error{
		Kind:     KindProviderNotFound,
		Provider: name,
		Message:  fmt.Sprintf("provider %q is not registered", name),
	}
}

// NewNoProviderAvailable reports that no healthy candidate exists.
func NewNoProviderAvailable() *Error {
	return &Error{
		Kind:       KindNoProviderAvailable,
		Message:    "no healthy provider available",
		RetryAfter: 30 * time.Second,
	}
}

// NewTimeout reports a provider call that exceeded its deadline.
func NewTimeout(provider, message string) *Error {
	return &Error{
		Kind:       KindTimeout,
		Provider:   provider,
		Message:    message,
		RetryAfter: time.Second,
	}
}

// NewRateLimit reports a provider-side rate limit rejection.
func NewRateLimit(provider, message string, retryAfter time.Duration) *Error {
	if retryAfter <= 0 {
		retryAfter = 5 * time.Second
	}
	return &Error{
		Kind:       KindRateLimit,
		Provider:   provider,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// NewServiceUnavailable reports a provider that declared itself down.
func NewServiceUnavailable(provider, message string) *Error {
	return &Error{
		Kind:       KindServiceUnavailable,
		Provider:   provider,
		Message:    message,
		RetryAfter: 10 * time.Second,
	}
}

// NewNetwork reports a transport-level failure.
func NewNetwork(provider, message string, cause error) *Error {
	return &Error{
		Kind:       KindNetwork,
		Provider:   provider,
		Message:    message,
		RetryAfter: time.Second,
		Cause:      cause,
	}
}

// NewProcessing wraps an unexpected provider failure.
func NewProcessing(provider, message string, cause error) *Error {
	return &Error{
		Kind:     KindProcessing,
		Provider: provider,
		Message:  message,
		Cause:    cause,
	}
}

// NewFailoverFailed builds the terminal error raised after the primary
// provider exhausted its retries and the single alternate attempt also
// failed. Both failure messages are embedded so callers can diagnose each
// backend.
func NewFailoverFailed(primary, alternate string, primaryErr, alternateErr error) *Error {
	return &Error{
		Kind:     KindProcessing,
		Provider: primary,
		Message: fmt.Sprintf("primary provider %s failed: %v; failover provider %s failed: %v",
			primary, primaryErr, alternate, alternateErr),
		Cause: primaryErr,
	}
}

// KindOf extracts the Kind from err, or KindProcessing for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProcessing
}

// IsRetryable reports whether err is one of the transient kinds. Foreign
// errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
