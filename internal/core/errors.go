package core

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a fetch failure for retry and fallback policy.
type ErrorKind string

const (
	// KindNotFound means the requested entity does not exist upstream.
	// Never retried; surfaced to the user naming the entity.
	KindNotFound ErrorKind = "not_found"
	// KindTransient means a 5xx or timeout. Retried internally, then
	// surfaced as a user-facing failure if exhausted.
	KindTransient ErrorKind = "transient"
	// KindQuotaExceeded means the daily ceiling for a provider is spent.
	// Routed to a fallback, not surfaced unless the fallback also fails.
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	// KindParse means the remote payload was malformed. Logged, and
	// treated like KindTransient for caller purposes.
	KindParse ErrorKind = "parse_error"
)

// FetchError is the base error type for all upstream fetch failures.
type FetchError struct {
	Kind       ErrorKind
	Provider   string
	Message    string
	StatusCode int
	// Err is the original error for debugging, never shown to users.
	Err error
}

func (e *FetchError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the fetcher may try the request again.
func (e *FetchError) Retryable() bool {
	return e.Kind == KindTransient
}

// NewNotFoundError creates a not-found error for an unresolved entity.
func NewNotFoundError(provider, message string) *FetchError {
	return &FetchError{Kind: KindNotFound, Provider: provider, Message: message, StatusCode: http.StatusNotFound}
}

// NewTransientError creates a retryable upstream error.
func NewTransientError(provider string, statusCode int, message string, err error) *FetchError {
	return &FetchError{Kind: KindTransient, Provider: provider, Message: message, StatusCode: statusCode, Err: err}
}

// NewQuotaExceededError creates an error for a spent daily ceiling.
func NewQuotaExceededError(provider string) *FetchError {
	return &FetchError{
		Kind:       KindQuotaExceeded,
		Provider:   provider,
		Message:    "daily request ceiling reached",
		StatusCode: http.StatusTooManyRequests,
	}
}

// NewParseError creates an error for a malformed remote payload.
func NewParseError(provider, message string, err error) *FetchError {
	return &FetchError{Kind: KindParse, Provider: provider, Message: message, Err: err}
}

// ParseUpstreamError maps an HTTP status from a provider to a FetchError.
func ParseUpstreamError(provider string, statusCode int, body []byte) *FetchError {
	message := string(body)
	if len(message) > 200 {
		message = message[:200]
	}
	switch {
	case statusCode == http.StatusNotFound:
		return NewNotFoundError(provider, message)
	case statusCode == http.StatusTooManyRequests:
		return &FetchError{Kind: KindQuotaExceeded, Provider: provider, Message: message, StatusCode: statusCode}
	case statusCode >= 500:
		return NewTransientError(provider, statusCode, message, nil)
	default:
		// Client errors are terminal; treat as not found so the caller
		// gets a naming apology rather than a retry loop.
		return &FetchError{Kind: KindNotFound, Provider: provider, Message: message, StatusCode: statusCode}
	}
}
