package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrRateLimited indicates the provider rejected the call with HTTP 429.
var ErrRateLimited = errors.New("provider rate limit exceeded")

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("provider %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// IsTransient reports whether the error is worth retrying: rate limits,
// provider 5xx responses, and transport-level failures. 4xx responses other
// than 429 indicate a caller bug or revoked credential and are permanent.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	// Transport-level errors (timeouts, connection resets) have no status
	// code and are assumed transient.
	return true
}
