package remote

import (
	"fmt"
	"net/http"
)

// NetworkError means no response was received: DNS, refused connection,
// timeout, reset.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable is always true: a missing response is assumed transient.
func (e *NetworkError) Retryable() bool { return true }

// StatusError represents a non-2xx response from the backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api %s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

// Retryable reports whether the status is a server error (5xx).
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsValidation reports a rejected payload (400/422).
func (e *StatusError) IsValidation() bool {
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
}

// IsAuth reports a missing or rejected credential (401/403).
func (e *StatusError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound reports a 404.
func (e *StatusError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
