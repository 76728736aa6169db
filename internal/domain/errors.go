package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a malformed webhook body or request.
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized is returned when a signature or bearer token is missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means no staged record exists for the correlation id.
	ErrNotFound = errors.New("no verification data found for this id")
	// ErrExpired means the staged record outlived its TTL. It wraps ErrNotFound so
	// callers that only care about presence can keep using errors.Is(err, ErrNotFound).
	ErrExpired = fmt.Errorf("verification data has expired: %w", ErrNotFound)
)

// NewValidationError wraps ErrValidation with a field-level reason.
func NewValidationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// Upstream error kinds.
const (
	UpstreamKindStatus    = "upstream_status"
	UpstreamKindTransport = "transport"
)

// UpstreamError describes a failed call to the internal backend.
type UpstreamError struct {
	StatusCode int
	Message    string
	Kind       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Kind == UpstreamKindStatus {
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("backend transport error: %v", e.Err)
	}
	return "backend transport error: " + e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
