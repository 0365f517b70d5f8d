package platform

import (
	"errors"
	"fmt"
)

// Common resolution errors that can be checked with errors.Is.
var (
	// ErrRateLimited is returned when an upstream service asks us to slow down.
	ErrRateLimited = errors.New("platform: rate limit exceeded")

	// ErrUpstream is returned when an upstream service answers with a failure status.
	ErrUpstream = errors.New("platform: upstream error")

	// ErrNoMatch is returned when the lookup service knows nothing about a link.
	ErrNoMatch = errors.New("platform: no match")

	// ErrNoFallback is returned when the fallback path could not produce a substitute.
	ErrNoFallback = errors.New("platform: no fallback available")

	// ErrTransport marks network-level failures (connection refused, timeouts, open breaker).
	ErrTransport = errors.New("platform: transport failure")
)

// ServiceError wraps an error with the service that produced it and the HTTP
// status, when there was one.
type ServiceError struct {
	// Service is the upstream name (e.g. "songlink", "youtube").
	Service string

	// Status is the HTTP status code, or 0 for transport failures.
	Status int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Service, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps a network-level failure.
func NewTransportError(service string, err error) error {
	return &ServiceError{
		Service: service,
		Err:     fmt.Errorf("%w: %v", ErrTransport, err),
	}
}

// NewNoFallbackError reports why the fallback path produced nothing.
func NewNoFallbackError(service, reason string) error {
	return &ServiceError{
		Service: service,
		Err:     fmt.Errorf("%w: %s", ErrNoFallback, reason),
	}
}

// NewStatusError wraps an unexpected HTTP status.
func NewStatusError(service string, status int) error {
	err := ErrUpstream
	if status == 429 {
		err = ErrRateLimited
	}
	return &ServiceError{
		Service: service,
		Status:  status,
		Err:     err,
	}
}
