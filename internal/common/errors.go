// Package common defines shared sentinel errors used across the gateway
// layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Client-side errors (4xx, always recoverable by the caller).
	ErrorValidation = errors.New("validation error")

	// Upstream (storage) errors, assigned at the provider boundary.
	// Provider-specific error shapes never cross into service code.
	ErrorNotFound     = errors.New("not found")
	ErrorUnauthorized = errors.New("upstream unauthorized")
	ErrorForbidden    = errors.New("upstream forbidden")
	ErrorTransient    = errors.New("upstream transient error")

	// Startup-time errors (missing endpoint/bucket/credentials).
	ErrorConfiguration = errors.New("invalid configuration")
)

// QuotaError reports a declared size exceeding the caller's plan limit.
// It carries the violated limit so the HTTP layer can include it in the
// response body. QuotaError matches ErrorValidation under errors.Is.
type QuotaError struct {
	Limit int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("declared size exceeds plan limit of %d bytes", e.Limit)
}

func (e *QuotaError) Unwrap() error {
	return ErrorValidation
}
