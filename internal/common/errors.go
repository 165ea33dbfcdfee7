// Package common defines shared constants and sentinel errors used across
// the broker's layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Configuration errors: missing or ambiguous per-client settings,
	// unsupported algorithm. Operator-fixable, non-retriable within
	// the current attempt.
	ErrConfiguration = errors.New("configuration error")

	// Upstream errors: network failure, timeout, non-2xx response.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// Validation errors for caller-supplied input.
	ErrInvalidInput = errors.New("invalid input")

	// Auth errors.
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidToken = errors.New("invalid token")

	// A chunk sequence with a gap is server-side data corruption,
	// never a short value.
	ErrIncompleteData = errors.New("incomplete data")

	// Generic internal flow control.
	ErrInternal = errors.New("internal error")
)
