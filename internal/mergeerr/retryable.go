// Package mergeerr defines the error types shared between the hosted API
// client, the git backend and the CLI.
package mergeerr

import (
	"errors"
	"fmt"
	"time"
)

// RetryableError marks a failed hosted API operation that can succeed when
// it is repeated, e.g. after a rate limit was reset.
type RetryableError struct {
	Err error
	// After is the earliest point in time the operation can be repeated.
	// A zero value allows an immediate retry.
	After time.Time
}

func NewRetryableError(originalErr error, retryAfter time.Time) *RetryableError {
	return &RetryableError{
		Err:   originalErr,
		After: retryAfter,
	}
}

func NewRetryableAnytimeError(originalErr error) *RetryableError {
	return &RetryableError{Err: originalErr}
}

// AsRetryable returns the first RetryableError in the chain of err.
func AsRetryable(err error) (*RetryableError, bool) {
	var retryErr *RetryableError
	if errors.As(err, &retryErr) {
		return retryErr, true
	}

	return nil, false
}

// WaitTime returns how long to wait from now until the operation can be
// repeated.
func (e *RetryableError) WaitTime(now time.Time) time.Duration {
	if e.After.IsZero() || !e.After.After(now) {
		return 0
	}

	return e.After.Sub(now)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func (e *RetryableError) Error() string {
	if e.After.IsZero() {
		return fmt.Sprintf("retryable error: %s", e.Err)
	}

	return fmt.Sprintf("retryable error, retry after %s: %s", e.After.Format(time.RFC3339), e.Err)
}
