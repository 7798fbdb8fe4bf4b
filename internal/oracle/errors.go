package oracle

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited marks an attempt the server throttled. It is recovered
	// inside Query and only surfaces wrapped in a QueryError.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient marks a network failure, timeout or unexpected status.
	// Like ErrRateLimited it is retried inside Query.
	ErrTransient = errors.New("transient request failure")
	// ErrRequestExhausted is returned when every attempt for a prefix failed.
	// The prefix yields no data; the run carries on.
	ErrRequestExhausted = errors.New("request attempts exhausted")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Status int
	Kind   error // ErrRateLimited or ErrTransient
}

func (e *StatusError) Error() string {
	if e.Kind == ErrRateLimited {
		return fmt.Sprintf("rate limited (status %d)", e.Status)
	}
	return fmt.Sprintf("unexpected status %d", e.Status)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// QueryError reports a prefix whose attempts were all used up.
type QueryError struct {
	Prefix   string
	Attempts int
	Err      error // last attempt's error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("failed to get response for %q after %d attempts: %v", e.Prefix, e.Attempts, e.Err)
}

// Unwrap exposes both ErrRequestExhausted and the last attempt's cause.
func (e *QueryError) Unwrap() []error {
	return []error{ErrRequestExhausted, e.Err}
}
