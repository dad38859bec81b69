package embedder

import (
	"context"
	"errors"
	"fmt"
)

// RequestError is an embedding request failure. Retryable marks transient
// failures (rate limiting, timeouts, 5xx) that the batching layer retries
// with backoff; terminal failures (auth, malformed input) surface
// immediately.
type RequestError struct {
	// StatusCode is the HTTP status of the failed request, zero for
	// transport-level failures.
	StatusCode int

	// Retryable reports whether retrying the same request may succeed.
	Retryable bool

	Err error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("embedding request failed (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embedding request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// statusError builds a RequestError from an HTTP status, classifying 429 and
// 5xx as retryable.
func statusError(code int, err error) *RequestError {
	return &RequestError{
		StatusCode: code,
		Retryable:  code == 429 || (code >= 500 && code < 600),
		Err:        err,
	}
}

// transportError wraps a transport-level failure. Timeouts and network
// conditions are retryable; caller cancellation is not.
func transportError(err error) *RequestError {
	return &RequestError{Retryable: !errors.Is(err, context.Canceled), Err: err}
}

// IsRetryable reports whether err is a transient embedding failure.
// Errors that are not RequestError values count as terminal.
func IsRetryable(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Retryable
}
