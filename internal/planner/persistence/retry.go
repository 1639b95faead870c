package persistence

import (
	"context"
	stderrors "errors"
	"time"

	"space-planner/internal/common/errors"
)

// IsRetryable reports whether a failed save may succeed if repeated.
// Rejected payloads and cancelled contexts are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch errors.GetCode(err) {
	case errors.CodeValidation, errors.CodeNotFound, errors.CodeConflict:
		return false
	}
	return true
}

// Retry runs fn up to attempts times, doubling delay after each retryable
// failure. It returns the last error.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		} else if !IsRetryable(lastErr) {
			return lastErr
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// RetryWithBackoff retries fn 3 times starting at one second.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, 3, time.Second, fn)
}
