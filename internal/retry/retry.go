// Package retry centralizes the backoff policy every source uses for
// transient transport failures. Structural rejections (blocked pages,
// unresolved challenges, empty selector chains) are wrapped with Structural
// and returned immediately: retrying those wastes time and raises detection
// risk.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy bounds the attempts for one operation.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy matches the production aggregation defaults.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

type structuralError struct {
	err error
}

func (e *structuralError) Error() string { return e.err.Error() }
func (e *structuralError) Unwrap() error { return e.err }

// Structural marks err as a structural rejection that must not be retried.
func Structural(err error) error {
	if err == nil {
		return nil
	}
	return &structuralError{err: err}
}

// IsStructural reports whether err (or anything it wraps) is a structural
// rejection.
func IsStructural(err error) bool {
	var s *structuralError
	return errors.As(err, &s)
}

// Do runs op with exponential backoff and jitter until it succeeds, returns
// a structural error, exhausts the attempt budget, or the context ends. The
// returned attempt count includes the final one.
func Do(ctx context.Context, policy Policy, op func() error) (int, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultPolicy().BaseDelay
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		lastErr = op()
		if lastErr == nil {
			return attempt + 1, nil
		}
		if IsStructural(lastErr) || errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return attempt + 1, lastErr
		}

		if attempt < policy.MaxAttempts-1 {
			wait := backoff(policy.BaseDelay, attempt)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return attempt + 1, ctx.Err()
			}
		}
	}

	return policy.MaxAttempts, fmt.Errorf("after %d attempts: %w", policy.MaxAttempts, lastErr)
}

// backoff doubles the base delay per attempt and adds up to one base delay
// of jitter so parallel callers never synchronize.
func backoff(base time.Duration, attempt int) time.Duration {
	wait := base << uint(attempt)
	return wait + time.Duration(rand.Int63n(int64(base)))
}
