package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond}
}

func TestDoFirstAttemptSucceeds(t *testing.T) {
	t.Parallel()

	attempts, err := Do(context.Background(), fastPolicy(3), func() error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDoRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 || calls != 3 {
		t.Fatalf("expected 3 attempts and 3 calls, got %d and %d", attempts, calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	t.Parallel()

	cause := errors.New("timeout")
	attempts, err := Do(context.Background(), fastPolicy(3), func() error { return cause })
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestDoStructuralNotRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	blocked := Structural(errors.New("page blocked"))
	attempts, err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return blocked
	})
	if calls != 1 || attempts != 1 {
		t.Fatalf("structural error must not be retried: calls=%d attempts=%d", calls, attempts)
	}
	if !IsStructural(err) {
		t.Fatalf("structural marker lost: %v", err)
	}
}

func TestDoContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := Do(ctx, fastPolicy(3), func() error { return errors.New("should not run") })
	if attempts != 0 {
		t.Fatalf("expected 0 attempts on canceled context, got %d", attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsStructuralThroughWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("outer: %w", Structural(errors.New("not found")))
	if !IsStructural(wrapped) {
		t.Fatal("structural marker must survive wrapping")
	}
	if IsStructural(errors.New("plain")) {
		t.Fatal("plain error misclassified as structural")
	}
	if Structural(nil) != nil {
		t.Fatal("Structural(nil) must be nil")
	}
}
