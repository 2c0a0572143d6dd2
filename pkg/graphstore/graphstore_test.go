package graphstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func shrinkBackoff(t *testing.T) {
	t.Helper()
	prev := backoffUnit
	backoffUnit = time.Millisecond
	t.Cleanup(func() { backoffUnit = prev })
}

func TestRetryTransient_TransientThenSuccess(t *testing.T) {
	shrinkBackoff(t)
	calls := 0
	rows, err := retryTransient(context.Background(), func(ctx context.Context) ([]Row, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("%w: leader switch", ErrTransient)
		}
		return []Row{{"n": int64(1)}}, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

func TestRetryTransient_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	_, err := retryTransient(context.Background(), func(ctx context.Context) ([]Row, error) {
		calls++
		return nil, fmt.Errorf("%w: bad cypher", ErrSyntax)
	})
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call for a non-transient fault, got %d", calls)
	}
}

func TestRetryTransient_ExhaustsBudget(t *testing.T) {
	shrinkBackoff(t)
	calls := 0
	_, err := retryTransient(context.Background(), func(ctx context.Context) ([]Row, error) {
		calls++
		return nil, fmt.Errorf("%w: connection reset", ErrTransient)
	})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if calls != maxStoreRetry {
		t.Fatalf("expected %d calls, got %d", maxStoreRetry, calls)
	}
}

func TestRetryTransient_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := retryTransient(ctx, func(ctx context.Context) ([]Row, error) {
		calls++
		return []Row{}, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected 0 calls, got %d", calls)
	}
}
