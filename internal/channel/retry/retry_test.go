package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rakunlabs/pcgate/internal/gerr"
)

func TestDelayForAttemptNoJitter(t *testing.T) {
	p := Policy{
		MaxRetries:        3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            false,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
	}
	for _, c := range cases {
		if got := p.DelayForAttempt(c.attempt); got != c.want {
			t.Errorf("DelayForAttempt(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestDelayForAttemptCapped(t *testing.T) {
	p := Policy{
		MaxRetries:        10,
		InitialDelay:      1 * time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 10.0,
		Jitter:            false,
	}
	if got := p.DelayForAttempt(5); got != 5*time.Second {
		t.Errorf("DelayForAttempt(5) = %v, want capped at 5s", got)
	}
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	p := Policy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffMultiplier: 2, Jitter: false}

	attempts := 0
	result, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", gerr.ErrConnectionFailed
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want ok", result)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoDoesNotRetryNonRetryableError(t *testing.T) {
	p := DefaultPolicy()
	attempts := 0
	_, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		attempts++
		return "", gerr.ErrPermissionDenied
	})
	if !errors.Is(err, gerr.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry)", attempts)
	}
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	p := Policy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2, Jitter: false}
	attempts := 0
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		attempts++
		return 0, gerr.ErrSendFailed
	})
	if !errors.Is(err, gerr.ErrSendFailed) {
		t.Errorf("expected ErrSendFailed, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", attempts)
	}
}

func TestDoHonorsRateLimitRetryAfter(t *testing.T) {
	p := DefaultPolicy()
	attempts := 0
	start := time.Now()
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, &gerr.RateLimited{RetryAfterMs: 10}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("expected Do to wait at least 10ms, took %v", elapsed)
	}
}

func TestRateLimiterAllowsBurstThenLimits(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxRequests: 10, Window: time.Second, BurstCapacity: 5})

	for i := 0; i < 15; i++ {
		if _, ok := rl.TryAcquire(); !ok {
			t.Fatalf("expected request %d to be allowed within burst", i)
		}
	}
	if _, ok := rl.TryAcquire(); ok {
		t.Errorf("expected the 16th request to be rate limited")
	}
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxRequests: 1, Window: time.Second, BurstCapacity: 0})
	rl.TryAcquire()
	if _, ok := rl.TryAcquire(); ok {
		t.Fatalf("expected limiter to be exhausted")
	}
	rl.Reset()
	if _, ok := rl.TryAcquire(); !ok {
		t.Errorf("expected limiter to allow a request after Reset")
	}
}
