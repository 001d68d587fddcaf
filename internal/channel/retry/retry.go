// Package retry implements exponential backoff with jitter for channel
// adapter operations, plus a token-bucket rate limiter for platform API
// limits. Both are grounded on the original gateway's channel retry/rate
// limit helpers, re-expressed as plain context-aware Go functions instead
// of async futures.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/rakunlabs/pcgate/internal/gerr"
)

// Policy configures backoff behavior for a retried operation.
type Policy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultPolicy matches the original gateway's default: 3 retries,
// starting at 100ms, doubling up to 30s, with jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:        3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// NoRetry returns a policy that never retries.
func NoRetry() Policy {
	p := DefaultPolicy()
	p.MaxRetries = 0
	return p
}

// Aggressive returns a policy for critical operations: more retries,
// shorter initial delay.
func Aggressive() Policy {
	return Policy{
		MaxRetries:        5,
		InitialDelay:      50 * time.Millisecond,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Conservative returns a policy for rate-limited APIs: fewer attempts,
// longer delays, steeper backoff.
func Conservative() Policy {
	return Policy{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          120 * time.Second,
		BackoffMultiplier: 3.0,
		Jitter:            true,
	}
}

// PolicyFromStrings parses a policy's durations from config strings using
// str2duration, keeping retry/timeout knobs as human-readable duration
// strings in config rather than raw milliseconds.
func PolicyFromStrings(maxRetries int, initialDelay, maxDelay string, backoffMultiplier float64, jitter bool) (Policy, error) {
	init, err := str2duration.ParseDuration(initialDelay)
	if err != nil {
		return Policy{}, &gerr.InvalidValue{Key: "initial_delay", Reason: err.Error()}
	}
	max, err := str2duration.ParseDuration(maxDelay)
	if err != nil {
		return Policy{}, &gerr.InvalidValue{Key: "max_delay", Reason: err.Error()}
	}
	return Policy{
		MaxRetries:        maxRetries,
		InitialDelay:      init,
		MaxDelay:          max,
		BackoffMultiplier: backoffMultiplier,
		Jitter:            jitter,
	}, nil
}

// DelayForAttempt computes the backoff delay before the given attempt
// (0-indexed), applying the multiplier, the max-delay cap, and jitter.
func (p Policy) DelayForAttempt(attempt int) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	capped := math.Min(base, float64(p.MaxDelay))

	if p.Jitter {
		factor := 0.5 + rand.Float64()
		capped *= factor
	}
	return time.Duration(capped)
}

// retryable mirrors the original's should_retry: connection, send, receive,
// and rate-limit failures are retried; permission, validation, and closed-
// channel failures are not.
func retryable(err error) bool {
	switch {
	case errors.Is(err, gerr.ErrConnectionFailed),
		errors.Is(err, gerr.ErrSendFailed),
		errors.Is(err, gerr.ErrReceiveFailed):
		return true
	}
	var rateLimited *gerr.RateLimited
	return errors.As(err, &rateLimited)
}

// Do executes op, retrying according to policy when op returns a retryable
// error. A *gerr.RateLimited error short-circuits into a wait of exactly
// RetryAfterMs before the next attempt, bypassing the backoff curve, the
// same special case the original's with_retry gives rate limits.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
		if attempt >= policy.MaxRetries {
			return zero, lastErr
		}

		var delay time.Duration
		var rateLimited *gerr.RateLimited
		if errors.As(err, &rateLimited) {
			delay = time.Duration(rateLimited.RetryAfterMs) * time.Millisecond
		} else {
			delay = policy.DelayForAttempt(attempt)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
}
