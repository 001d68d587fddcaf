package retry

import (
	"sync"
	"time"
)

// RateLimitConfig configures a token-bucket RateLimiter.
type RateLimitConfig struct {
	MaxRequests   int
	Window        time.Duration
	BurstCapacity int
}

// DefaultRateLimitConfig matches the original's generic default: 30
// requests/second with a burst of 5.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 30, Window: time.Second, BurstCapacity: 5}
}

// TelegramRateLimit matches Telegram's ~30 messages/second ceiling.
func TelegramRateLimit() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 30, Window: time.Second, BurstCapacity: 5}
}

// DiscordRateLimit is a safe default for Discord's more complex per-route
// limits.
func DiscordRateLimit() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 50, Window: time.Second, BurstCapacity: 10}
}

// RateLimiter is a token-bucket limiter shared by a channel adapter across
// concurrent sends.
type RateLimiter struct {
	config RateLimitConfig

	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter builds a RateLimiter starting at full capacity.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:     config,
		tokens:     float64(config.MaxRequests + config.BurstCapacity),
		lastUpdate: time.Now(),
	}
}

func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastUpdate)
	refillRate := float64(r.config.MaxRequests) / r.config.Window.Seconds()
	maxTokens := float64(r.config.MaxRequests + r.config.BurstCapacity)

	r.tokens = min(r.tokens+elapsed.Seconds()*refillRate, maxTokens)
	r.lastUpdate = now
}

// TryAcquire attempts to consume one token. On success it returns zero and
// true. On failure it returns false and the wait duration until a token
// would become available.
func (r *RateLimiter) TryAcquire() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill(time.Now())

	if r.tokens >= 1.0 {
		r.tokens--
		return 0, true
	}

	refillRate := float64(r.config.MaxRequests) / r.config.Window.Seconds()
	wait := time.Duration((1.0 - r.tokens) / refillRate * float64(time.Second))
	return wait, false
}

// Acquire blocks until a token is available.
func (r *RateLimiter) Acquire() {
	for {
		wait, ok := r.TryAcquire()
		if ok {
			return
		}
		time.Sleep(wait)
	}
}

// AvailableTokens reports the current integer token count.
func (r *RateLimiter) AvailableTokens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill(time.Now())
	return int(r.tokens)
}

// Reset restores the limiter to full capacity.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = float64(r.config.MaxRequests + r.config.BurstCapacity)
	r.lastUpdate = time.Now()
}
