package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimitExceeded is returned by CheckLimit when the key has no tokens left.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key (user id, client ip, ...).
type RateLimiter struct {
	buckets map[string]*bucket
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing perMinute events per key with the
// given burst.
func NewRateLimiter(perMinute int, burst int) *RateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		idleTTL: refillTime(limit, burst),
		now:     time.Now,
	}
}

// refillTime is how long an untouched bucket takes to fill up again. A key
// idle for longer is indistinguishable from a new one.
func refillTime(limit rate.Limit, burst int) time.Duration {
	idle := time.Minute
	if limit == rate.Inf || limit <= 0 {
		return idle
	}
	if full := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); full > idle {
		idle = full
	}
	return idle
}

// GetLimiter returns the limiter for the given key, creating it on first use.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = rl.now()
	return b.limiter
}

// Allow checks if the request is allowed.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.GetLimiter(key).Allow()
}

// CheckLimit returns ErrRateLimitExceeded when the key is over its limit.
func (rl *RateLimiter) CheckLimit(key string) error {
	if !rl.Allow(key) {
		return ErrRateLimitExceeded
	}
	return nil
}

// Cleanup drops buckets that have been idle long enough to be full again.
// Active keys keep their state however many keys are tracked.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupWorker runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}
