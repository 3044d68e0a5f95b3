package common

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token-bucket limiter whose rate can be retuned at runtime
// and which can be paused outright when a server asks callers to back off.
type RateLimiter struct {
	mu          sync.RWMutex
	limiter     *rate.Limiter
	pausedUntil time.Time
}

// NewRateLimiter creates a RateLimiter allowing rps events per second with
// the given burst. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until an event is allowed, any pause has elapsed, or ctx is
// done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.RLock()
	until := rl.pausedUntil
	lim := rl.limiter
	rl.mu.RUnlock()

	if d := time.Until(until); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return lim.Wait(ctx)
}

// UpdateLimits changes the steady-state rate and burst.
func (rl *RateLimiter) UpdateLimits(rps float64, burst int) {
	if rps <= 0 || burst < 1 {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiter.SetLimit(rate.Limit(rps))
	rl.limiter.SetBurst(burst)
}

// PauseFor blocks all waiters for d. Overlapping pauses keep the later
// deadline.
func (rl *RateLimiter) PauseFor(d time.Duration) {
	if d <= 0 {
		return
	}
	until := time.Now().Add(d)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if until.After(rl.pausedUntil) {
		rl.pausedUntil = until
	}
}

// Limit returns the current events-per-second limit.
func (rl *RateLimiter) Limit() float64 {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return float64(rl.limiter.Limit())
}
