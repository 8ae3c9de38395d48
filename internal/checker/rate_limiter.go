package checker

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces probes to a per-minute budget. A nil limiter, or one
// built with a non-positive budget, never waits.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows maxPerMinute probes per minute, evenly spaced, with a
// burst of one.
func NewRateLimiter(maxPerMinute int) *RateLimiter {
	if maxPerMinute <= 0 {
		return &RateLimiter{}
	}
	interval := time.Minute / time.Duration(maxPerMinute)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next probe may start or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.limiter == nil {
		return nil
	}
	return rl.limiter.Wait(ctx)
}

// Interval returns the minimum spacing between probes, or zero when unlimited.
func (rl *RateLimiter) Interval() time.Duration {
	if rl == nil || rl.limiter == nil {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(rl.limiter.Limit()))
}
