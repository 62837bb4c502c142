// Package ratelimit implements the shared minimum-interval gate in front of
// every upstream request. EDGAR throttles by aggregate request rate, so one
// Limiter instance is constructed per run and handed to every worker.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/edgar-mirror/internal/metrics"
)

// Limiter enforces a minimum interval between permitted calls across all
// goroutines sharing the instance. A nil Limiter or a non-positive interval
// disables pacing entirely.
type Limiter struct {
	lim *rate.Limiter
}

// New returns a Limiter that spaces calls at least minInterval apart.
// A zero or negative interval returns a disabled limiter.
func New(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		return &Limiter{}
	}
	// Burst 1 makes the token bucket behave as a strict spacing gate: each
	// permit is issued no sooner than minInterval after the previous one.
	return &Limiter{lim: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the caller is permitted to proceed, or the context ends.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return nil
	}
	start := time.Now()
	if err := l.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(d)
	}
	return nil
}
