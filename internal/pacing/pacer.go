// Package pacing spaces consecutive remote calls so bulk commands stay under
// API rate limits.
package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer allows one call per interval. The first call never waits.
type Pacer struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// New returns a Pacer for interval. A non-positive interval disables pacing.
func New(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1), interval: interval}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// Interval reports the configured spacing.
func (p *Pacer) Interval() time.Duration {
	if p == nil {
		return 0
	}
	return p.interval
}
