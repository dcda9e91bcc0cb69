package fetcher

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter spaces out network requests to the tile service. The upstream
// has no published quota, so pacing is the polite default.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter that allows n requests per second.
func NewLimiter(rps float64) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Wait blocks until the limiter allows another request.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
