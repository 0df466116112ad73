package cds

import (
	"context"
	"fmt"

	"github.com/couchcryptid/era5-sounding/internal/domain"
	"golang.org/x/time/rate"
)

// RateLimited throttles how often requests are submitted to the archive.
type RateLimited struct {
	inner   domain.Retriever
	limiter *rate.Limiter
}

// NewRateLimited wraps inner so that at most rps retrievals start per second.
// A non-positive rps disables the limit.
func NewRateLimited(inner domain.Retriever, rps float64) *RateLimited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(limit, 1)}
}

// Retrieve waits for a token and then delegates to the wrapped retriever.
func (r *RateLimited) Retrieve(ctx context.Context, req domain.Request, target string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return r.inner.Retrieve(ctx, req, target)
}
