package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited spaces calls to the wrapped Client to at most perMinute per
// minute, with a burst of one. Waiting respects the caller's context.
type RateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimited wraps next.
func NewRateLimited(next Client, perMinute int) *RateLimited {
	every := time.Minute / time.Duration(perMinute)
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Every(every), 1)}
}

// Generate waits for a token, then delegates.
func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &RequestError{Provider: "ratelimit", Err: err}
	}
	return r.next.Generate(ctx, prompt)
}
