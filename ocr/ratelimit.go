package ocr

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedProvider throttles calls to a wrapped Provider. Remote
// recognizers bill or reject per request, so batches of pages are spread out
// rather than sent in a burst.
type RateLimitedProvider struct {
	provider    Provider
	rateLimiter *rate.Limiter
}

// NewRateLimitedProvider allows at most requestsPerMinute calls per minute
// with a burst of one. A non-positive rate disables limiting.
func NewRateLimitedProvider(provider Provider, requestsPerMinute int) *RateLimitedProvider {
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		rps := rate.Limit(float64(requestsPerMinute) / 60.0)
		limiter = rate.NewLimiter(rps, 1)
	}
	return &RateLimitedProvider{provider: provider, rateLimiter: limiter}
}

// Recognize waits for a token, then delegates.
func (r *RateLimitedProvider) Recognize(ctx context.Context, imageContent []byte, pageNumber int) (*OCRResult, error) {
	if r.rateLimiter != nil {
		if err := r.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}
	return r.provider.Recognize(ctx, imageContent, pageNumber)
}
