package ingest

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder spaces out provider calls with a token bucket shared
// by all concurrent batches.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder returns next unchanged when rps <= 0.
func NewRateLimitedEmbedder(next Embedder, rps float64, burst int) Embedder {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// EmbedTexts waits for a token; waiting counts against the caller's
// deadline, so a long queue surfaces as a retryable timeout.
func (e *RateLimitedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.next.EmbedTexts(ctx, texts)
}
