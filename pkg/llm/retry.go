package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// retryProvider wraps a Provider with exponential backoff on transient
// failures. Non-retryable errors surface immediately.
type retryProvider struct {
	inner      Provider
	maxRetries int
	baseDelay  time.Duration
	logger     zerolog.Logger
}

// WithRetry decorates a provider so transient failures (rate limits,
// server errors, network resets) are retried with exponential backoff.
func WithRetry(inner Provider, maxRetries int, logger zerolog.Logger) Provider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &retryProvider{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		logger:     logger,
	}
}

func (p *retryProvider) Provider() string {
	return p.inner.Provider()
}

func (p *retryProvider) Chat(ctx context.Context, request Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		response, err := p.inner.Chat(ctx, request)
		if err == nil {
			return response, nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
		if attempt == p.maxRetries-1 {
			break
		}

		delay := p.baseDelay * time.Duration(1<<attempt)
		p.logger.Info().
			Str("provider", p.inner.Provider()).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying model call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", p.maxRetries, lastErr)
}
