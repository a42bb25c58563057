package agent

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"reqpilot/pkg/agent/llm"
	"reqpilot/pkg/agent/llmerrors"
	"reqpilot/pkg/logx"
)

// WithRetry returns a middleware that retries failed completions with
// exponential backoff. Retry counts and delays come from the classified
// error type; non-retryable errors (auth, bad prompt) fail immediately.
func WithRetry(logger *logx.Logger) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				return completeWithRetry(ctx, next, req, logger)
			},
			next.GetModelName,
		)
	}
}

func completeWithRetry(ctx context.Context, next llm.LLMClient, req llm.CompletionRequest, logger *logx.Logger) (llm.CompletionResponse, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		resp, err := next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		classified := llmerrors.Classify(err)
		if !classified.IsRetryable() {
			return llm.CompletionResponse{}, err
		}

		cfg := classified.GetRetryConfig()
		if attempt >= cfg.MaxRetries {
			break
		}

		delay := backoffDelay(&cfg, attempt)
		if logger != nil {
			logger.Warn("LLM call failed (%s), retry %d/%d in %s: %v",
				classified.Type, attempt+1, cfg.MaxRetries, delay, err)
		}

		select {
		case <-ctx.Done():
			return llm.CompletionResponse{}, fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return llm.CompletionResponse{}, fmt.Errorf("retries exhausted: %w", lastErr)
}

// backoffDelay computes the delay before the given attempt (0-based), with
// exponential growth capped at MaxDelay and optional jitter.
func backoffDelay(cfg *llmerrors.RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter && delay > 0 {
		// Up to 25% jitter to avoid thundering herd on shared rate limits.
		delay += delay * 0.25 * rand.Float64() //nolint:gosec // Jitter does not need crypto randomness.
	}
	return time.Duration(delay)
}
