package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqpilot/pkg/agent/llm"
	"reqpilot/pkg/agent/llmerrors"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	mock := NewMockLLMClient(
		[]llm.CompletionResponse{{Content: "ok"}},
		[]error{
			llmerrors.NewError(llmerrors.ErrorTypeTransient, "connection reset"),
			llmerrors.NewError(llmerrors.ErrorTypeTransient, "timeout"),
		},
	)
	client := llm.Chain(mock, WithRetry(nil))

	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest(
		[]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Len(t, mock.Requests, 3)
}

func TestRetryStopsOnAuthError(t *testing.T) {
	mock := NewMockLLMClient(
		[]llm.CompletionResponse{{Content: "never reached"}},
		[]error{llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad api key")},
	)
	client := llm.Chain(mock, WithRetry(nil))

	_, err := client.Complete(context.Background(), llm.NewCompletionRequest(
		[]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
	assert.Len(t, mock.Requests, 1)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	mock := NewMockLLMClient(nil, []error{
		llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "429"),
		llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "429"),
	})
	client := llm.Chain(mock, WithRetry(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, llm.NewCompletionRequest(
		[]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := llmerrors.RetryConfig{
		InitialDelay:  time.Second,
		MaxDelay:      4 * time.Second,
		BackoffFactor: 2.0,
	}
	assert.Equal(t, time.Second, backoffDelay(&cfg, 0))
	assert.Equal(t, 2*time.Second, backoffDelay(&cfg, 1))
	assert.Equal(t, 4*time.Second, backoffDelay(&cfg, 2))
	assert.Equal(t, 4*time.Second, backoffDelay(&cfg, 5))
}

func TestClassifyHeuristics(t *testing.T) {
	cases := map[string]llmerrors.ErrorType{
		"got 429 Too Many Requests": llmerrors.ErrorTypeRateLimit,
		"401 unauthorized":          llmerrors.ErrorTypeAuth,
		"context length exceeded":   llmerrors.ErrorTypeBadPrompt,
		"server returned 503":       llmerrors.ErrorTypeTransient,
		"something odd":             llmerrors.ErrorTypeUnknown,
	}
	for msg, want := range cases {
		classified := llmerrors.Classify(errFromString(msg))
		assert.Equal(t, want, classified.Type, "message %q", msg)
	}
}

type stringError string

func (e stringError) Error() string { return string(e) }

func errFromString(s string) error { return stringError(s) }
