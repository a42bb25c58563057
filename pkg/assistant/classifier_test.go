package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"reqpilot/pkg/agent"
	"reqpilot/pkg/agent/llm"
	"reqpilot/pkg/agent/llmerrors"
)

func TestConfirmationKeywords(t *testing.T) {
	c := NewConfirmationClassifier(nil)
	ctx := context.Background()

	for _, msg := range []string{
		"yes", "Yes please", "go ahead", "ok then", "sure, generate it", "proceed",
	} {
		assert.True(t, c.IsConfirmation(ctx, msg), msg)
	}

	for _, msg := range []string{"", "   ", "not yet", "I want to add more features"} {
		assert.False(t, c.IsConfirmation(ctx, msg), msg)
	}
}

func TestConfirmationLLMFallback(t *testing.T) {
	client := agent.NewMockLLMClient([]llm.CompletionResponse{
		{Content: `{"is_confirmed": true}`},
	}, nil)
	c := NewConfirmationClassifier(client)

	assert.True(t, c.IsConfirmation(context.Background(), "let's do it"))
	assert.Len(t, client.Requests, 1)
	assert.True(t, client.Requests[0].JSONResponse)
}

func TestConfirmationFallbackFailureMeansNo(t *testing.T) {
	client := agent.NewMockLLMClient(nil, []error{
		llmerrors.NewError(llmerrors.ErrorTypeTransient, "backend down"),
	})
	c := NewConfirmationClassifier(client)

	assert.False(t, c.IsConfirmation(context.Background(), "make it so"))
}

func TestConfirmationFallbackBadJSONMeansNo(t *testing.T) {
	client := agent.NewMockLLMClient([]llm.CompletionResponse{
		{Content: "definitely!"},
	}, nil)
	c := NewConfirmationClassifier(client)

	assert.False(t, c.IsConfirmation(context.Background(), "make it so"))
}
