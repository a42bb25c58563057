package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqpilot/pkg/agent"
	"reqpilot/pkg/agent/llm"
	"reqpilot/pkg/agent/llmerrors"
	"reqpilot/pkg/config"
	"reqpilot/pkg/requirements"
)

func TestExtractFiltersUnknownCategories(t *testing.T) {
	client := agent.NewMockLLMClient([]llm.CompletionResponse{
		{Content: `{"project_type": ["web app"], "favourite_color": ["blue"], "core_features": ["login", "  "]}`},
	}, nil)
	e := NewExtractor(client, config.DefaultConfig())

	got := e.Extract(context.Background(), nil, "a web app with login")
	assert.Equal(t, requirements.Map{
		"project_type":  {"web app"},
		"core_features": {"login"},
	}, got)

	require.Len(t, client.Requests, 1)
	assert.True(t, client.Requests[0].JSONResponse)
	assert.InDelta(t, llm.TemperatureExtraction, client.Requests[0].Temperature, 0.001)
}

func TestExtractAcceptsScalarValuesAndFences(t *testing.T) {
	client := agent.NewMockLLMClient([]llm.CompletionResponse{
		{Content: "```json\n{\"project_type\": \"mobile app\"}\n```"},
	}, nil)
	e := NewExtractor(client, config.DefaultConfig())

	got := e.Extract(context.Background(), nil, "a mobile app")
	assert.Equal(t, requirements.Map{"project_type": {"mobile app"}}, got)
}

func TestExtractFailureYieldsEmptyMap(t *testing.T) {
	client := agent.NewMockLLMClient(nil, []error{
		llmerrors.NewError(llmerrors.ErrorTypeTransient, "timeout"),
	})
	e := NewExtractor(client, config.DefaultConfig())

	got := e.Extract(context.Background(), nil, "anything")
	assert.Empty(t, got)
}

func TestExtractUnparseableJSONYieldsEmptyMap(t *testing.T) {
	client := agent.NewMockLLMClient([]llm.CompletionResponse{
		{Content: "The user wants a web app."},
	}, nil)
	e := NewExtractor(client, config.DefaultConfig())

	assert.Empty(t, e.Extract(context.Background(), nil, "anything"))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}
