// Package agent provides the LLM client stack: provider selection, retry
// middleware, and a mock client for tests.
package agent

import (
	"fmt"
	"os"

	"reqpilot/pkg/agent/internal/llmimpl/anthropic"
	"reqpilot/pkg/agent/internal/llmimpl/google"
	"reqpilot/pkg/agent/internal/llmimpl/openaiofficial"
	"reqpilot/pkg/agent/llm"
	"reqpilot/pkg/config"
	"reqpilot/pkg/logx"
)

// NewClient builds an LLM client for the configured provider, wrapped with
// retry middleware. The API key is read from the environment variable named
// in the config; a missing key is a startup error, not a per-turn one.
func NewClient(cfg *config.LLMConfig, logger *logx.Logger) (llm.LLMClient, error) {
	if cfg.Provider == config.ProviderMock {
		return NewMockLLMClient([]llm.CompletionResponse{{Content: "mock response"}}, nil), nil
	}

	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultKeyEnv(cfg.Provider)
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("no API key in $%s for provider %s", keyEnv, cfg.Provider)
	}

	var base llm.LLMClient
	switch cfg.Provider {
	case config.ProviderOpenAI:
		base = openaiofficial.NewClient(apiKey, cfg.Model)
	case config.ProviderAnthropic:
		base = anthropic.NewClient(apiKey, cfg.Model)
	case config.ProviderGoogle:
		base = google.NewClient(apiKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}

	return llm.Chain(base, WithRetry(logger)), nil
}

func defaultKeyEnv(provider config.Provider) string {
	switch provider {
	case config.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case config.ProviderGoogle:
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}
