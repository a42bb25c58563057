// Package google provides Google Gemini client implementation for the LLM
// interface.
package google

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"reqpilot/pkg/agent/llm"
	"reqpilot/pkg/agent/llmerrors"
	"reqpilot/pkg/config"
)

// GeminiClient wraps the Google GenAI client to implement llm.LLMClient.
type GeminiClient struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewClient creates a Gemini client with the given model. Client creation
// requires a context, so it is deferred to the first Complete call.
func NewClient(apiKey, model string) llm.LLMClient {
	if model == "" {
		model = config.ModelGeminiFlash
	}
	return &GeminiClient{apiKey: apiKey, model: model}
}

// Complete implements llm.LLMClient.
func (g *GeminiClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if g.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err,
				"failed to create Gemini client")
		}
		g.client = client
	}

	var contents []*genai.Content
	var systemInstruction string
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			if systemInstruction != "" {
				systemInstruction += "\n\n"
			}
			systemInstruction += msg.Content
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case llm.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt,
				fmt.Sprintf("unsupported role %q at index %d", msg.Role, i))
		}
	}

	//nolint:gosec // MaxTokens bounded by config validation, overflow not a concern.
	maxTokens := int32(in.MaxTokens)
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &in.Temperature,
		MaxOutputTokens: maxTokens,
	}
	if systemInstruction != "" {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}
	if in.JSONResponse {
		genConfig.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genConfig)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.Classify(fmt.Errorf("Gemini generate content failed: %w", err))
	}

	text := resp.Text()
	if text == "" {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse,
			"received empty response from Gemini API")
	}

	return llm.CompletionResponse{Content: text}, nil
}

// GetModelName returns the model name for this client.
func (g *GeminiClient) GetModelName() string {
	return g.model
}
