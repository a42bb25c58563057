package assistant

import (
	"context"
	"encoding/json"
	"strings"

	"reqpilot/pkg/agent/llm"
	"reqpilot/pkg/logx"
	"reqpilot/pkg/metrics"
)

// confirmationKeywords are the affirmative phrases that count as accepting a
// pending generation offer without an LLM round trip.
//
//nolint:gochecknoglobals // Immutable keyword table.
var confirmationKeywords = []string{
	"yes", "generate", "create", "proceed", "go ahead", "ok", "okay", "sure",
}

// ConfirmationClassifier decides whether a user message accepts a pending
// generation offer. A keyword pass handles the common cases; an optional
// LLM fallback covers phrasings the keywords miss.
type ConfirmationClassifier struct {
	client llm.LLMClient // nil disables the LLM fallback
	logger *logx.Logger
}

// NewConfirmationClassifier creates a classifier. client may be nil, in which
// case only the keyword heuristic runs.
func NewConfirmationClassifier(client llm.LLMClient) *ConfirmationClassifier {
	return &ConfirmationClassifier{
		client: client,
		logger: logx.NewLogger("classifier"),
	}
}

// IsConfirmation reports whether the message confirms the pending offer.
// Classification is best-effort: on any fallback failure the answer is false,
// which keeps the offer pending rather than generating against the user's
// intent.
func (c *ConfirmationClassifier) IsConfirmation(ctx context.Context, message string) bool {
	lowered := strings.ToLower(strings.TrimSpace(message))
	if lowered == "" {
		return false
	}

	for _, kw := range confirmationKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}

	if c.client == nil {
		return false
	}
	return c.classifyWithLLM(ctx, message)
}

func (c *ConfirmationClassifier) classifyWithLLM(ctx context.Context, message string) bool {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(`The assistant just offered to generate a requirements document. Decide whether the user's reply accepts that offer. Respond with a JSON object: {"is_confirmed": true} or {"is_confirmed": false}.`),
		llm.NewUserMessage(message),
	})
	req.Temperature = llm.TemperatureClassify
	req.MaxTokens = 64
	req.JSONResponse = true

	resp, err := c.client.Complete(ctx, req)
	metrics.RecordLLMRequest("classify", err)
	if err != nil {
		c.logger.Debug("confirmation classification failed, treating as not confirmed: %v", err)
		return false
	}

	var result struct {
		IsConfirmed bool `json:"is_confirmed"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &result); err != nil {
		c.logger.Debug("confirmation classification returned unparseable JSON: %v", err)
		return false
	}
	return result.IsConfirmed
}
