package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"reqpilot/pkg/agent/llm"
	"reqpilot/pkg/config"
	"reqpilot/pkg/logx"
	"reqpilot/pkg/metrics"
	"reqpilot/pkg/requirements"
)

const extractionSystemPrompt = `You are a requirements analyst. Extract software requirements from the user's message and classify each item into exactly one of the known categories.

Known categories:
%s

Rules:
- Return a single JSON object mapping category names to arrays of short requirement strings.
- Only include categories that the message actually provides information for.
- Keep each item concise (a phrase, not a paragraph).
- Do not invent requirements the user did not state.
- Return {} if the message contains no requirement information.`

// Extractor turns a free-form user message into categorized requirement
// items via a JSON-mode LLM call.
type Extractor struct {
	client llm.LLMClient
	cfg    config.Config
	logger *logx.Logger
}

// NewExtractor creates an extractor backed by the given client.
func NewExtractor(client llm.LLMClient, cfg config.Config) *Extractor {
	return &Extractor{
		client: client,
		cfg:    cfg,
		logger: logx.NewLogger("extractor"),
	}
}

// Extract extracts categorized requirements from the user message, using the
// recent transcript as disambiguation context. Extraction is best-effort: any
// failure (transport, malformed JSON, empty response) returns an empty map so
// the turn proceeds without new items.
func (e *Extractor) Extract(ctx context.Context, transcript []Message, userMessage string) requirements.Map {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(fmt.Sprintf(extractionSystemPrompt, e.categoryGuide())),
		llm.NewUserMessage(e.buildPrompt(transcript, userMessage)),
	})
	req.Temperature = llm.TemperatureExtraction
	req.JSONResponse = true

	resp, err := e.client.Complete(ctx, req)
	metrics.RecordLLMRequest("extract", err)
	if err != nil {
		e.logger.Warn("extraction failed, continuing without new items: %v", err)
		return requirements.Map{}
	}

	parsed, err := parseExtraction(resp.Content)
	if err != nil {
		e.logger.Warn("extraction returned unparseable JSON, continuing without new items: %v", err)
		return requirements.Map{}
	}

	return e.filterKnown(parsed)
}

func (e *Extractor) categoryGuide() string {
	var b strings.Builder
	for _, cat := range e.cfg.Categories {
		fmt.Fprintf(&b, "- %s: %s\n", cat.Name, cat.Description)
	}
	return b.String()
}

func (e *Extractor) buildPrompt(transcript []Message, userMessage string) string {
	var b strings.Builder
	if len(transcript) > 0 {
		b.WriteString("Recent conversation:\n")
		start := len(transcript) - 6
		if start < 0 {
			start = 0
		}
		for _, msg := range transcript[start:] {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Extract requirements from this message:\n%s", userMessage)
	return b.String()
}

// parseExtraction decodes the model's JSON object. Values may arrive as
// strings or arrays of strings; both are accepted.
func parseExtraction(content string) (requirements.Map, error) {
	content = stripCodeFence(content)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	out := requirements.Map{}
	for key, val := range raw {
		var items []string
		if err := json.Unmarshal(val, &items); err == nil {
			out[key] = items
			continue
		}
		var single string
		if err := json.Unmarshal(val, &single); err == nil && strings.TrimSpace(single) != "" {
			out[key] = []string{single}
		}
	}
	return out, nil
}

// filterKnown drops categories outside the configured rubric and discards
// blank items.
func (e *Extractor) filterKnown(in requirements.Map) requirements.Map {
	known := make(map[string]bool, len(e.cfg.Categories))
	for _, cat := range e.cfg.Categories {
		known[cat.Name] = true
	}

	out := requirements.Map{}
	for name, items := range in {
		if !known[name] {
			e.logger.Debug("dropping unknown extraction category: %s", name)
			continue
		}
		var kept []string
		for _, item := range items {
			if strings.TrimSpace(item) != "" {
				kept = append(kept, strings.TrimSpace(item))
			}
		}
		if len(kept) > 0 {
			out[name] = kept
		}
	}
	return out
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
