package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqpilot/pkg/agent/llm"
	"reqpilot/pkg/config"
	"reqpilot/pkg/requirements"
)

// scriptedClient routes completions by the system prompt, so one client can
// serve the extractor, the classifier, and reply generation in a single turn.
type scriptedClient struct {
	extractJSON  string
	classifyJSON string
	replyText    string
	replyErr     error
}

func (s *scriptedClient) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	system := ""
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem {
			system = msg.Content
		}
	}
	switch {
	case strings.Contains(system, "requirements analyst"):
		if s.extractJSON == "" {
			return llm.CompletionResponse{Content: "{}"}, nil
		}
		return llm.CompletionResponse{Content: s.extractJSON}, nil
	case strings.Contains(system, "accepts that offer"):
		return llm.CompletionResponse{Content: s.classifyJSON}, nil
	default:
		if s.replyErr != nil {
			return llm.CompletionResponse{}, s.replyErr
		}
		return llm.CompletionResponse{Content: s.replyText}, nil
	}
}

func (s *scriptedClient) GetModelName() string { return "scripted-model" }

type stubProducer struct {
	doc   string
	err   error
	calls int
	brief string
}

func (p *stubProducer) Produce(_ context.Context, brief string) (string, error) {
	p.calls++
	p.brief = brief
	return p.doc, p.err
}

func newTestDriver(client llm.LLMClient, producer DocumentProducer) *Driver {
	return NewDriver(config.DefaultConfig(), client, producer, nil)
}

func TestProcessTurnRejectsEmptyMessage(t *testing.T) {
	driver := newTestDriver(&scriptedClient{}, &stubProducer{})

	_, _, err := driver.ProcessTurn(context.Background(), "s1", "u1", "   ", nil)
	require.Error(t, err)
}

func TestProcessTurnContinueOnPartialRequirements(t *testing.T) {
	client := &scriptedClient{
		extractJSON: `{"project_type": ["web app"]}`,
		replyText:   "Got it. What are the core features?",
	}
	driver := newTestDriver(client, &stubProducer{})

	reply, state, err := driver.ProcessTurn(context.Background(), "s1", "u1", "I want to build a web app", nil)
	require.NoError(t, err)

	assert.Equal(t, PhaseContinue, state.Phase)
	assert.InDelta(t, 0.30, state.CompletenessScore, 0.001)
	assert.Contains(t, state.MissingCategories, "core_features")
	assert.Contains(t, state.MissingCategories, "business_goals")
	assert.False(t, state.ReadyForDocument)
	assert.False(t, state.ShouldOfferTrigger)
	assert.Len(t, state.Transcript, 2)
	assert.Equal(t, "Got it. What are the core features?", reply)
}

func TestProcessTurnDoesNotMutatePriorState(t *testing.T) {
	client := &scriptedClient{
		extractJSON: `{"core_features": ["login"]}`,
		replyText:   "ok",
	}
	driver := newTestDriver(client, &stubProducer{})

	prior := NewState("s1", "u1")
	prior.Requirements["project_type"] = []string{"web app"}
	prior.appendMessage(RoleUser, "earlier")
	prior.appendMessage(RoleAssistant, "earlier reply")

	_, next, err := driver.ProcessTurn(context.Background(), "s1", "u1", "it needs login", prior)
	require.NoError(t, err)

	assert.Len(t, prior.Transcript, 2)
	assert.NotContains(t, prior.Requirements, "core_features")
	assert.Len(t, next.Transcript, 4)
	assert.Contains(t, next.Requirements, "core_features")
}

func TestEndToEndThreeTurnScenario(t *testing.T) {
	producer := &stubProducer{doc: "# SRS\n\n## Introduction\nText.\n\n## Features\nMore text.\n"}
	client := &scriptedClient{replyText: "Tell me more."}
	driver := newTestDriver(client, producer)
	ctx := context.Background()

	// Turn 1: only a project type.
	client.extractJSON = `{"project_type": ["e-commerce site"]}`
	_, state, err := driver.ProcessTurn(ctx, "s1", "u1", "I want an e-commerce site", nil)
	require.NoError(t, err)
	assert.Less(t, state.CompletenessScore, 0.35)
	assert.Equal(t, PhaseContinue, state.Phase)
	assert.Contains(t, state.MissingCategories, "core_features")
	assert.Contains(t, state.MissingCategories, "business_goals")

	// Turn 2: three core features and a business goal complete the rubric.
	client.extractJSON = `{"core_features": ["catalog", "cart", "checkout"], "business_goals": ["increase online sales"]}`
	_, state, err = driver.ProcessTurn(ctx, "s1", "u1", "catalog, cart and checkout; goal is more online sales", state)
	require.NoError(t, err)
	assert.InDelta(t, 1.00, state.CompletenessScore, 0.001)
	assert.Equal(t, PhaseReady, state.Phase)
	assert.True(t, state.ShouldOfferTrigger)
	assert.False(t, state.UserConfirmed)
	assert.Len(t, state.Transcript, 4)

	// Turn 3: confirmation triggers generation.
	client.extractJSON = `{}`
	reply, state, err := driver.ProcessTurn(ctx, "s1", "u1", "yes, go ahead", state)
	require.NoError(t, err)
	assert.Equal(t, PhaseTrigger, state.Phase)
	assert.Equal(t, 1, producer.calls)
	assert.True(t, state.HasDocument())
	require.NotNil(t, state.Metadata)
	assert.Equal(t, 2, state.Metadata.SectionCount)
	assert.False(t, state.ShouldOfferTrigger)
	assert.False(t, state.UserConfirmed)
	assert.Contains(t, reply, "Sections: 2")
	// Trigger appends acknowledgment plus outcome summary.
	assert.Len(t, state.Transcript, 7)

	// The brief carries the gathered requirements in fixed order.
	assert.Contains(t, producer.brief, "## Project Type")
	assert.Less(t, strings.Index(producer.brief, "## Project Type"), strings.Index(producer.brief, "## Core Features"))
	assert.Less(t, strings.Index(producer.brief, "## Core Features"), strings.Index(producer.brief, "## Business Goals"))
}

func TestTriggerFailureKeepsOfferLatched(t *testing.T) {
	producer := &stubProducer{err: errors.New("pipeline exploded")}
	client := &scriptedClient{extractJSON: `{}`, replyText: "unused"}
	driver := newTestDriver(client, producer)

	prior := NewState("s1", "u1")
	prior.Requirements = requirements.Map{
		"project_type":   {"web app"},
		"core_features":  {"a", "b", "c"},
		"business_goals": {"grow"},
	}
	prior.ShouldOfferTrigger = true

	reply, state, err := driver.ProcessTurn(context.Background(), "s1", "u1", "yes", prior)
	require.NoError(t, err)

	assert.Equal(t, PhaseTrigger, state.Phase)
	assert.False(t, state.HasDocument())
	assert.True(t, state.ShouldOfferTrigger, "offer stays latched for a retry")
	assert.False(t, state.UserConfirmed, "confirmation gate re-arms")
	assert.InDelta(t, 1.00, state.CompletenessScore, 0.001)
	assert.Equal(t, fallbackGenerationError, reply)
}

func TestTriggerEmptyDocumentTreatedAsFailure(t *testing.T) {
	producer := &stubProducer{doc: "   "}
	client := &scriptedClient{extractJSON: `{}`}
	driver := newTestDriver(client, producer)

	prior := NewState("s1", "u1")
	prior.Requirements = requirements.Map{
		"project_type":   {"api"},
		"core_features":  {"a", "b", "c"},
		"business_goals": {"grow"},
	}
	prior.ShouldOfferTrigger = true

	reply, state, err := driver.ProcessTurn(context.Background(), "s1", "u1", "ok", prior)
	require.NoError(t, err)
	assert.False(t, state.HasDocument())
	assert.True(t, state.ShouldOfferTrigger)
	assert.Equal(t, fallbackGenerationError, reply)
}

func TestAutoDecideSeedingIsIdempotent(t *testing.T) {
	client := &scriptedClient{extractJSON: `{}`, replyText: "ok"}
	driver := newTestDriver(client, &stubProducer{})
	ctx := context.Background()

	_, state, err := driver.ProcessTurn(ctx, "s1", "u1", "you decide the details", nil)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	optional := cfg.OptionalCategories()
	require.NotEmpty(t, optional)
	for _, name := range optional {
		assert.Equal(t, []string{requirements.AutoDecidePlaceholder}, state.Requirements[name])
	}

	_, state, err = driver.ProcessTurn(ctx, "s1", "u1", "really, up to you", state)
	require.NoError(t, err)
	for _, name := range optional {
		assert.Len(t, state.Requirements[name], 1, "category %s duplicated the placeholder", name)
	}
}

func TestAutoDecideDoesNotOverwritePopulatedCategories(t *testing.T) {
	client := &scriptedClient{extractJSON: `{}`, replyText: "ok"}
	driver := newTestDriver(client, &stubProducer{})

	prior := NewState("s1", "u1")
	prior.Requirements["tech_stack"] = []string{"Go", "PostgreSQL"}

	_, state, err := driver.ProcessTurn(context.Background(), "s1", "u1", "the rest is up to you", prior)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, state.Requirements["tech_stack"])
}

func TestReplyFallsBackOnGenerationError(t *testing.T) {
	client := &scriptedClient{extractJSON: `{"project_type": ["cli tool"]}`, replyErr: errors.New("backend down")}
	driver := newTestDriver(client, &stubProducer{})

	reply, state, err := driver.ProcessTurn(context.Background(), "s1", "u1", "a cli tool", nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseContinue, state.Phase)
	assert.Contains(t, reply, "core features")
}

func TestReadyReplyFallsBackOnGenerationError(t *testing.T) {
	client := &scriptedClient{extractJSON: `{}`, replyErr: errors.New("backend down")}
	driver := newTestDriver(client, &stubProducer{})

	prior := NewState("s1", "u1")
	prior.Requirements = requirements.Map{
		"project_type":   {"web app"},
		"core_features":  {"a", "b", "c"},
		"business_goals": {"grow"},
	}

	reply, state, err := driver.ProcessTurn(context.Background(), "s1", "u1", "that's everything", prior)
	require.NoError(t, err)
	assert.Equal(t, PhaseReady, state.Phase)
	assert.Equal(t, fallbackReadyMessage, reply)
}

func TestFormatBriefDeterministic(t *testing.T) {
	reqs := requirements.Map{
		"business_goals": {"grow"},
		"project_type":   {"web app"},
		"core_features":  {"login", "search"},
		"tech_stack":     {requirements.AutoDecidePlaceholder},
	}

	first := FormatBrief(reqs)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, FormatBrief(reqs))
	}

	assert.Contains(t, first, "(choose a sensible default)")
	order := []string{"## Project Type", "## Core Features", "## Technology Stack", "## Business Goals"}
	last := -1
	for _, heading := range order {
		idx := strings.Index(first, heading)
		require.GreaterOrEqual(t, idx, 0, heading)
		assert.Greater(t, idx, last, fmt.Sprintf("%s out of order", heading))
		last = idx
	}
}

func TestCountWordsAndSections(t *testing.T) {
	doc := "# Title\n\n## One\nalpha beta\n\n## Two\ngamma\n"
	assert.Equal(t, 9, CountWords(doc))
	assert.Equal(t, 2, CountSections(doc))
}
