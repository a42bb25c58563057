package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reqpilot/pkg/agent/llm"
	"reqpilot/pkg/config"
	"reqpilot/pkg/logx"
	"reqpilot/pkg/metrics"
	"reqpilot/pkg/requirements"
	"reqpilot/pkg/utils"
)

// DocumentProducer generates a finished document from a formatted project
// brief. Invoked synchronously once per Trigger execution.
type DocumentProducer interface {
	Produce(ctx context.Context, brief string) (string, error)
}

// autoDecideKeywords mark an utterance as "pick sensible defaults for me".
// English plus the Vietnamese phrasings the assistant is expected to handle.
//
//nolint:gochecknoglobals // Immutable keyword table.
var autoDecideKeywords = []string{
	"you decide", "up to you", "don't know",
	"tự bạn quyết định", "bạn quyết định", "tùy bạn",
	"bạn chọn", "tự chọn", "không biết", "không quan tâm",
}

// Fixed fallbacks used when reply generation fails. The turn always completes
// with a safe deterministic message.
const (
	fallbackReadyMessage    = "We have gathered enough requirements. Shall we proceed to generate the document?"
	fallbackGenerationError = "Sorry, there was an error generating the document. Please try again."
	triggerAckMessage       = "Great, generating the document now. This may take a moment."
)

const continueSystemPrompt = `You are a friendly software requirements assistant. Acknowledge what the user has shared so far, then ask one focused question about the named missing topic. Keep it short (2-3 sentences). Respond in %s.`

const readySystemPrompt = `You are a friendly software requirements assistant. Tell the user enough information has been gathered, summarize it briefly, and ask whether to proceed with generating the requirements document. Keep it short. Respond in %s.`

// Driver runs one state-machine pass per user turn. All collaborators are
// injected; the driver holds no global state.
type Driver struct {
	cfg        config.Config
	client     llm.LLMClient
	scorer     *requirements.Scorer
	extractor  *Extractor
	classifier *ConfirmationClassifier
	detector   LanguageDetector
	producer   DocumentProducer
	tokens     *utils.TokenCounter
	logger     *logx.Logger
}

// NewDriver wires a turn driver from its collaborators. detector may be nil,
// in which case the diacritic heuristic is used.
func NewDriver(cfg config.Config, client llm.LLMClient, producer DocumentProducer, detector LanguageDetector) *Driver {
	if detector == nil {
		detector = NewHeuristicDetector()
	}
	// nil counter falls back to character-based estimates.
	tokens, _ := utils.NewTokenCounter()
	return &Driver{
		cfg:        cfg,
		client:     client,
		scorer:     requirements.NewScorer(&cfg),
		extractor:  NewExtractor(client, cfg),
		classifier: NewConfirmationClassifier(client),
		detector:   detector,
		producer:   producer,
		tokens:     tokens,
		logger:     logx.NewLogger("assistant"),
	}
}

// ProcessTurn runs one full pipeline pass for a user message and returns the
// assistant's reply together with the updated session state. prior may be nil
// for a new session. The prior state is never mutated.
//
// Postcondition: the transcript grows by exactly two messages (one user, one
// assistant), or three on the Trigger path, which also appends the generation
// outcome summary after the acknowledgment.
func (d *Driver) ProcessTurn(ctx context.Context, sessionID, userID, message string, prior *State) (string, *State, error) {
	if strings.TrimSpace(message) == "" {
		return "", prior, fmt.Errorf("empty message for session %s", sessionID)
	}

	var state *State
	if prior != nil {
		state = prior.Clone()
	} else {
		state = NewState(sessionID, userID)
	}

	// Confirmation gate: only consulted while an offer is pending.
	if state.ShouldOfferTrigger && !state.UserConfirmed {
		state.UserConfirmed = d.classifier.IsConfirmation(ctx, message)
		if state.UserConfirmed {
			d.logger.Info("session %s: user confirmed document generation", sessionID)
		}
	}

	d.runIntake(ctx, state, message)
	d.runValidate(state)

	phase := Route(state.ReadyForDocument, state.ShouldOfferTrigger, state.UserConfirmed)
	language := d.detector.Detect(message)

	switch phase {
	case PhaseReady:
		d.runReady(ctx, state, language)
	case PhaseTrigger:
		d.runTrigger(ctx, state)
	default:
		d.runContinue(ctx, state, language)
	}

	state.Phase = phase
	metrics.TurnsTotal.WithLabelValues(string(phase)).Inc()

	return state.LastAssistantMessage(), state, nil
}

// runIntake appends the user message, applies auto-decide seeding, and merges
// extracted requirements.
func (d *Driver) runIntake(ctx context.Context, state *State, message string) {
	state.Phase = PhaseIntake
	state.appendMessage(RoleUser, message)

	if !state.AutoDecideSeeded && d.detectAutoDecide(message) {
		d.logger.Info("session %s: auto-decide detected, seeding optional categories", state.SessionID)
		d.seedOptionalCategories(state)
		state.AutoDecideSeeded = true
	}

	extracted := d.extractor.Extract(ctx, state.Transcript, message)
	if len(extracted) > 0 {
		d.logger.Debug("session %s: extracted %d categories", state.SessionID, len(extracted))
	}
	state.Requirements = requirements.Merge(state.Requirements, extracted)
}

func (d *Driver) detectAutoDecide(message string) bool {
	lowered := strings.ToLower(message)
	for _, kw := range autoDecideKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// seedOptionalCategories marks every still-empty optional category with the
// placeholder item. Populated categories are left alone, which makes repeated
// detection a no-op.
func (d *Driver) seedOptionalCategories(state *State) {
	for _, name := range d.cfg.OptionalCategories() {
		if len(state.Requirements[name]) == 0 {
			state.Requirements[name] = []string{requirements.AutoDecidePlaceholder}
		}
	}
}

// runValidate recomputes the completeness outputs. Requirements are not
// mutated here.
func (d *Driver) runValidate(state *State) {
	state.Phase = PhaseValidate

	result := d.scorer.Calculate(state.Requirements)
	state.CompletenessScore = result.Score
	state.MissingCategories = result.Missing
	state.ReadyForDocument = d.scorer.IsReady(result.Score)

	metrics.CompletenessScore.WithLabelValues(state.SessionID).Set(result.Score)
	d.logger.Debug("session %s: score=%.2f ready=%v missing=%v",
		state.SessionID, result.Score, state.ReadyForDocument, result.Missing)
}

// runReady offers document generation and latches the offer flag.
func (d *Driver) runReady(ctx context.Context, state *State, language string) {
	state.ShouldOfferTrigger = true

	prompt := fmt.Sprintf("Completeness: %d%%\n\nGathered so far:\n%s\n\nOffer to generate the requirements document.",
		int(state.CompletenessScore*100), summarizeRequirements(state.Requirements))

	reply := d.generateReply(ctx, state.SessionID, fmt.Sprintf(readySystemPrompt, languageName(language)), prompt, fallbackReadyMessage)
	state.appendMessage(RoleAssistant, reply)
}

// runContinue asks about the single highest-priority missing category.
func (d *Driver) runContinue(ctx context.Context, state *State, language string) {
	nextCategory := d.scorer.NextCategoryToAsk(state.MissingCategories)

	prompt := fmt.Sprintf("Completeness: %d%%\n\nGathered so far:\n%s\n\nAsk the user about: %s.",
		int(state.CompletenessScore*100), summarizeRequirements(state.Requirements), categoryTitle(nextCategory))

	fallback := fmt.Sprintf("Thanks! Could you tell me more about the %s for this project?", strings.ReplaceAll(nextCategory, "_", " "))
	reply := d.generateReply(ctx, state.SessionID, fmt.Sprintf(continueSystemPrompt, languageName(language)), prompt, fallback)
	state.appendMessage(RoleAssistant, reply)
}

// runTrigger formats the brief, invokes the document pipeline, and records the
// outcome. A failed or empty generation keeps the offer latched and re-arms
// the confirmation gate; score and missing categories stay untouched.
func (d *Driver) runTrigger(ctx context.Context, state *State) {
	state.appendMessage(RoleAssistant, triggerAckMessage)

	brief := FormatBrief(state.Requirements)
	doc, err := d.producer.Produce(ctx, brief)

	state.UserConfirmed = false

	switch {
	case err != nil:
		d.logger.Error("session %s: document generation failed: %v", state.SessionID, err)
		metrics.DocumentsGeneratedTotal.WithLabelValues(metrics.OutcomeError).Inc()
		state.appendMessage(RoleAssistant, fallbackGenerationError)
	case strings.TrimSpace(doc) == "":
		d.logger.Error("session %s: document generation returned empty result", state.SessionID)
		metrics.DocumentsGeneratedTotal.WithLabelValues(metrics.OutcomeEmpty).Inc()
		state.appendMessage(RoleAssistant, fallbackGenerationError)
	default:
		metrics.DocumentsGeneratedTotal.WithLabelValues(metrics.OutcomeOK).Inc()
		state.Document = doc
		state.Metadata = &DocumentMetadata{
			WordCount:    CountWords(doc),
			SectionCount: CountSections(doc),
			GeneratedAt:  time.Now().UTC(),
			Requirements: state.Requirements.Clone(),
		}
		state.ShouldOfferTrigger = false
		state.appendMessage(RoleAssistant, fmt.Sprintf(
			"Document generated successfully!\n\nStatistics:\n- Words: %d\n- Sections: %d\n\nThe complete requirements document is ready.",
			state.Metadata.WordCount, state.Metadata.SectionCount))
	}
}

// generateReply produces user-facing prose, substituting the fixed fallback
// on any failure.
func (d *Driver) generateReply(ctx context.Context, sessionID, systemPrompt, userPrompt, fallback string) string {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(systemPrompt),
		llm.NewUserMessage(userPrompt),
	})
	req.MaxTokens = 512

	resp, err := d.client.Complete(ctx, req)
	metrics.RecordLLMRequest("generate", err)
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		d.logger.Warn("reply generation failed, using fallback: %v", err)
		return fallback
	}

	metrics.RecordTokens(sessionID, "generate",
		d.tokens.CountTokens(systemPrompt+userPrompt), d.tokens.CountTokens(resp.Content))
	return strings.TrimSpace(resp.Content)
}

// summarizeRequirements renders a short per-category progress list for
// prompts.
func summarizeRequirements(reqs requirements.Map) string {
	var b strings.Builder
	for _, section := range briefSections {
		items := reqs[section.category]
		if len(items) == 0 {
			continue
		}
		preview := items
		if len(preview) > 3 {
			preview = preview[:3]
		}
		fmt.Fprintf(&b, "- %s: %s\n", section.heading, strings.Join(preview, ", "))
	}
	if b.Len() == 0 {
		return "Nothing gathered yet"
	}
	return strings.TrimRight(b.String(), "\n")
}

func categoryTitle(category string) string {
	words := strings.Split(strings.ReplaceAll(category, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func languageName(code string) string {
	if code == LanguageVietnamese {
		return "Vietnamese"
	}
	return "English"
}
