// Package metrics provides Prometheus instrumentation for the conversation
// pipeline and a query service for aggregating recorded data.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus collectors are process-wide by design.
var (
	// TurnsTotal counts processed turns by the phase that produced the reply.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqpilot_turns_total",
		Help: "Number of conversation turns processed, by terminal phase.",
	}, []string{"phase"})

	// LLMRequestsTotal counts delegated LLM calls by capability and outcome.
	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqpilot_llm_requests_total",
		Help: "Number of LLM requests, by capability (extract, classify, generate, research, plan, work, synthesize) and outcome (ok, error).",
	}, []string{"capability", "outcome"})

	// LLMTokensTotal tracks estimated prompt/completion tokens per session.
	LLMTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqpilot_llm_tokens_total",
		Help: "Estimated LLM tokens, by session, capability and type (prompt, completion).",
	}, []string{"session_id", "capability", "type"})

	// CompletenessScore reports the latest completeness score per session.
	CompletenessScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reqpilot_completeness_score",
		Help: "Latest requirement completeness score per session.",
	}, []string{"session_id"})

	// DocumentsGeneratedTotal counts document generation attempts by outcome.
	DocumentsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqpilot_documents_generated_total",
		Help: "Number of document generation attempts, by outcome (ok, error, empty).",
	}, []string{"outcome"})
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeEmpty = "empty"
)

// RecordLLMRequest records one delegated LLM call.
func RecordLLMRequest(capability string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	LLMRequestsTotal.WithLabelValues(capability, outcome).Inc()
}

// RecordTokens records estimated token usage for a session.
func RecordTokens(sessionID, capability string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(sessionID, capability, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(sessionID, capability, "completion").Add(float64(completionTokens))
	}
}
