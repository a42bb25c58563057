// Package srs implements the document generation sub-pipeline: research the
// project, plan a set of specialist workers, run them concurrently, and
// synthesize their outputs into one markdown document.
package srs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"reqpilot/pkg/agent/llm"
	"reqpilot/pkg/config"
	"reqpilot/pkg/logx"
	"reqpilot/pkg/metrics"
	"reqpilot/pkg/utils"
)

// SearchTool performs a web search and returns a textual result summary.
// Implementations must be safe for concurrent use.
type SearchTool interface {
	Search(ctx context.Context, query string) (string, error)
}

// WorkerTask describes what one specialist worker must produce.
type WorkerTask struct {
	Objective    string `json:"objective"`
	Requirements string `json:"requirements"`
	Context      string `json:"context"`
	Deliverables string `json:"deliverables"`
}

// WorkerSpec is one entry of the agent plan.
type WorkerSpec struct {
	AgentRole string     `json:"agent_role"`
	Specialty string     `json:"specialty"`
	Task      WorkerTask `json:"task"`
}

// workerOutput pairs a worker with its draft text.
type workerOutput struct {
	AgentIndex int    `json:"agent_index"`
	Role       string `json:"role"`
	Output     string `json:"output"`
}

const workerFailurePlaceholder = "(no output produced for this section)"

// maxQueryLen keeps search queries within provider limits.
const maxQueryLen = 350

// researchContextTokens bounds how much research text flows into planning and
// fallback tasks.
const researchContextTokens = 1500

// Pipeline generates a requirements document from a project brief. search may
// be nil, in which case the research stage is skipped.
type Pipeline struct {
	cfg    config.Config
	client llm.LLMClient
	search SearchTool
	tokens *utils.TokenCounter
	logger *logx.Logger
}

// NewPipeline wires a document pipeline. tokens may be nil; a character-based
// estimate is used instead.
func NewPipeline(cfg config.Config, client llm.LLMClient, search SearchTool, tokens *utils.TokenCounter) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		client: client,
		search: search,
		tokens: tokens,
		logger: logx.NewLogger("srs"),
	}
}

// Produce runs the full research → plan → work → synthesize pass and returns
// the finished markdown document. Only a synthesis failure is fatal; earlier
// stages degrade to deterministic fallbacks.
func (p *Pipeline) Produce(ctx context.Context, brief string) (string, error) {
	research := p.runResearch(ctx, brief)
	plan := p.runPlanning(ctx, brief, research)
	outputs := p.runWorkers(ctx, plan)
	return p.runSynthesis(ctx, brief, outputs)
}

// runResearch issues the fixed-shape search queries. A failed search
// contributes nothing; the pipeline proceeds with whatever was gathered.
func (p *Pipeline) runResearch(ctx context.Context, brief string) string {
	if p.search == nil {
		return ""
	}

	subject := briefSubject(brief)
	queries := []string{
		fmt.Sprintf("modern software architecture for %s", subject),
		fmt.Sprintf("best practices %s 2025", subject),
		fmt.Sprintf("tech stack recommendations %s", subject),
	}

	maxSearches := p.cfg.Pipeline.MaxSearches
	if maxSearches > len(queries) {
		maxSearches = len(queries)
	}

	var results []string
	for i, query := range queries[:maxSearches] {
		if len(query) > maxQueryLen {
			query = query[:maxQueryLen]
		}
		p.logger.Debug("research search %d/%d: %s", i+1, maxSearches, query)

		result, err := p.search.Search(ctx, query)
		metrics.RecordLLMRequest("research", err)
		if err != nil {
			p.logger.Warn("search failed, skipping query: %v", err)
			continue
		}
		if strings.TrimSpace(result) != "" {
			results = append(results, result)
		}
	}
	return strings.Join(results, "\n\n")
}

const plannerPrompt = `You are planning a software requirements document for the following project.

%s

Research findings:
%s

Design a team of 3-5 specialist agents to draft the document. Respond with ONLY a JSON array; each element must have this shape:
{"agent_role": "...", "specialty": "...", "task": {"objective": "...", "requirements": "...", "context": "...", "deliverables": "..."}}`

// runPlanning asks the model for a worker plan. Any parse or transport
// failure yields the deterministic three-worker fallback plan.
func (p *Pipeline) runPlanning(ctx context.Context, brief, research string) []WorkerSpec {
	research = p.truncate(research, researchContextTokens)

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewUserMessage(fmt.Sprintf(plannerPrompt, brief, research)),
	})

	resp, err := p.client.Complete(ctx, req)
	metrics.RecordLLMRequest("plan", err)
	if err != nil {
		p.logger.Warn("planning failed, using fallback plan: %v", err)
		return p.fallbackPlan(brief, research)
	}

	plan, err := parsePlan(resp.Content)
	if err != nil {
		p.logger.Warn("plan unparseable, using fallback plan: %v", err)
		return p.fallbackPlan(brief, research)
	}

	if limit := p.cfg.Pipeline.MaxWorkers; len(plan) > limit {
		p.logger.Warn("plan has %d workers, truncating to %d", len(plan), limit)
		plan = plan[:limit]
	}
	p.logger.Info("planned %d workers", len(plan))
	return plan
}

// parsePlan decodes the planner's JSON array, tolerating a surrounding
// markdown code fence.
func parsePlan(content string) ([]WorkerSpec, error) {
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}

	var plan []WorkerSpec
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse agent plan: %w", err)
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("agent plan is empty")
	}
	return plan, nil
}

// fallbackPlan is the deterministic plan used when the model cannot produce a
// valid one.
func (p *Pipeline) fallbackPlan(brief, research string) []WorkerSpec {
	subject := briefSubject(brief)
	ctx := p.truncate(research, 250)
	return []WorkerSpec{
		{
			AgentRole: "Database Architect",
			Specialty: "Data modeling and schema design",
			Task: WorkerTask{
				Objective:    fmt.Sprintf("Design database architecture for %s", subject),
				Requirements: "Create comprehensive database schema, ER diagrams, indexing strategy",
				Context:      ctx,
				Deliverables: "Database schema, ER diagrams, indexing strategy",
			},
		},
		{
			AgentRole: "Backend Engineer",
			Specialty: "API and business logic design",
			Task: WorkerTask{
				Objective:    fmt.Sprintf("Design backend architecture for %s", subject),
				Requirements: "API endpoints, business logic, authentication",
				Context:      ctx,
				Deliverables: "API specifications, architecture diagrams",
			},
		},
		{
			AgentRole: "Frontend Engineer",
			Specialty: "UI/UX and component architecture",
			Task: WorkerTask{
				Objective:    fmt.Sprintf("Design frontend architecture for %s", subject),
				Requirements: "Component hierarchy, state management, user flows",
				Context:      ctx,
				Deliverables: "UI specifications, component diagrams",
			},
		},
	}
}

const workerPrompt = `You are a %s. Specialty: %s.

Your task:
%s

Write your section of the software requirements document in markdown. Be specific and thorough.`

// runWorkers runs every planned worker concurrently and joins them all before
// returning. A failed worker contributes a placeholder instead of aborting
// the batch.
func (p *Pipeline) runWorkers(ctx context.Context, plan []WorkerSpec) []workerOutput {
	outputs := make([]workerOutput, len(plan))

	var wg sync.WaitGroup
	for i, spec := range plan {
		wg.Add(1)
		go func(i int, spec WorkerSpec) {
			defer wg.Done()
			outputs[i] = p.runWorker(ctx, i+1, spec)
		}(i, spec)
	}
	wg.Wait()

	return outputs
}

func (p *Pipeline) runWorker(ctx context.Context, index int, spec WorkerSpec) workerOutput {
	out := workerOutput{AgentIndex: index, Role: spec.AgentRole}

	taskJSON, err := json.MarshalIndent(spec.Task, "", "  ")
	if err != nil {
		taskJSON = []byte(spec.Task.Objective)
	}

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewUserMessage(fmt.Sprintf(workerPrompt, spec.AgentRole, spec.Specialty, taskJSON)),
	})

	resp, err := p.client.Complete(ctx, req)
	metrics.RecordLLMRequest("work", err)
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		p.logger.Warn("worker %d (%s) failed: %v", index, spec.AgentRole, err)
		out.Output = workerFailurePlaceholder
		return out
	}

	out.Output = resp.Content
	return out
}

const synthesisPrompt = `You are the lead author of a software requirements specification.

Project:
%s

Specialist drafts:
%s

Combine the drafts into one coherent markdown document with "##" section headings. Resolve contradictions, remove duplication, and keep all concrete technical detail.`

// runSynthesis merges the worker drafts into the final document. This is the
// only stage whose failure fails the whole pipeline.
func (p *Pipeline) runSynthesis(ctx context.Context, brief string, outputs []workerOutput) (string, error) {
	drafts, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode worker outputs: %w", err)
	}

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewUserMessage(fmt.Sprintf(synthesisPrompt, brief, drafts)),
	})
	req.MaxTokens = 8192

	resp, err := p.client.Complete(ctx, req)
	metrics.RecordLLMRequest("synthesize", err)
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("synthesis returned an empty document")
	}

	p.logger.Info("document synthesized: %d characters", len(resp.Content))
	return resp.Content, nil
}

func (p *Pipeline) truncate(text string, limit int) string {
	if text == "" {
		return ""
	}
	if p.tokens == nil {
		if len(text) > limit*4 {
			return text[:limit*4] + "..."
		}
		return text
	}
	return p.tokens.TruncateToTokenLimit(text, limit)
}

// briefSubject extracts a short search subject from the brief: the first
// project-type bullet when present, otherwise the first non-heading line.
func briefSubject(brief string) string {
	lines := strings.Split(brief, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "## Project Type") {
			for _, next := range lines[i+1:] {
				next = strings.TrimSpace(next)
				if strings.HasPrefix(next, "- ") {
					return strings.TrimPrefix(next, "- ")
				}
				if strings.HasPrefix(next, "#") {
					break
				}
			}
		}
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return strings.TrimSpace(brief)
}
