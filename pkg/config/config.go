// Package config provides configuration loading, validation, and management
// for the requirements assistant.
//
// KEY PRINCIPLES:
//
//  1. SINGLE SOURCE OF TRUTH: the category rubric (weights, minimum item
//     counts, required flags) lives here and nowhere else. The scorer, the
//     turn driver, and the brief formatter all read the same value.
//
//  2. VALIDATION FIRST: LoadConfig validates before installing. A rubric whose
//     required weights do not sum to 1.0, or a threshold outside (0, 1], is
//     rejected at startup — no session is ever processed against a broken
//     rubric.
//
//  3. VALUE-BASED ACCESS: GetConfig() returns the config BY VALUE to prevent
//     external mutation.
//
// State (scores, transcripts, documents) never lives in config; it belongs to
// the session store.
package config

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"reqpilot/pkg/logx"
)

//nolint:gochecknoglobals // Intentional singleton pattern for config management.
var (
	config *Config
	logger *logx.Logger
	mu     sync.RWMutex
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderMock      Provider = "mock"
)

// Known model name constants.
const (
	ModelGPT4oMini        = "gpt-4o-mini"
	ModelGPT4o            = "gpt-4o"
	ModelClaudeSonnet     = "claude-sonnet-4-20250514"
	ModelGeminiFlash      = "gemini-2.0-flash"
	DefaultReadyThreshold = 0.8
)

// ModelInfo contains static information about a known LLM model. This data is
// hardcoded, not user-configurable.
type ModelInfo struct {
	Provider         Provider
	MaxContextTokens int
	MaxOutputTokens  int
}

// KnownModels registry for context-budget decisions. Unknown models fall back
// to conservative defaults.
//
//nolint:gochecknoglobals // Static registry.
var KnownModels = map[string]ModelInfo{
	ModelGPT4oMini:    {Provider: ProviderOpenAI, MaxContextTokens: 128000, MaxOutputTokens: 16384},
	ModelGPT4o:        {Provider: ProviderOpenAI, MaxContextTokens: 128000, MaxOutputTokens: 16384},
	ModelClaudeSonnet: {Provider: ProviderAnthropic, MaxContextTokens: 200000, MaxOutputTokens: 64000},
	ModelGeminiFlash:  {Provider: ProviderGoogle, MaxContextTokens: 1048576, MaxOutputTokens: 8192},
}

// CategoryRubric describes one requirement category in the completeness
// rubric. Declaration order in Config.Categories is significant: missing
// categories are always reported in that order.
type CategoryRubric struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Weight      float64 `yaml:"weight" json:"weight"`
	MinItems    int     `yaml:"min_items" json:"min_items"`
	Required    bool    `yaml:"required" json:"required"`
}

// LLMConfig selects the provider and model for delegated capabilities.
type LLMConfig struct {
	Provider    Provider `yaml:"provider" json:"provider"`
	Model       string   `yaml:"model" json:"model"`
	APIKeyEnv   string   `yaml:"api_key_env" json:"api_key_env"`
	MaxTokens   int      `yaml:"max_tokens" json:"max_tokens"`
	Temperature float32  `yaml:"temperature" json:"temperature"`
}

// PipelineConfig bounds the document generation sub-pipeline.
type PipelineConfig struct {
	MaxSearches int `yaml:"max_searches" json:"max_searches"`
	MaxWorkers  int `yaml:"max_workers" json:"max_workers"`
}

// Config is the full deployment configuration.
type Config struct {
	SchemaVersion  int              `yaml:"schema_version" json:"schema_version"`
	ReadyThreshold float64          `yaml:"ready_threshold" json:"ready_threshold"`
	Categories     []CategoryRubric `yaml:"categories" json:"categories"`
	// PriorityOrder lists categories in the order Continue should ask about
	// them. Entries must name known categories.
	PriorityOrder []string       `yaml:"priority_order" json:"priority_order"`
	LLM           LLMConfig      `yaml:"llm" json:"llm"`
	Pipeline      PipelineConfig `yaml:"pipeline" json:"pipeline"`
	DatabasePath  string         `yaml:"database_path" json:"database_path"`
	PrometheusURL string         `yaml:"prometheus_url,omitempty" json:"prometheus_url,omitempty"`
}

// CurrentSchemaVersion must be incremented for any breaking config change.
const CurrentSchemaVersion = 1

// DefaultConfig returns the stock configuration: the three-category required
// rubric with weights summing to 1.0 and a 0.80 ready threshold.
func DefaultConfig() Config {
	return Config{
		SchemaVersion:  CurrentSchemaVersion,
		ReadyThreshold: DefaultReadyThreshold,
		Categories: []CategoryRubric{
			{Name: "project_type", Description: "Kind of project (web app, mobile app, API, ...)", Weight: 0.30, MinItems: 1, Required: true},
			{Name: "core_features", Description: "Main features the system must provide", Weight: 0.45, MinItems: 3, Required: true},
			{Name: "business_goals", Description: "Business goals and domain logic", Weight: 0.25, MinItems: 1, Required: true},
			{Name: "tech_stack", Description: "Technology choices (optional)", Weight: 0, MinItems: 0, Required: false},
			{Name: "user_roles", Description: "User roles (optional)", Weight: 0, MinItems: 0, Required: false},
			{Name: "non_functional", Description: "Non-functional requirements (optional)", Weight: 0, MinItems: 0, Required: false},
			{Name: "integrations", Description: "Third-party integrations (optional)", Weight: 0, MinItems: 0, Required: false},
			{Name: "constraints", Description: "Constraints (optional)", Weight: 0, MinItems: 0, Required: false},
		},
		PriorityOrder: []string{"project_type", "core_features", "business_goals"},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       ModelGPT4oMini,
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Pipeline: PipelineConfig{
			MaxSearches: 3,
			MaxWorkers:  5,
		},
		DatabasePath: "reqpilot.db",
	}
}

// weightTolerance absorbs float literal rounding in hand-written config files.
const weightTolerance = 1e-6

// Validate checks config invariants. Violations are fatal at load time.
func (c *Config) Validate() error {
	if c.SchemaVersion != CurrentSchemaVersion {
		return fmt.Errorf("unsupported schema version %d (expected %d)", c.SchemaVersion, CurrentSchemaVersion)
	}

	if c.ReadyThreshold <= 0 || c.ReadyThreshold > 1 {
		return fmt.Errorf("ready_threshold %.2f out of range (0, 1]", c.ReadyThreshold)
	}

	if len(c.Categories) == 0 {
		return fmt.Errorf("category rubric is empty")
	}

	seen := make(map[string]bool, len(c.Categories))
	requiredWeight := 0.0
	for i := range c.Categories {
		cat := &c.Categories[i]
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return fmt.Errorf("category %d has empty name", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate category %q in rubric", name)
		}
		seen[name] = true

		if cat.Weight < 0 {
			return fmt.Errorf("category %q has negative weight", name)
		}
		if cat.MinItems < 0 {
			return fmt.Errorf("category %q has negative min_items", name)
		}
		if cat.Required {
			requiredWeight += cat.Weight
		}
	}

	if math.Abs(requiredWeight-1.0) > weightTolerance {
		return fmt.Errorf("required category weights sum to %.4f, expected 1.0", requiredWeight)
	}

	for _, name := range c.PriorityOrder {
		if !seen[name] {
			return fmt.Errorf("priority_order references unknown category %q", name)
		}
	}

	if c.Pipeline.MaxWorkers < 1 {
		return fmt.Errorf("pipeline max_workers must be at least 1")
	}
	if c.Pipeline.MaxSearches < 0 {
		return fmt.Errorf("pipeline max_searches must not be negative")
	}

	return nil
}

// RequiredCategories returns required category rubrics in declaration order.
func (c *Config) RequiredCategories() []CategoryRubric {
	out := make([]CategoryRubric, 0, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Required {
			out = append(out, cat)
		}
	}
	return out
}

// OptionalCategories returns optional category names in declaration order.
func (c *Config) OptionalCategories() []string {
	out := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		if !cat.Required {
			out = append(out, cat.Name)
		}
	}
	return out
}

// Category looks up a rubric entry by name.
func (c *Config) Category(name string) (CategoryRubric, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return CategoryRubric{}, false
}

// CategoryNames returns all category names in declaration order.
func (c *Config) CategoryNames() []string {
	out := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		out = append(out, cat.Name)
	}
	return out
}

// GetConfig returns a copy of the installed configuration.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()

	if config == nil {
		return Config{}, fmt.Errorf("config not loaded: call config.LoadConfig first")
	}
	return cloneConfig(config), nil
}

// SetConfigForTest installs a config directly, bypassing file loading.
func SetConfigForTest(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid test config: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	clone := cloneConfig(&cfg)
	config = &clone
	return nil
}

// cloneConfig deep-copies the slices so callers cannot mutate the installed
// rubric through a returned value.
func cloneConfig(src *Config) Config {
	out := *src
	out.Categories = append([]CategoryRubric(nil), src.Categories...)
	out.PriorityOrder = append([]string(nil), src.PriorityOrder...)
	return out
}
