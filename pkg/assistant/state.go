// Package assistant implements the conversational requirements-gathering
// state machine: per-session state, the per-turn pipeline
// (Intake → Validate → {Ready, Continue, Trigger}), and the delegated
// capabilities the pipeline consumes.
package assistant

import (
	"time"

	"reqpilot/pkg/requirements"
)

// MessageRole identifies the author of a transcript message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one transcript entry.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// DocumentMetadata captures statistics about a generated document.
type DocumentMetadata struct {
	WordCount    int              `json:"word_count"`
	SectionCount int              `json:"section_count"`
	GeneratedAt  time.Time        `json:"generated_at"`
	Requirements requirements.Map `json:"requirements"`
}

// State is the per-session conversation state. It is owned exclusively by the
// turn driver during a turn and treated as an opaque snapshot by callers
// between turns. Concurrent turns on one session are undefined behavior;
// callers must serialize per session id.
type State struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	// Transcript is append-only; the sole record of dialogue history. Never
	// reordered or pruned.
	Transcript []Message `json:"transcript"`

	// Requirements grows monotonically except for an explicit reset.
	Requirements requirements.Map `json:"requirements"`

	// Validation outputs, recomputed every turn.
	CompletenessScore float64  `json:"completeness_score"`
	MissingCategories []string `json:"missing_categories"`
	ReadyForDocument  bool     `json:"ready_for_document"`

	// ShouldOfferTrigger latches true the first time readiness is reached and
	// stays true until a Trigger succeeds or the session resets.
	ShouldOfferTrigger bool `json:"should_offer_trigger"`
	// UserConfirmed is set when the confirmation classifier fires while an
	// offer is pending. Reset to false after every Trigger attempt so the
	// confirmation gate re-arms.
	UserConfirmed bool `json:"user_confirmed"`
	// AutoDecideSeeded records that optional categories were already seeded
	// with the auto-decide placeholder, making re-detection a no-op.
	AutoDecideSeeded bool `json:"auto_decide_seeded"`

	// Phase records the last node executed. Diagnostic only: routing is a
	// pure function of score and flags, never of Phase.
	Phase Phase `json:"phase"`

	// Document holds the generated document after a successful Trigger.
	Document string            `json:"document,omitempty"`
	Metadata *DocumentMetadata `json:"metadata,omitempty"`
}

// NewState creates a fresh session state.
func NewState(sessionID, userID string) *State {
	return &State{
		SessionID:    sessionID,
		UserID:       userID,
		Transcript:   []Message{},
		Requirements: requirements.Map{},
		Phase:        PhaseIntake,
	}
}

// appendMessage appends a transcript entry.
func (s *State) appendMessage(role MessageRole, content string) {
	s.Transcript = append(s.Transcript, Message{Role: role, Content: content})
}

// LastAssistantMessage returns the most recent assistant transcript entry, or
// empty if none exists.
func (s *State) LastAssistantMessage() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == RoleAssistant {
			return s.Transcript[i].Content
		}
	}
	return ""
}

// HasDocument reports whether a document has been generated.
func (s *State) HasDocument() bool {
	return s.Document != ""
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	out := *s
	out.Transcript = append([]Message(nil), s.Transcript...)
	out.Requirements = s.Requirements.Clone()
	out.MissingCategories = append([]string(nil), s.MissingCategories...)
	if s.Metadata != nil {
		meta := *s.Metadata
		meta.Requirements = s.Metadata.Requirements.Clone()
		out.Metadata = &meta
	}
	return &out
}
