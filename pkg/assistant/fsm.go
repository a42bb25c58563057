package assistant

// Phase represents a node in the per-turn conversation pipeline.
type Phase string

// Pipeline phases. Every turn runs Intake then Validate, then exactly one of
// the three terminal phases.
const (
	PhaseIntake   Phase = "INTAKE"
	PhaseValidate Phase = "VALIDATE"
	PhaseReady    Phase = "READY"
	PhaseContinue Phase = "CONTINUE"
	PhaseTrigger  Phase = "TRIGGER"
)

// validTransitions defines the canonical phase transition graph. Terminal
// phases loop back to Intake on the next turn.
//
//nolint:gochecknoglobals // Transition table is immutable shared state.
var validTransitions = map[Phase][]Phase{
	PhaseIntake:   {PhaseValidate},
	PhaseValidate: {PhaseReady, PhaseContinue, PhaseTrigger},
	PhaseReady:    {PhaseIntake},
	PhaseContinue: {PhaseIntake},
	PhaseTrigger:  {PhaseIntake},
}

// ValidNextPhases returns the phases reachable from the given phase.
func ValidNextPhases(from Phase) []Phase {
	next, ok := validTransitions[from]
	if !ok {
		return nil
	}
	out := make([]Phase, len(next))
	copy(out, next)
	return out
}

// IsValidTransition reports whether from → to is a legal phase transition.
func IsValidTransition(from, to Phase) bool {
	for _, p := range validTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Route decides the terminal phase for a turn. It is a pure function of the
// validation outputs, checked in strict order:
//
//  1. Offer pending, user confirmed, and requirements ready → Trigger.
//  2. Requirements ready but not confirmed → Ready (present or repeat the offer).
//  3. Otherwise → Continue (keep asking questions).
//
// The confirmation flag alone never triggers generation: readiness is
// re-checked at the moment of routing.
func Route(ready, shouldOffer, confirmed bool) Phase {
	switch {
	case shouldOffer && confirmed && ready:
		return PhaseTrigger
	case ready && !confirmed:
		return PhaseReady
	default:
		return PhaseContinue
	}
}
