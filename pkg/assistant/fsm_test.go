package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidNextPhases(t *testing.T) {
	assert.Equal(t, []Phase{PhaseValidate}, ValidNextPhases(PhaseIntake))
	assert.ElementsMatch(t, []Phase{PhaseReady, PhaseContinue, PhaseTrigger}, ValidNextPhases(PhaseValidate))
	assert.Equal(t, []Phase{PhaseIntake}, ValidNextPhases(PhaseReady))
	assert.Equal(t, []Phase{PhaseIntake}, ValidNextPhases(PhaseContinue))
	assert.Equal(t, []Phase{PhaseIntake}, ValidNextPhases(PhaseTrigger))
	assert.Nil(t, ValidNextPhases(Phase("BOGUS")))
}

func TestIsValidTransition(t *testing.T) {
	assert.True(t, IsValidTransition(PhaseIntake, PhaseValidate))
	assert.True(t, IsValidTransition(PhaseValidate, PhaseTrigger))
	assert.True(t, IsValidTransition(PhaseTrigger, PhaseIntake))

	assert.False(t, IsValidTransition(PhaseIntake, PhaseTrigger))
	assert.False(t, IsValidTransition(PhaseReady, PhaseValidate))
	assert.False(t, IsValidTransition(PhaseContinue, PhaseTrigger))
}

func TestRouteGuardOrder(t *testing.T) {
	tests := []struct {
		name      string
		ready     bool
		offer     bool
		confirmed bool
		want      Phase
	}{
		{"offer pending, confirmed, ready", true, true, true, PhaseTrigger},
		{"ready but not confirmed", true, true, false, PhaseReady},
		{"ready, no offer yet", true, false, false, PhaseReady},
		{"confirmed without pending offer", true, false, true, PhaseContinue},
		{"not ready, confirmed anyway", false, true, true, PhaseContinue},
		{"nothing set", false, false, false, PhaseContinue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.ready, tt.offer, tt.confirmed))
		})
	}
}

// Confirmation alone never triggers generation: readiness is re-checked at
// routing time.
func TestRouteConfirmationRequiresReadiness(t *testing.T) {
	assert.Equal(t, PhaseContinue, Route(false, true, true))
}
