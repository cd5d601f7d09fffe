package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// DetermineRunState Tests
// =============================================================================

func TestDetermineRunState(t *testing.T) {
	tests := []struct {
		name      string
		found     bool
		completed bool
		force     bool
		want      RunState
	}{
		{"no ledger", false, false, false, StateFresh},
		{"in progress", true, false, false, StateResuming},
		{"completed", true, true, false, StateCompleted},
		{"force on completed", true, true, true, StateForceReset},
		{"force on in progress", true, false, true, StateForceReset},
		{"force without ledger", false, false, true, StateForceReset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineRunState(tt.found, tt.completed, tt.force))
		})
	}
}

func TestRunState_RunsSteps(t *testing.T) {
	assert.True(t, StateFresh.RunsSteps())
	assert.True(t, StateResuming.RunsSteps())
	assert.True(t, StateForceReset.RunsSteps())
	assert.False(t, StateCompleted.RunsSteps())
}

// =============================================================================
// Step Action Tests
// =============================================================================

func TestDetermineUnitAction(t *testing.T) {
	assert.Equal(t, UnitReconcile, DetermineUnitAction(true, false))
	assert.Equal(t, UnitDeploy, DetermineUnitAction(true, true))
	assert.Equal(t, UnitDeploy, DetermineUnitAction(false, false))
	assert.Equal(t, UnitDeploy, DetermineUnitAction(false, true))
}

func TestDetermineInvokeAction(t *testing.T) {
	assert.Equal(t, InvokeSkip, DetermineInvokeAction(true, false))
	assert.Equal(t, InvokeCall, DetermineInvokeAction(true, true))
	assert.Equal(t, InvokeCall, DetermineInvokeAction(false, false))
}
