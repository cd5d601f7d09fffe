package deployment

// =============================================================================
// Run State Planning
// =============================================================================

// RunState is the orchestrator state chosen at startup.
type RunState string

const (
	// StateFresh means no usable ledger exists.
	StateFresh RunState = "fresh"
	// StateResuming means a ledger exists and the plan has not completed.
	StateResuming RunState = "resuming"
	// StateCompleted means a ledger exists and every step succeeded.
	StateCompleted RunState = "completed"
	// StateForceReset discards any existing ledger and behaves as fresh.
	StateForceReset RunState = "force_reset"
)

// DetermineRunState picks the starting state from what was loaded.
//
// Force mode wins regardless of the ledger:
//   - force                  → force_reset
//   - no ledger              → fresh
//   - ledger, not completed  → resuming
//   - ledger, completed      → completed (terminal)
func DetermineRunState(ledgerFound, completed, force bool) RunState {
	switch {
	case force:
		return StateForceReset
	case !ledgerFound:
		return StateFresh
	case completed:
		return StateCompleted
	default:
		return StateResuming
	}
}

// RunsSteps reports whether the plan is walked in this state.
func (s RunState) RunsSteps() bool {
	return s != StateCompleted
}

// =============================================================================
// Step Action Planning
// =============================================================================

// UnitAction is what a deploy step must do for its unit.
type UnitAction string

const (
	// UnitReconcile means an address is cached and must be checked for liveness.
	UnitReconcile UnitAction = "reconcile"
	// UnitDeploy means the unit must be deployed.
	UnitDeploy UnitAction = "deploy"
)

// DetermineUnitAction decides how a deploy step starts. A cached address is
// only trusted after reconciliation; force mode never trusts it.
func DetermineUnitAction(cached, force bool) UnitAction {
	if cached && !force {
		return UnitReconcile
	}
	return UnitDeploy
}

// InvokeAction is what an invoke step must do.
type InvokeAction string

const (
	InvokeSkip InvokeAction = "skip"
	InvokeCall InvokeAction = "call"
)

// DetermineInvokeAction decides whether a configuration action runs.
func DetermineInvokeAction(flagSet, force bool) InvokeAction {
	if flagSet && !force {
		return InvokeSkip
	}
	return InvokeCall
}
