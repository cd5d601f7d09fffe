// Package deployment provides pure functions for deployment planning.
//
// This package contains the functional core of the deployer: the plan model,
// plan parsing and validation, argument substitution, the run-state machine
// and classification of "already done" chain errors. All functions are pure
// (no I/O, no side effects).
//
// # Functions
//
//   - Parsing: Load a YAML plan into validated steps (ParsePlan)
//   - Ordering: Check producers precede consumers (ValidateOrder, Downstream)
//   - Variables: Substitute ${VAR} placeholders and unit references (ResolveArgs)
//   - Planner: Decide run state and per-step actions (DetermineRunState)
//   - Classify: Recognize already-performed actions (IsAlreadyDone)
//   - Naming: Ledger and archive file names (LedgerFileName, ArchiveName)
//
// # Usage
//
// The imperative shell (internal/shell/deployer) uses these pure functions
// to walk a plan, then executes each step against the chain.
//
//	plan, err := deployment.ParsePlan(content)
//	state := deployment.DetermineRunState(found, ledger.Completed, force)
//	args, err := deployment.ResolveArgs(step.Deploy.Args, plan.Variables, ledger.Address)
package deployment
