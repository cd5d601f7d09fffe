// Package deployer runs a deployment plan against a chain, keeping the ledger
// durable after every mutation so a run can be interrupted and resumed.
package deployer

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrLedgerWrite wraps every failed ledger flush. A run cannot continue
	// once its ledger and the chain may disagree.
	ErrLedgerWrite = errors.New("ledger write failed")

	// ErrIdentity is returned when the signing identity cannot be determined.
	ErrIdentity = errors.New("signing identity unavailable")

	// ErrArchive is returned when a completed ledger cannot be archived.
	ErrArchive = errors.New("ledger archive failed")
)

// StepError reports the plan step at which a run aborted.
type StepError struct {
	StepID float64
	Label  string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %g (%s): %v", e.StepID, e.Label, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
