package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// =============================================================================
// Ledger Errors
// =============================================================================

var (
	ErrNetworkRequired  = errors.New("network is required")
	ErrNetworkMismatch  = errors.New("ledger belongs to a different network")
	ErrUnitNameRequired = errors.New("unit name is required")
	ErrAddressRequired  = errors.New("address is required")
	ErrFlagRequired     = errors.New("flag name is required")
	ErrLedgerCompleted  = errors.New("ledger is already completed")
)

// LedgerVersion is the schema version written by this build.
const LedgerVersion = 1

// =============================================================================
// Progress
// =============================================================================

// Progress is the last plan step the orchestrator entered.
type Progress struct {
	StepID      float64   `json:"stepId"`
	Description string    `json:"description"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// =============================================================================
// Ledger
// =============================================================================

// Ledger is the durable record of what has been deployed and configured for
// one network, and how far the plan has progressed.
//
// All mutators are pure value transitions; persisting a mutation is the
// caller's job.
type Ledger struct {
	Version          int               `json:"version"`
	CreatedAt        time.Time         `json:"createdAt"`
	Network          string            `json:"network"`
	DeployerIdentity string            `json:"deployerIdentity"`
	RunID            string            `json:"runId,omitempty"`
	Units            map[string]string `json:"units"`
	Flags            map[string]bool   `json:"flags"`
	Progress         *Progress         `json:"progress,omitempty"`
	Completed        bool              `json:"completed"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
}

// NewLedger creates an empty ledger for a network.
func NewLedger(network, deployerIdentity string, now time.Time) (*Ledger, error) {
	if network == "" {
		return nil, ErrNetworkRequired
	}
	return &Ledger{
		Version:          LedgerVersion,
		CreatedAt:        now.UTC(),
		Network:          network,
		DeployerIdentity: deployerIdentity,
		Units:            make(map[string]string),
		Flags:            make(map[string]bool),
	}, nil
}

// Normalize fills nil maps left by decoding a sparse record.
func (l *Ledger) Normalize() {
	if l.Units == nil {
		l.Units = make(map[string]string)
	}
	if l.Flags == nil {
		l.Flags = make(map[string]bool)
	}
}

// CheckNetwork verifies the ledger was written for the given network.
func (l *Ledger) CheckNetwork(network string) error {
	if l.Network != network {
		return fmt.Errorf("%w: ledger has %q, configured %q", ErrNetworkMismatch, l.Network, network)
	}
	return nil
}

// Address returns the recorded address of a unit.
func (l *Ledger) Address(unit string) (string, bool) {
	addr, ok := l.Units[unit]
	return addr, ok && addr != ""
}

// UnitNames returns the recorded unit names in sorted order.
func (l *Ledger) UnitNames() []string {
	names := make([]string, 0, len(l.Units))
	for name := range l.Units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetUnit records the address of a deployed unit.
func (l *Ledger) SetUnit(unit, address string) error {
	if unit == "" {
		return ErrUnitNameRequired
	}
	if address == "" {
		return ErrAddressRequired
	}
	l.Normalize()
	l.Units[unit] = address
	return nil
}

// RemoveUnit forgets a unit. It reports whether the unit was present.
func (l *Ledger) RemoveUnit(unit string) bool {
	if _, ok := l.Units[unit]; !ok {
		return false
	}
	delete(l.Units, unit)
	return true
}

// FlagSet reports whether a configuration action has been recorded as done.
func (l *Ledger) FlagSet(flag string) bool {
	return l.Flags[flag]
}

// SetFlag marks a configuration action as done.
func (l *Ledger) SetFlag(flag string) error {
	if flag == "" {
		return ErrFlagRequired
	}
	l.Normalize()
	l.Flags[flag] = true
	return nil
}

// ClearFlag forgets a configuration action. It reports whether the flag was set.
func (l *Ledger) ClearFlag(flag string) bool {
	if _, ok := l.Flags[flag]; !ok {
		return false
	}
	delete(l.Flags, flag)
	return true
}

// Advance moves the progress marker to a step. The step id never regresses:
// entering an earlier step than the recorded one (replaying on resume) leaves
// progress untouched and returns false. Non-finite ids are never recorded.
func (l *Ledger) Advance(stepID float64, description string, now time.Time) bool {
	if math.IsNaN(stepID) || math.IsInf(stepID, 0) {
		return false
	}
	if l.Progress != nil && stepID < l.Progress.StepID {
		return false
	}
	l.Progress = &Progress{
		StepID:      stepID,
		Description: description,
		LastUpdated: now.UTC(),
	}
	return true
}

// Complete marks every plan step as done.
func (l *Ledger) Complete(now time.Time) error {
	if l.Completed {
		return ErrLedgerCompleted
	}
	t := now.UTC()
	l.Completed = true
	l.CompletedAt = &t
	return nil
}

// Reset discards all progress in one transition: units, flags, progress and
// completion are cleared together. The deployer identity is re-stamped since
// a reset run signs everything anew.
func (l *Ledger) Reset(deployerIdentity string) {
	l.Units = make(map[string]string)
	l.Flags = make(map[string]bool)
	l.Progress = nil
	l.Completed = false
	l.CompletedAt = nil
	l.DeployerIdentity = deployerIdentity
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	c := *l
	c.Units = make(map[string]string, len(l.Units))
	for k, v := range l.Units {
		c.Units[k] = v
	}
	c.Flags = make(map[string]bool, len(l.Flags))
	for k, v := range l.Flags {
		c.Flags[k] = v
	}
	if l.Progress != nil {
		p := *l.Progress
		c.Progress = &p
	}
	if l.CompletedAt != nil {
		t := *l.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
