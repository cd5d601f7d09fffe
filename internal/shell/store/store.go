package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/artpar/chaindeploy/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store persists the ledger of one network.
//
// Save is atomic: a concurrent or later Load observes either the previous or
// the new record, never a partial one. Load reports a missing or corrupt
// record as ErrNotFound so callers can start fresh.
type Store interface {
	// Load returns the live ledger.
	Load(ctx context.Context) (*domain.Ledger, error)

	// Save replaces the live ledger.
	Save(ctx context.Context, ledger *domain.Ledger) error

	// Archive writes an immutable copy of a completed ledger and returns
	// where it was written. Existing archives are never overwritten: when the
	// archive already exists its location is returned with ErrArchiveExists.
	Archive(ctx context.Context, ledger *domain.Ledger) (string, error)

	// Lifecycle
	Close() error
}

// =============================================================================
// Encoding
// =============================================================================

// encodeLedger renders a ledger as indented, human-readable JSON.
func encodeLedger(op string, ledger *domain.Ledger) ([]byte, error) {
	if ledger == nil {
		return nil, NewStoreError(op, "ledger", "", "ledger is nil", ErrInvalidData)
	}
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return nil, NewStoreError(op, "ledger", ledger.Network, "failed to serialize ledger", ErrInvalidData)
	}
	return append(data, '\n'), nil
}

// decodeLedger parses a stored ledger. Anything unreadable or written by a
// different schema version is reported as not found.
func decodeLedger(op, network string, data []byte) (*domain.Ledger, error) {
	var ledger domain.Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, NewStoreError(op, "ledger", network, fmt.Sprintf("corrupt ledger: %v", err), ErrNotFound)
	}
	if ledger.Version != domain.LedgerVersion {
		return nil, NewStoreError(op, "ledger", network,
			fmt.Sprintf("corrupt ledger: unsupported version %d", ledger.Version), ErrNotFound)
	}
	if ledger.Network == "" {
		return nil, NewStoreError(op, "ledger", network, "corrupt ledger: missing network", ErrNotFound)
	}
	ledger.Normalize()
	return &ledger, nil
}
