// Package store provides persistence for deployment ledgers.
package store

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when no usable ledger exists (missing or corrupt).
	ErrNotFound = errors.New("ledger not found")

	// ErrArchiveExists is returned when an archive with the same name exists.
	ErrArchiveExists = errors.New("archive already exists")

	// ErrNotCompleted is returned when archiving a ledger that is not completed.
	ErrNotCompleted = errors.New("ledger is not completed")

	// ErrConnectionFailed is returned when database connection fails.
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrMigrationFailed is returned when database migration fails.
	ErrMigrationFailed = errors.New("database migration failed")

	// ErrInvalidData is returned when JSON serialization fails.
	ErrInvalidData = errors.New("invalid data format")

	// ErrWriteFailed is returned when a ledger cannot be made durable.
	ErrWriteFailed = errors.New("ledger write failed")

	// ErrTxFailed is returned when a transaction operation fails.
	ErrTxFailed = errors.New("transaction failed")
)

// StoreError wraps errors with additional context.
type StoreError struct {
	Op      string // Operation that failed (e.g., "Save")
	Entity  string // Entity type (e.g., "ledger", "archive")
	ID      string // Network or archive name if applicable
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}
