package chain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Connection errors
	ErrConnectionFailed = errors.New("chain connection failed")
	ErrChainIDMismatch  = errors.New("chain id does not match configuration")

	// Input errors
	ErrInvalidAddress = errors.New("invalid address")
	ErrArgCount       = errors.New("wrong number of arguments")
	ErrInvalidArg     = errors.New("invalid argument value")
	ErrUnsupportedArg = errors.New("unsupported argument type")
	ErrUnknownMethod  = errors.New("method not found in interface")

	// Transaction errors
	ErrSubmitFailed  = errors.New("transaction submission failed")
	ErrConfirmFailed = errors.New("transaction confirmation failed")
	ErrReverted      = errors.New("transaction reverted")
)

// ChainError wraps errors with additional context.
type ChainError struct {
	Op      string // Operation that failed (e.g., "Deploy", "Invoke")
	Entity  string // Entity type (e.g., "contract", "address")
	ID      string // Artifact name, address or tx hash if applicable
	Message string
	Err     error
}

func (e *ChainError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// NewChainError creates a new ChainError.
func NewChainError(op, entity, id, message string, err error) *ChainError {
	return &ChainError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}
