// Package artifact resolves unit names to compiled contract artifacts.
package artifact

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when no artifact exists for a name.
	ErrNotFound = errors.New("artifact not found")

	// ErrMalformed is returned when an artifact lacks a usable interface or bytecode.
	ErrMalformed = errors.New("artifact is malformed")
)

// ArtifactError wraps errors with additional context.
type ArtifactError struct {
	Op      string // Operation that failed (e.g., "Resolve")
	Name    string // Artifact name
	Message string
	Err     error
}

func (e *ArtifactError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s artifact %s: %s", e.Op, e.Name, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// NewArtifactError creates a new ArtifactError.
func NewArtifactError(op, name, message string, err error) *ArtifactError {
	return &ArtifactError{
		Op:      op,
		Name:    name,
		Message: message,
		Err:     err,
	}
}
