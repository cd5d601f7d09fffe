package deployment

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input errors
	ErrEmptyInput  = errors.New("plan is empty")
	ErrInvalidYAML = errors.New("invalid YAML syntax")
	ErrNoSteps     = errors.New("plan must define at least one step")

	// Step shape errors
	ErrInvalidStep     = errors.New("step must define exactly one of deploy or invoke")
	ErrMissingField    = errors.New("required field is missing")
	ErrStepOrder       = errors.New("step ids must be strictly increasing")
	ErrInvalidStepID   = errors.New("step id must be a finite number")
	ErrDuplicateUnit   = errors.New("unit is deployed by more than one step")
	ErrDuplicateFlag   = errors.New("flag is used by more than one step")
	ErrUnresolvedInput = errors.New("reference to a unit not deployed by an earlier step")

	// Argument resolution errors
	ErrUnresolvedReference = errors.New("referenced unit has no recorded address")
	ErrUndefinedVariable   = errors.New("variable is not defined")
)

// PlanError wraps errors with context about where a plan is invalid.
type PlanError struct {
	Field   string // e.g., "steps[2].deploy.args[0]"
	Message string
	Err     error
}

func (e *PlanError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *PlanError) Unwrap() error {
	return e.Err
}

// NewPlanError creates a new PlanError.
func NewPlanError(field, message string, err error) *PlanError {
	return &PlanError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
