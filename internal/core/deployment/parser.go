package deployment

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Parser Functions
// =============================================================================

// ParsePlan parses a YAML plan, fills defaults and validates step shape and
// ordering. This is a pure function - no I/O, no side effects.
//
// Example plan:
//
//	name: token-system
//	variables:
//	  OWNER: "0x00000000000000000000000000000000000000aa"
//	steps:
//	  - id: 1
//	    deploy:
//	      unit: Token
//	      args: ["${OWNER}", "1000000"]
//	  - id: 2
//	    deploy:
//	      unit: Registry
//	      args: [{ref: Token}]
//	  - id: 2.5
//	    invoke:
//	      flag: registry_linked
//	      target: Token
//	      method: setRegistry
//	      args: [{ref: Registry}]
//	      already_done: ["registry already set"]
func ParsePlan(content string) (*Plan, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyInput
	}

	var plan Plan
	if err := yaml.Unmarshal([]byte(content), &plan); err != nil {
		return nil, NewPlanError("", fmt.Sprintf("invalid YAML syntax: %v", err), ErrInvalidYAML)
	}

	if len(plan.Steps) == 0 {
		return nil, ErrNoSteps
	}
	if plan.Variables == nil {
		plan.Variables = make(map[string]string)
	}

	for i := range plan.Steps {
		if err := normalizeStep(i, &plan.Steps[i]); err != nil {
			return nil, err
		}
	}

	if err := ValidateOrder(plan.Steps); err != nil {
		return nil, err
	}

	return &plan, nil
}

// normalizeStep checks required fields and fills artifact and description
// defaults.
func normalizeStep(i int, s *Step) error {
	field := fmt.Sprintf("steps[%d]", i)

	if (s.Deploy == nil) == (s.Invoke == nil) {
		return NewPlanError(field, "must define exactly one of deploy or invoke", ErrInvalidStep)
	}

	if d := s.Deploy; d != nil {
		if d.Unit == "" {
			return NewPlanError(field+".deploy.unit", "unit is required", ErrMissingField)
		}
		if d.Artifact == "" {
			d.Artifact = d.Unit
		}
	}

	if inv := s.Invoke; inv != nil {
		switch {
		case inv.Flag == "":
			return NewPlanError(field+".invoke.flag", "flag is required", ErrMissingField)
		case inv.Target == "":
			return NewPlanError(field+".invoke.target", "target is required", ErrMissingField)
		case inv.Method == "":
			return NewPlanError(field+".invoke.method", "method is required", ErrMissingField)
		}
		if inv.Artifact == "" {
			inv.Artifact = inv.Target
		}
	}

	if s.Description == "" {
		s.Description = s.Label()
	}
	return nil
}
