package deployment

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Plan Types
// =============================================================================

// Plan is an ordered list of deployment steps. Declaration order is execution
// order; ParsePlan guarantees producers are declared before consumers.
type Plan struct {
	Name      string            `yaml:"name"`
	Variables map[string]string `yaml:"variables"`
	Steps     []Step            `yaml:"steps"`
}

// StepKind distinguishes unit deployments from configuration actions.
type StepKind string

const (
	StepKindDeploy StepKind = "deploy"
	StepKindInvoke StepKind = "invoke"
)

// Step is a single plan entry. Exactly one of Deploy or Invoke is set.
type Step struct {
	ID          float64     `yaml:"id"`
	Description string      `yaml:"description"`
	Deploy      *DeployStep `yaml:"deploy,omitempty"`
	Invoke      *InvokeStep `yaml:"invoke,omitempty"`
}

// DeployStep deploys a unit from an artifact with constructor arguments.
type DeployStep struct {
	Unit     string `yaml:"unit"`
	Artifact string `yaml:"artifact"` // Defaults to Unit
	Args     []Arg  `yaml:"args"`
}

// InvokeStep calls a method on an already deployed unit once, guarded by Flag.
type InvokeStep struct {
	Flag     string `yaml:"flag"`
	Target   string `yaml:"target"`
	Artifact string `yaml:"artifact"` // Defaults to Target
	Method   string `yaml:"method"`
	Args     []Arg  `yaml:"args"`

	// AlreadyDone lists case-sensitive substrings of chain error messages
	// meaning the action was already performed.
	AlreadyDone []string `yaml:"already_done"`
}

// Kind returns the step kind.
func (s Step) Kind() StepKind {
	if s.Invoke != nil {
		return StepKindInvoke
	}
	return StepKindDeploy
}

// Inputs returns the unit names this step consumes, in argument order.
// The invoke target comes first.
func (s Step) Inputs() []string {
	var inputs []string
	var args []Arg
	switch {
	case s.Deploy != nil:
		args = s.Deploy.Args
	case s.Invoke != nil:
		inputs = append(inputs, s.Invoke.Target)
		args = s.Invoke.Args
	}
	for _, a := range args {
		if a.IsRef() {
			inputs = append(inputs, a.Ref)
		}
	}
	return inputs
}

// Label returns a short human-readable name for logs.
func (s Step) Label() string {
	switch {
	case s.Deploy != nil:
		return "deploy " + s.Deploy.Unit
	case s.Invoke != nil:
		return fmt.Sprintf("invoke %s.%s", s.Invoke.Target, s.Invoke.Method)
	default:
		return "empty step"
	}
}

// =============================================================================
// Arguments
// =============================================================================

// Arg is a constructor or call argument: either a literal (which may contain
// ${VAR} placeholders) or a reference to another unit's address.
type Arg struct {
	Literal string
	Ref     string
}

// Lit returns a literal argument.
func Lit(v string) Arg { return Arg{Literal: v} }

// Ref returns a unit reference argument.
func Ref(unit string) Arg { return Arg{Ref: unit} }

// IsRef reports whether the argument references a unit.
func (a Arg) IsRef() bool { return a.Ref != "" }

// UnmarshalYAML accepts a scalar literal or a {ref: Unit} mapping.
func (a *Arg) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		a.Literal = node.Value
		return nil
	case yaml.MappingNode:
		var m struct {
			Ref string `yaml:"ref"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		if m.Ref == "" {
			return fmt.Errorf("line %d: argument mapping must have a non-empty ref", node.Line)
		}
		a.Ref = m.Ref
		return nil
	default:
		return fmt.Errorf("line %d: argument must be a scalar or {ref: unit}", node.Line)
	}
}

// MarshalYAML mirrors UnmarshalYAML.
func (a Arg) MarshalYAML() (any, error) {
	if a.IsRef() {
		return map[string]string{"ref": a.Ref}, nil
	}
	return a.Literal, nil
}
