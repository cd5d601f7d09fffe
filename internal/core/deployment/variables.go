package deployment

import (
	"fmt"
	"regexp"
)

// =============================================================================
// Variable Substitution Functions
// =============================================================================

// varPlaceholderRegex matches ${VAR} and ${VAR:-default} patterns.
// Groups:
//   - Group 1: Variable name (required)
//   - Group 2: ":-" marker (optional)
//   - Group 3: Default value (optional, after :-)
var varPlaceholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// SubstituteVariables replaces ${VAR} and ${VAR:-default} placeholders with values
// from the variables map.
//
// Behavior:
//   - ${VAR} - replaced with variables["VAR"] if exists, otherwise kept as-is
//   - ${VAR:-default} - replaced with variables["VAR"] if exists, otherwise "default"
//   - ${VAR:-} - replaced with variables["VAR"] if exists, otherwise ""
//   - Unmatched text is left unchanged
//
// Examples:
//
//	SubstituteVariables("${OWNER}", map[string]string{"OWNER": "0xaa"})
//	// Returns: "0xaa"
//
//	SubstituteVariables("${SUPPLY:-1000}", map[string]string{})
//	// Returns: "1000"
//
//	SubstituteVariables("${MISSING}", map[string]string{})
//	// Returns: "${MISSING}"
func SubstituteVariables(value string, variables map[string]string) string {
	return varPlaceholderRegex.ReplaceAllStringFunc(value, func(match string) string {
		submatch := varPlaceholderRegex.FindStringSubmatch(match)
		if val, ok := variables[submatch[1]]; ok {
			return val
		}
		if submatch[2] != "" {
			return submatch[3]
		}
		return match
	})
}

// UndefinedVariables returns the names of ${VAR} placeholders (without a
// default) that the variables map cannot satisfy.
func UndefinedVariables(value string, variables map[string]string) []string {
	var missing []string
	for _, m := range varPlaceholderRegex.FindAllStringSubmatch(value, -1) {
		if _, ok := variables[m[1]]; ok || m[2] != "" {
			continue
		}
		missing = append(missing, m[1])
	}
	return missing
}

// AddressLookup returns the recorded address of a unit.
type AddressLookup func(unit string) (string, bool)

// ResolveArgs turns plan arguments into concrete values: literals get their
// placeholders substituted, references become the referenced unit's address.
//
// A reference to a unit without a recorded address fails with
// ErrUnresolvedReference; a placeholder with neither a value nor a default
// fails with ErrUndefinedVariable.
func ResolveArgs(args []Arg, variables map[string]string, lookup AddressLookup) ([]string, error) {
	out := make([]string, 0, len(args))
	for i, a := range args {
		field := fmt.Sprintf("args[%d]", i)
		if a.IsRef() {
			addr, ok := lookup(a.Ref)
			if !ok {
				return nil, NewPlanError(field, fmt.Sprintf("unit %q has no recorded address", a.Ref), ErrUnresolvedReference)
			}
			out = append(out, addr)
			continue
		}
		if missing := UndefinedVariables(a.Literal, variables); len(missing) > 0 {
			return nil, NewPlanError(field, fmt.Sprintf("undefined variable %q", missing[0]), ErrUndefinedVariable)
		}
		out = append(out, SubstituteVariables(a.Literal, variables))
	}
	return out, nil
}
