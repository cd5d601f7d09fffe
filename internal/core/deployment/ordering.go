package deployment

import (
	"fmt"
	"math"
	"sort"
)

// =============================================================================
// Step Ordering Functions
// =============================================================================

// ValidateOrder checks that a plan can run in declaration order:
//   - step ids are finite and strictly increasing
//   - every unit is deployed by at most one step
//   - every flag guards at most one step
//   - every referenced unit (argument ref or invoke target) is deployed by an
//     earlier step
//
// A consumer declared before its producer is rejected here instead of failing
// midway through a run.
func ValidateOrder(steps []Step) error {
	produced := make(map[string]int) // unit -> producing step index
	flags := make(map[string]int)

	for i, s := range steps {
		field := fmt.Sprintf("steps[%d]", i)

		if math.IsNaN(s.ID) || math.IsInf(s.ID, 0) {
			return NewPlanError(field+".id", fmt.Sprintf("id %g is not a finite number", s.ID), ErrInvalidStepID)
		}
		if i > 0 && s.ID <= steps[i-1].ID {
			return NewPlanError(field+".id",
				fmt.Sprintf("id %g does not follow %g", s.ID, steps[i-1].ID), ErrStepOrder)
		}

		for _, input := range s.Inputs() {
			if _, ok := produced[input]; !ok {
				msg := fmt.Sprintf("%q is not deployed before step %g", input, s.ID)
				if later := producerIndex(steps[i:], input); later >= 0 {
					msg = fmt.Sprintf("%q is deployed by step %g, after its consumer step %g",
						input, steps[i+later].ID, s.ID)
				}
				return NewPlanError(field, msg, ErrUnresolvedInput)
			}
		}

		switch {
		case s.Deploy != nil:
			if prev, ok := produced[s.Deploy.Unit]; ok {
				return NewPlanError(field+".deploy.unit",
					fmt.Sprintf("%q already deployed by step %g", s.Deploy.Unit, steps[prev].ID), ErrDuplicateUnit)
			}
			produced[s.Deploy.Unit] = i
		case s.Invoke != nil:
			if prev, ok := flags[s.Invoke.Flag]; ok {
				return NewPlanError(field+".invoke.flag",
					fmt.Sprintf("%q already used by step %g", s.Invoke.Flag, steps[prev].ID), ErrDuplicateFlag)
			}
			flags[s.Invoke.Flag] = i
		}
	}

	return nil
}

func producerIndex(steps []Step, unit string) int {
	for i, s := range steps {
		if s.Deploy != nil && s.Deploy.Unit == unit {
			return i
		}
	}
	return -1
}

// Downstream returns every unit and flag that transitively depends on the
// given units, the given units excluded. Results are sorted.
//
// The walk is a BFS over the dependents graph:
//  1. Map each unit to the steps consuming it
//  2. Start from the given units
//  3. A consuming deploy step adds its unit to the queue; a consuming invoke
//     step contributes its flag
//
// Example:
//
//	// Token <- Registry <- Bridge, invoke "linked" targets Registry
//	units, flags := Downstream(steps, []string{"Token"})
//	// units: [Bridge Registry], flags: [linked]
func Downstream(steps []Step, units []string) (downUnits []string, downFlags []string) {
	dependents := make(map[string][]Step)
	for _, s := range steps {
		seen := make(map[string]bool)
		for _, input := range s.Inputs() {
			if seen[input] {
				continue
			}
			seen[input] = true
			dependents[input] = append(dependents[input], s)
		}
	}

	visited := make(map[string]bool)
	for _, u := range units {
		visited[u] = true
	}
	flagSet := make(map[string]bool)

	queue := append([]string(nil), units...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		for _, s := range dependents[name] {
			switch {
			case s.Deploy != nil:
				if !visited[s.Deploy.Unit] {
					visited[s.Deploy.Unit] = true
					downUnits = append(downUnits, s.Deploy.Unit)
					queue = append(queue, s.Deploy.Unit)
				}
			case s.Invoke != nil:
				if !flagSet[s.Invoke.Flag] {
					flagSet[s.Invoke.Flag] = true
					downFlags = append(downFlags, s.Invoke.Flag)
				}
			}
		}
	}

	sort.Strings(downUnits)
	sort.Strings(downFlags)
	return downUnits, downFlags
}
