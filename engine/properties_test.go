package engine

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/arturpragacz/labelgraph/rule"
	"github.com/arturpragacz/labelgraph/types"
)

// propertyRecords is a fixed universe for the derivation properties:
// a three-level hierarchy, a diamond, and positive-only rules.
func propertyRecords() []types.LabelRecord {
	return []types.LabelRecord{
		{ID: "home"},
		{ID: "ground_floor", Parents: []types.LabelID{"home"}},
		{ID: "living_room", Parents: []types.LabelID{"ground_floor"}},
		{ID: "kitchen", Parents: []types.LabelID{"ground_floor"}},
		{ID: "downstairs_rooms", Parents: []types.LabelID{"living_room", "kitchen"}},
		{ID: "battery"},
		{ID: "important"},
		{ID: "important_battery", Rule: "label(important) and label(battery)"},
		{ID: "anywhere_home", Rule: "label(home) or label(battery)"},
		{ID: "chained", Rule: "label(important_battery)"},
	}
}

func genAssignment() gopter.Gen {
	universe := []types.LabelID{
		"home", "ground_floor", "living_room", "kitchen",
		"downstairs_rooms", "battery", "important", "unknown_label",
	}
	return gen.SliceOf(gen.IntRange(0, len(universe)-1)).Map(
		func(picks []int) types.LabelSet {
			s := types.NewLabelSet()
			for _, i := range picks {
				s.Add(universe[i])
			}
			return s
		})
}

func TestDerivationProperties(t *testing.T) {
	snap := buildSnapshot(t, propertyRecords())

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("derivation is deterministic", prop.ForAll(
		func(assigned types.LabelSet) bool {
			first := snap.compute(assigned)
			second := snap.compute(assigned)
			return first.effective.Equal(second.effective)
		},
		genAssignment(),
	))

	properties.Property("known assignments are kept", prop.ForAll(
		func(assigned types.LabelSet) bool {
			eff := snap.compute(assigned).effective
			for id := range assigned {
				if snap.Graph().Contains(id) && !eff.Has(id) {
					return false
				}
			}
			return true
		},
		genAssignment(),
	))

	properties.Property("ancestors of held labels are held", prop.ForAll(
		func(assigned types.LabelSet) bool {
			eff := snap.compute(assigned).effective
			for id := range eff {
				for ancestor := range snap.Graph().Ancestors(id) {
					if !eff.Has(ancestor) {
						return false
					}
				}
			}
			return true
		},
		genAssignment(),
	))

	properties.Property("rule labels match their expressions", prop.ForAll(
		func(assigned types.LabelSet) bool {
			eff := snap.compute(assigned).effective
			for _, label := range snap.Rules().Labels() {
				r, _ := snap.Rules().Get(label)
				if eff.Has(label) != rule.EvalSet(r.Expr, eff) {
					return false
				}
			}
			return true
		},
		genAssignment(),
	))

	properties.Property("positive rules are monotone", prop.ForAll(
		func(smaller, extra types.LabelSet) bool {
			larger := smaller.Union(extra)
			effSmall := snap.compute(smaller).effective
			effLarge := snap.compute(larger).effective
			for id := range effSmall {
				if !effLarge.Has(id) {
					return false
				}
			}
			return true
		},
		genAssignment(),
		genAssignment(),
	))

	properties.Property("unknown labels never appear", prop.ForAll(
		func(assigned types.LabelSet) bool {
			eff := snap.compute(assigned).effective
			for id := range eff {
				if !snap.Graph().Contains(id) {
					return false
				}
			}
			return true
		},
		genAssignment(),
	))

	properties.TestingRun(t)
}
