package engine

import (
	"github.com/arturpragacz/labelgraph/rule"
	"github.com/arturpragacz/labelgraph/types"
)

// computeResult is the outcome of one effective-set derivation.
type computeResult struct {
	effective  types.LabelSet
	iterations int
	// contradictions holds rule labels whose expressions never
	// stabilized for this subject and were pinned permanently false.
	contradictions []types.LabelID
}

// compute derives the effective label set for a subject with the given
// direct assignment:
//
//	effective = assigned
//	          ∪ ancestors of every held label
//	          ∪ every rule label whose expression is true against effective
//
// The derivation iterates to a fixed point, bounded by the label count.
// Monotone rule sets always converge; a rule that cannot settle (for
// example one requiring its own absence) is pinned false for this
// subject and reported as a contradiction, and the derivation restarts
// without it. Each restart removes at least one rule, so the whole
// computation is bounded by labels × rules.
//
// compute reads only immutable snapshot state and is safe to call from
// any goroutine.
func (s *Snapshot) compute(assigned types.LabelSet) computeResult {
	base := s.graph.Closure(assigned)
	if s.rules.Len() == 0 {
		return computeResult{effective: base, iterations: 1}
	}

	pinned := types.NewLabelSet()
	maxRounds := s.graph.Len() + 1
	ruleLabels := s.rules.Labels()
	iterations := 0

	for attempt := 0; attempt <= len(ruleLabels); attempt++ {
		active := types.NewLabelSet()
		effective := base
		var unstable types.LabelSet

		stable := false
		for round := 0; round < maxRounds; round++ {
			iterations++

			next := types.NewLabelSet()
			for _, label := range ruleLabels {
				if pinned.Has(label) {
					continue
				}
				r, _ := s.rules.Get(label)
				if rule.EvalSet(r.Expr, effective) {
					next.Add(label)
				}
			}

			if next.Equal(active) {
				stable = true
				break
			}

			unstable = next.Diff(active).Union(active.Diff(next))
			active = next
			effective = s.graph.Closure(base.Union(active))
		}

		if stable {
			return computeResult{
				effective:      effective,
				iterations:     iterations,
				contradictions: pinned.Sorted(),
			}
		}

		// The last labels still flipping when the iteration cap was hit
		// are the contradiction set for this subject.
		pinned.AddAll(unstable)
	}

	// Every rule pinned: only the structural closure remains.
	return computeResult{
		effective:      base,
		iterations:     iterations,
		contradictions: pinned.Sorted(),
	}
}
