package rule

import (
	stderrors "errors"
	"fmt"
	"slices"

	"github.com/arturpragacz/labelgraph/errors"
	"github.com/arturpragacz/labelgraph/types"
)

// Resolver maps a raw label reference (identifier or display name) to a
// label identifier. The graph package provides the canonical
// implementation; ambiguous is true when resolution fell back to a name
// shared by several labels.
type Resolver interface {
	Resolve(ref string) (id types.LabelID, ambiguous bool, err error)
}

// Rule is one derived label: the label produced when Expr evaluates true
// against a subject's effective set.
type Rule struct {
	Label  types.LabelID
	Expr   Expr
	Refs   types.LabelSet // resolved labels the expression mentions
	Source string         // original expression text, for diagnostics
}

// Set holds every parsed and resolved rule, keyed by the derived label.
// A Set is immutable once built; reload builds a new one.
type Set struct {
	rules      map[types.LabelID]*Rule
	dependents map[types.LabelID][]types.LabelID // referenced label -> rule labels
}

// BuildSet parses and resolves rule expressions from configuration
// records. Rule syntax errors and references to unknown labels are fatal
// and collected into diags; name-based references that are ambiguous
// resolve to a stable pick and produce a warning instead.
//
// The resolver must already know every label of the reload, so name
// references resolve against the full new label universe.
func BuildSet(records []types.LabelRecord, resolver Resolver, diags *errors.Diagnostics) (*Set, []string) {
	s := &Set{
		rules:      make(map[types.LabelID]*Rule),
		dependents: make(map[types.LabelID][]types.LabelID),
	}
	var warnings []string

	for _, rec := range records {
		if rec.Rule == "" || types.IsSpecialID(rec.ID) {
			continue
		}

		expr, err := Parse(rec.Rule)
		if err != nil {
			diags.Add(fmt.Errorf("rule for label %q: %w", rec.ID, err))
			continue
		}

		before := len(diags.Errors())
		warnings = append(warnings, resolveRefs(expr, rec.ID, resolver, diags)...)
		if len(diags.Errors()) > before {
			continue
		}

		s.rules[rec.ID] = &Rule{
			Label:  rec.ID,
			Expr:   expr,
			Refs:   References(expr),
			Source: rec.Rule,
		}
	}

	for label, r := range s.rules {
		for ref := range r.Refs {
			s.dependents[ref] = append(s.dependents[ref], label)
		}
	}

	warnings = append(warnings, s.negationCycleWarnings()...)

	return s, warnings
}

// negationCycleWarnings reports rule dependency cycles that pass through
// a negated expression. A purely positive cycle settles at a fixed
// point, but a cycle crossing a negation can oscillate and end up pinned
// false per subject, so it is worth a warning at load time.
func (s *Set) negationCycleWarnings() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[types.LabelID]int, len(s.rules))

	var warnings []string
	var stack []types.LabelID

	var visit func(label types.LabelID)
	visit = func(label types.LabelID) {
		color[label] = gray
		stack = append(stack, label)

		for _, dep := range s.Dependents(label) {
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				start := slices.Index(stack, dep)
				cycle := append(slices.Clone(stack[start:]), dep)
				if cycleHasNegation(s, cycle) {
					warnings = append(warnings, fmt.Sprintf(
						"rule cycle through negation may not stabilize: %v", cycle))
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[label] = black
	}

	for _, label := range s.Labels() {
		if color[label] == white {
			visit(label)
		}
	}
	return warnings
}

func cycleHasNegation(s *Set, cycle []types.LabelID) bool {
	for _, label := range cycle {
		if r, ok := s.rules[label]; ok && IsNegated(r.Expr) {
			return true
		}
	}
	return false
}

// resolveRefs rewrites every predicate's reference to a stable label
// identifier, so runtime evaluation never does name lookup.
func resolveRefs(expr Expr, ruleLabel types.LabelID, resolver Resolver, diags *errors.Diagnostics) []string {
	var warnings []string

	var walk func(e Expr)
	walk = func(e Expr) {
		switch node := e.(type) {
		case *Predicate:
			id, ambiguous, err := resolver.Resolve(node.Ref)
			switch {
			case err != nil && !ambiguous:
				diags.Add(fmt.Errorf("rule for label %q: %w", ruleLabel, err))
			case ambiguous:
				warnings = append(warnings, fmt.Sprintf(
					"rule for label %q: reference %q is ambiguous, using %q",
					ruleLabel, node.Ref, id))
				node.Label = id
			default:
				node.Label = id
			}
		case *And:
			walk(node.Left)
			walk(node.Right)
		case *Or:
			walk(node.Left)
			walk(node.Right)
		case *Not:
			walk(node.Expr)
		}
	}
	walk(expr)

	return warnings
}

// Get returns the rule deriving the given label.
func (s *Set) Get(label types.LabelID) (*Rule, bool) {
	r, ok := s.rules[label]
	return r, ok
}

// Len returns the number of rules in the set.
func (s *Set) Len() int {
	return len(s.rules)
}

// Labels returns every derived label in lexicographic order.
func (s *Set) Labels() []types.LabelID {
	ids := make(types.LabelSet, len(s.rules))
	for id := range s.rules {
		ids.Add(id)
	}
	return ids.Sorted()
}

// Dependents returns the rule labels whose expressions reference the
// given label. The load-time cycle check walks these edges.
func (s *Set) Dependents(label types.LabelID) []types.LabelID {
	return s.dependents[label]
}

// IsMalformed reports whether err stems from rule parsing, as opposed to
// reference resolution.
func IsMalformed(err error) bool {
	return stderrors.Is(err, errors.ErrMalformedRule)
}
