// Package graph implements the label hierarchy: a directed graph over
// label identifiers encoding parent/child relationships, with ancestor
// closure queries and cycle detection over the parent edges.
//
// A Graph is immutable once built. Configuration reload builds a brand-new
// Graph; readers holding the old one keep a consistent view.
package graph

import (
	"fmt"

	"github.com/arturpragacz/labelgraph/errors"
	"github.com/arturpragacz/labelgraph/types"
)

// Label is one node of the label hierarchy.
type Label struct {
	ID      types.LabelID
	Name    string
	Parents []types.LabelID
	Aliases []string

	// ancestors is the transitive closure over parent edges, excluding
	// the label itself. Computed once at build time.
	ancestors types.LabelSet
}

// Graph is the label hierarchy. The zero value is unusable; use Build.
type Graph struct {
	labels map[types.LabelID]*Label
	byName map[string][]types.LabelID // normalized name -> ids
}

// Build constructs a Graph from configuration records, collecting every
// configuration error into diags: duplicate identifiers, dangling parent
// references, and cycles in the parent relation. The returned graph is
// only meaningful when diags has no errors.
//
// Records with reserved (colon-containing) identifiers are ignored, and
// reserved parent references are dropped, matching how the platform hides
// its virtual assign: labels from the hierarchy.
func Build(records []types.LabelRecord, diags *errors.Diagnostics) *Graph {
	g := &Graph{
		labels: make(map[types.LabelID]*Label, len(records)),
		byName: make(map[string][]types.LabelID),
	}

	for _, rec := range records {
		if types.IsSpecialID(rec.ID) {
			continue
		}
		if _, ok := g.labels[rec.ID]; ok {
			diags.Addf(errors.ErrInvalidConfig, "label %q defined twice", rec.ID)
			continue
		}

		name := rec.Name
		if name == "" {
			name = string(rec.ID)
		}

		label := &Label{ID: rec.ID, Name: name, Aliases: rec.Aliases}
		for _, parent := range rec.Parents {
			if parent == rec.ID || types.IsSpecialID(parent) {
				continue
			}
			label.Parents = append(label.Parents, parent)
		}

		g.labels[rec.ID] = label
		norm := types.NormalizeName(name)
		g.byName[norm] = append(g.byName[norm], rec.ID)
	}

	for _, label := range g.labels {
		for _, parent := range label.Parents {
			if _, ok := g.labels[parent]; !ok {
				diags.Addf(errors.ErrDanglingLabel,
					"label %q references unknown parent %q", label.ID, parent)
			}
		}
	}
	if diags.HasErrors() {
		return g
	}

	if cycle := g.findCycle(); cycle != nil {
		diags.Addf(errors.ErrParentCycle, "parent cycle %v", cycle)
		return g
	}

	g.computeAncestry()
	return g
}

// findCycle runs a three-color depth-first traversal over the parent
// edges and returns one cycle path if any exists, nil otherwise.
func (g *Graph) findCycle() []types.LabelID {
	const (
		white = 0 // not visited
		gray  = 1 // visiting
		black = 2 // visited
	)
	color := make(map[types.LabelID]int, len(g.labels))

	var stack []types.LabelID
	var visit func(id types.LabelID) []types.LabelID
	visit = func(id types.LabelID) []types.LabelID {
		color[id] = gray
		stack = append(stack, id)

		for _, parent := range g.labels[id].Parents {
			switch color[parent] {
			case white:
				if cycle := visit(parent); cycle != nil {
					return cycle
				}
			case gray:
				// Slice the current path from the first occurrence of
				// parent to close the loop.
				for i, on := range stack {
					if on == parent {
						return append(append([]types.LabelID{}, stack[i:]...), parent)
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, id := range g.SortedIDs() {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// computeAncestry fills in the transitive ancestor closure for every
// label. Requires the parent relation to be acyclic.
func (g *Graph) computeAncestry() {
	var resolve func(label *Label) types.LabelSet
	resolve = func(label *Label) types.LabelSet {
		if label.ancestors != nil {
			return label.ancestors
		}
		// Mark before recursing so diamond shapes are computed once.
		label.ancestors = types.NewLabelSet()
		for _, parentID := range label.Parents {
			parent := g.labels[parentID]
			label.ancestors.Add(parentID)
			label.ancestors.AddAll(resolve(parent))
		}
		return label.ancestors
	}

	for _, label := range g.labels {
		resolve(label)
	}
}

// Contains reports whether the label exists in the graph.
func (g *Graph) Contains(id types.LabelID) bool {
	_, ok := g.labels[id]
	return ok
}

// Len returns the number of labels in the graph.
func (g *Graph) Len() int {
	return len(g.labels)
}

// Name returns the display name of a label, or the empty string if the
// label is unknown.
func (g *Graph) Name(id types.LabelID) string {
	if label, ok := g.labels[id]; ok {
		return label.Name
	}
	return ""
}

// Aliases returns the configured aliases of a label.
func (g *Graph) Aliases(id types.LabelID) []string {
	if label, ok := g.labels[id]; ok {
		return label.Aliases
	}
	return nil
}

// Parents returns the direct parents of a label. Unknown labels have no
// parents.
func (g *Graph) Parents(id types.LabelID) []types.LabelID {
	if label, ok := g.labels[id]; ok {
		return label.Parents
	}
	return nil
}

// Ancestors returns the transitive ancestors of a label, excluding the
// label itself. Unknown labels yield an empty set.
func (g *Graph) Ancestors(id types.LabelID) types.LabelSet {
	if label, ok := g.labels[id]; ok {
		return label.ancestors.Clone()
	}
	return types.NewLabelSet()
}

// IsAncestor reports whether ancestor is a (transitive) ancestor of id.
func (g *Graph) IsAncestor(ancestor, id types.LabelID) bool {
	label, ok := g.labels[id]
	if !ok {
		return false
	}
	return label.ancestors.Has(ancestor)
}

// Closure returns the given labels together with all of their ancestors.
// Labels unknown to the graph are dropped, so the result is always
// consistent with the current label universe even when an assignment
// still references a removed label.
func (g *Graph) Closure(ids types.LabelSet) types.LabelSet {
	out := make(types.LabelSet, len(ids))
	for id := range ids {
		label, ok := g.labels[id]
		if !ok {
			continue
		}
		out.Add(id)
		out.AddAll(label.ancestors)
	}
	return out
}

// SortedIDs returns every label identifier in lexicographic order.
func (g *Graph) SortedIDs() []types.LabelID {
	ids := make(types.LabelSet, len(g.labels))
	for id := range g.labels {
		ids.Add(id)
	}
	return ids.Sorted()
}

// Resolve maps a label reference to its identifier. An exact identifier
// match always wins; otherwise the reference is matched against display
// names (normalized). A name shared by several labels is ambiguous: the
// lexicographically first identifier is chosen and ambiguous is true so
// the caller can surface a warning.
func (g *Graph) Resolve(ref string) (id types.LabelID, ambiguous bool, err error) {
	if _, ok := g.labels[types.LabelID(ref)]; ok {
		return types.LabelID(ref), false, nil
	}

	candidates := g.byName[types.NormalizeName(ref)]
	switch len(candidates) {
	case 0:
		return "", false, fmt.Errorf("label reference %q: %w", ref, errors.ErrUnknownLabel)
	case 1:
		return candidates[0], false, nil
	default:
		first := candidates[0]
		for _, c := range candidates[1:] {
			if c < first {
				first = c
			}
		}
		return first, true, fmt.Errorf("label name %q matches %d labels: %w",
			ref, len(candidates), errors.ErrAmbiguousName)
	}
}
