// Package rule implements the boolean label-predicate expressions that
// derive dynamic labels. An expression is a small typed syntax tree over
// label(...) predicates and the AND, OR, NOT connectives, parsed once at
// configuration load and evaluated by a pure recursive interpreter
// against an explicit "currently held labels" set.
package rule

import (
	"fmt"

	"github.com/arturpragacz/labelgraph/types"
)

// Expr is a parsed rule expression node.
type Expr interface {
	// Eval reports whether the expression holds for the given label
	// membership predicate. Evaluation is side-effect free.
	Eval(held func(types.LabelID) bool) bool

	// String renders the expression in canonical source form.
	String() string

	// collectRefs appends every referenced label id to the set.
	collectRefs(refs types.LabelSet)
}

// Predicate is a label(<reference>) term: true iff the referenced label
// is in the effective set being computed. Ref holds the raw reference
// text from configuration; Label holds the resolved identifier.
type Predicate struct {
	Ref   string
	Label types.LabelID
}

// Eval implements Expr.
func (p *Predicate) Eval(held func(types.LabelID) bool) bool {
	return held(p.Label)
}

// String implements Expr.
func (p *Predicate) String() string {
	return fmt.Sprintf("label(%q)", p.Ref)
}

func (p *Predicate) collectRefs(refs types.LabelSet) {
	refs.Add(p.Label)
}

// And is the conjunction of two subexpressions.
type And struct {
	Left, Right Expr
}

// Eval implements Expr.
func (a *And) Eval(held func(types.LabelID) bool) bool {
	return a.Left.Eval(held) && a.Right.Eval(held)
}

// String implements Expr.
func (a *And) String() string {
	return "(" + a.Left.String() + " and " + a.Right.String() + ")"
}

func (a *And) collectRefs(refs types.LabelSet) {
	a.Left.collectRefs(refs)
	a.Right.collectRefs(refs)
}

// Or is the disjunction of two subexpressions.
type Or struct {
	Left, Right Expr
}

// Eval implements Expr.
func (o *Or) Eval(held func(types.LabelID) bool) bool {
	return o.Left.Eval(held) || o.Right.Eval(held)
}

// String implements Expr.
func (o *Or) String() string {
	return "(" + o.Left.String() + " or " + o.Right.String() + ")"
}

func (o *Or) collectRefs(refs types.LabelSet) {
	o.Left.collectRefs(refs)
	o.Right.collectRefs(refs)
}

// Not negates a subexpression.
type Not struct {
	Expr Expr
}

// Eval implements Expr.
func (n *Not) Eval(held func(types.LabelID) bool) bool {
	return !n.Expr.Eval(held)
}

// String implements Expr.
func (n *Not) String() string {
	return "not " + n.Expr.String()
}

func (n *Not) collectRefs(refs types.LabelSet) {
	n.Expr.collectRefs(refs)
}

// References returns every label id the expression mentions. Only valid
// after resolution.
func References(expr Expr) types.LabelSet {
	refs := types.NewLabelSet()
	expr.collectRefs(refs)
	return refs
}

// IsNegated reports whether any predicate in the expression appears under
// an odd number of negations. A dependency cycle through such a rule can
// oscillate instead of stabilizing, so set construction warns about it.
func IsNegated(expr Expr) bool {
	return isNegated(expr, false)
}

func isNegated(expr Expr, under bool) bool {
	switch e := expr.(type) {
	case *Predicate:
		return under
	case *And:
		return isNegated(e.Left, under) || isNegated(e.Right, under)
	case *Or:
		return isNegated(e.Left, under) || isNegated(e.Right, under)
	case *Not:
		return isNegated(e.Expr, !under)
	default:
		return false
	}
}

// EvalSet evaluates the expression against a concrete label set.
func EvalSet(expr Expr, held types.LabelSet) bool {
	return expr.Eval(held.Has)
}
