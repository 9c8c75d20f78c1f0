package types

import (
	"slices"
)

// LabelSet is a set of label identifiers. The zero value is an empty,
// read-only set; use NewLabelSet or Add to build a populated one.
type LabelSet map[LabelID]struct{}

// NewLabelSet builds a set from the given ids.
func NewLabelSet(ids ...LabelID) LabelSet {
	s := make(LabelSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether the set contains id.
func (s LabelSet) Has(id LabelID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether it was newly added.
func (s LabelSet) Add(id LabelID) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// AddAll inserts every id from other and reports whether anything changed.
func (s LabelSet) AddAll(other LabelSet) bool {
	changed := false
	for id := range other {
		if s.Add(id) {
			changed = true
		}
	}
	return changed
}

// Delete removes id from the set.
func (s LabelSet) Delete(id LabelID) {
	delete(s, id)
}

// Len returns the number of labels in the set.
func (s LabelSet) Len() int {
	return len(s)
}

// Clone returns an independent copy of the set.
func (s LabelSet) Clone() LabelSet {
	out := make(LabelSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Union returns a new set holding every label from s and other.
func (s LabelSet) Union(other LabelSet) LabelSet {
	out := make(LabelSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Intersect returns a new set holding labels present in both sets.
func (s LabelSet) Intersect(other LabelSet) LabelSet {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	out := make(LabelSet)
	for id := range small {
		if big.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold exactly the same labels.
func (s LabelSet) Equal(other LabelSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// IsDisjoint reports whether the sets share no label.
func (s LabelSet) IsDisjoint(other LabelSet) bool {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	for id := range small {
		if big.Has(id) {
			return false
		}
	}
	return true
}

// Sorted returns the labels in lexicographic order, for deterministic
// output in events, logs, and tests.
func (s LabelSet) Sorted() []LabelID {
	out := make([]LabelID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Diff returns the labels present in s but not in other.
func (s LabelSet) Diff(other LabelSet) LabelSet {
	out := make(LabelSet)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}
