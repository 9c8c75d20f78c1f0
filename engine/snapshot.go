// Package engine implements the label propagation engine: the component
// that derives, for every entity and device, its complete effective
// label set from direct assignments, the label hierarchy, and the rule
// set, via a bounded fixed-point computation.
//
// The engine follows an immutable-snapshot-plus-atomic-swap discipline:
// each configuration reload produces a brand-new Snapshot (graph, rules,
// areas, result cache) that is published atomically, so concurrent
// readers never observe a torn mix of old and new state. Per-subject
// computation is side-effect-free and may run on any goroutine holding a
// snapshot.
package engine

import (
	"sync"
	"time"

	"github.com/arturpragacz/labelgraph/errors"
	"github.com/arturpragacz/labelgraph/graph"
	"github.com/arturpragacz/labelgraph/pkg/cache"
	"github.com/arturpragacz/labelgraph/rule"
	"github.com/arturpragacz/labelgraph/types"
)

// AssignmentSource is the engine's read-only view of the host
// platform's registries: direct label assignments and device ownership.
type AssignmentSource interface {
	// Assigned returns the direct assignment of a subject; for entities
	// this already includes the owning device's labels.
	Assigned(subject types.Subject) types.LabelSet

	// EntityLabels returns an entity's own direct labels, without the
	// device contribution. Used for UI display of assign labels.
	EntityLabels(id types.EntityID) types.LabelSet

	// OwnerDevice returns the device owning an entity, if any.
	OwnerDevice(entity types.EntityID) (types.DeviceID, bool)

	// EntitiesOf returns every entity owned by a device.
	EntitiesOf(device types.DeviceID) []types.EntityID

	// Entities and Devices enumerate the known subjects, for inverse
	// label queries.
	Entities() []types.EntityID
	Devices() []types.DeviceID
}

// Snapshot is one immutable configuration generation: the label graph,
// the rule set, and the area flags, together with the effective-set
// cache and inverse index for that generation. The cache is internally
// synchronized; everything else is read-only after construction.
type Snapshot struct {
	graph *graph.Graph
	rules *rule.Set
	areas types.LabelSet

	createdAt time.Time

	results cache.Cache[types.LabelSet]
	index   *inverseIndex

	epochMu sync.Mutex
	epochs  map[string]uint64
}

// NewSnapshot builds a snapshot around an already-validated graph, rule
// set, and area flag set. Area flags referencing labels missing from
// the graph are dropped, matching the consistency rule for assignments.
func NewSnapshot(g *graph.Graph, rules *rule.Set, areas types.LabelSet) *Snapshot {
	kept := types.NewLabelSet()
	for id := range areas {
		if g.Contains(id) && !types.IsSpecialID(id) {
			kept.Add(id)
		}
	}

	return &Snapshot{
		graph:     g,
		rules:     rules,
		areas:     kept,
		createdAt: time.Now(),
		results:   cache.NewSimple[types.LabelSet](),
		index:     newInverseIndex(),
		epochs:    make(map[string]uint64),
	}
}

// EmptySnapshot returns a snapshot with no labels, rules, or areas.
// It serves queries before the first configuration load.
func EmptySnapshot() *Snapshot {
	var diags errors.Diagnostics
	g := graph.Build(nil, &diags)
	rules, _ := rule.BuildSet(nil, g, &diags)
	return NewSnapshot(g, rules, nil)
}

// Graph returns the snapshot's label graph.
func (s *Snapshot) Graph() *graph.Graph {
	return s.graph
}

// Rules returns the snapshot's rule set.
func (s *Snapshot) Rules() *rule.Set {
	return s.rules
}

// Areas returns the area-flagged labels of this snapshot.
func (s *Snapshot) Areas() types.LabelSet {
	return s.areas.Clone()
}

// IsArea reports whether the label is area-flagged.
func (s *Snapshot) IsArea(id types.LabelID) bool {
	return s.areas.Has(id)
}

// CreatedAt returns the snapshot publication time.
func (s *Snapshot) CreatedAt() time.Time {
	return s.createdAt
}

// CacheStats exposes the result cache statistics.
func (s *Snapshot) CacheStats() *cache.Statistics {
	return s.results.Stats()
}

// resultEpoch returns the invalidation generation of a subject's cache
// slot. A computation reads the epoch before touching the assignment
// source and hands it back to storeResult.
func (s *Snapshot) resultEpoch(key string) uint64 {
	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	return s.epochs[key]
}

// storeResult installs a computed effective set, unless the subject was
// invalidated after the computation started. A reader can read the
// assignment source, lose the CPU to the coordinator's mutation and
// invalidation, and only then reach the cache; without the epoch check
// its stale result would be cached until the next reload. Reports
// whether the result was accepted.
func (s *Snapshot) storeResult(subject types.Subject, epoch uint64, effective types.LabelSet) bool {
	key := subject.String()

	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	if s.epochs[key] != epoch {
		return false
	}
	s.results.Set(key, effective)
	s.index.update(subject, effective)
	return true
}

// invalidate drops a subject's cached result and advances its epoch so
// any in-flight computation for the old state is discarded on arrival.
func (s *Snapshot) invalidate(subject types.Subject) {
	key := subject.String()

	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	s.epochs[key]++
	s.results.Delete(key)
	s.index.remove(subject)
}

// inverseIndex maps labels to the subjects whose cached effective set
// contains them. It is maintained alongside the result cache and
// rebuilt incrementally as entries are computed or invalidated.
type inverseIndex struct {
	mu        sync.RWMutex
	bySubject map[string]types.LabelSet
	byLabel   map[types.LabelID]map[string]types.Subject
}

func newInverseIndex() *inverseIndex {
	return &inverseIndex{
		bySubject: make(map[string]types.LabelSet),
		byLabel:   make(map[types.LabelID]map[string]types.Subject),
	}
}

// update replaces the index entry for a subject with its new effective
// set.
func (ix *inverseIndex) update(subject types.Subject, effective types.LabelSet) {
	key := subject.String()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.bySubject[key]; ok {
		for label := range old {
			delete(ix.byLabel[label], key)
		}
	}
	ix.bySubject[key] = effective
	for label := range effective {
		if ix.byLabel[label] == nil {
			ix.byLabel[label] = make(map[string]types.Subject)
		}
		ix.byLabel[label][key] = subject
	}
}

// remove drops a subject from the index.
func (ix *inverseIndex) remove(subject types.Subject) {
	key := subject.String()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.bySubject[key]; ok {
		for label := range old {
			delete(ix.byLabel[label], key)
		}
		delete(ix.bySubject, key)
	}
}

// holders returns the indexed subjects whose effective set contains the
// label.
func (ix *inverseIndex) holders(label types.LabelID) []types.Subject {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]types.Subject, 0, len(ix.byLabel[label]))
	for _, subject := range ix.byLabel[label] {
		out = append(out, subject)
	}
	return out
}
