package engine

import (
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/arturpragacz/labelgraph/metric"
	"github.com/arturpragacz/labelgraph/types"
)

// Engine answers effective-label queries against the current snapshot.
// A single writer publishes snapshots through Publish; any number of
// readers query concurrently. Query results are memoized per snapshot
// and invalidated when direct assignments change.
type Engine struct {
	source  AssignmentSource
	logger  *slog.Logger
	metrics *metric.Metrics

	snapshot atomic.Pointer[Snapshot]
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches Prometheus instrumentation to the engine.
func WithMetrics(m *metric.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over the given assignment source. The engine
// starts with an empty snapshot so queries are valid before the first
// configuration load completes.
func New(source AssignmentSource, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		source: source,
		logger: logger.With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.snapshot.Store(EmptySnapshot())
	return e
}

// Publish atomically replaces the current snapshot. In-flight readers
// keep the snapshot they started with.
func (e *Engine) Publish(snap *Snapshot) {
	e.snapshot.Store(snap)
	if e.metrics != nil {
		e.metrics.SnapshotTimestamp.Set(float64(snap.CreatedAt().Unix()))
		e.metrics.LabelCount.Set(float64(snap.Graph().Len()))
		e.metrics.RuleCount.Set(float64(snap.Rules().Len()))
		e.metrics.AreaCount.Set(float64(len(snap.Areas())))
	}
	e.logger.Info("snapshot published",
		"labels", snap.Graph().Len(),
		"rules", snap.Rules().Len(),
		"areas", len(snap.Areas()))
}

// Current returns the active snapshot.
func (e *Engine) Current() *Snapshot {
	return e.snapshot.Load()
}

// EffectiveLabels returns the full derived label set for a subject:
// its direct assignments, labels inherited from an owning device,
// every ancestor of a held label, and every rule label whose
// expression holds. Unknown subjects yield an empty set.
func (e *Engine) EffectiveLabels(subject types.Subject) types.LabelSet {
	return e.effectiveOn(e.snapshot.Load(), subject)
}

func (e *Engine) effectiveOn(snap *Snapshot, subject types.Subject) types.LabelSet {
	key := subject.String()
	if cached, ok := snap.results.Get(key); ok {
		if e.metrics != nil {
			e.metrics.CacheHits.Inc()
		}
		return cached.Clone()
	}
	if e.metrics != nil {
		e.metrics.CacheMisses.Inc()
	}

	epoch := snap.resultEpoch(key)
	assigned := e.source.Assigned(subject)
	res := snap.compute(assigned)

	if e.metrics != nil {
		e.metrics.RecomputesTotal.WithLabelValues(string(subject.Kind)).Inc()
		e.metrics.FixedPointIterations.Observe(float64(res.iterations))
	}
	if len(res.contradictions) > 0 {
		if e.metrics != nil {
			e.metrics.RuleContradictions.Add(float64(len(res.contradictions)))
		}
		e.logger.Warn("rule contradiction: expressions pinned false",
			"subject", key,
			"labels", res.contradictions)
	}

	snap.storeResult(subject, epoch, res.effective)
	return res.effective.Clone()
}

// DirectLabels returns only the labels assigned directly to an entity,
// without device inheritance, ancestry, or rule derivation. This is the
// set the assignment editor operates on.
func (e *Engine) DirectLabels(entity types.EntityID) types.LabelSet {
	return e.source.EntityLabels(entity)
}

// FrontendLabels returns the label list exposed to user interfaces for
// an entity: the effective set plus an assign-prefixed alias for each
// directly assigned label, so edits round-trip through the direct
// store instead of fighting derived labels.
func (e *Engine) FrontendLabels(entity types.EntityID) []types.LabelID {
	subject := types.EntitySubject(entity)
	effective := e.EffectiveLabels(subject)
	direct := e.source.EntityLabels(entity)

	out := effective.Sorted()
	for _, id := range direct.Sorted() {
		out = append(out, types.AddAssignID(id))
	}
	return out
}

// LabelEntities returns every entity whose effective set contains the
// label, sorted. The walk forces computation for all known entities so
// the inverse index is complete before it is read.
func (e *Engine) LabelEntities(label types.LabelID) []types.EntityID {
	snap := e.snapshot.Load()
	for _, id := range e.source.Entities() {
		e.effectiveOn(snap, types.EntitySubject(id))
	}
	var out []types.EntityID
	for _, subject := range snap.index.holders(label) {
		if subject.Kind == types.SubjectEntity {
			out = append(out, types.EntityID(subject.ID))
		}
	}
	sortIDs(out)
	return out
}

// LabelDevices returns every device whose effective set contains the
// label, sorted.
func (e *Engine) LabelDevices(label types.LabelID) []types.DeviceID {
	snap := e.snapshot.Load()
	for _, id := range e.source.Devices() {
		e.effectiveOn(snap, types.DeviceSubject(id))
	}
	var out []types.DeviceID
	for _, subject := range snap.index.holders(label) {
		if subject.Kind == types.SubjectDevice {
			out = append(out, types.DeviceID(subject.ID))
		}
	}
	sortIDs(out)
	return out
}

// InvalidateEntity drops the memoized result for one entity after its
// direct assignments change. The next query recomputes.
func (e *Engine) InvalidateEntity(entity types.EntityID) {
	e.invalidate(types.EntitySubject(entity))
}

// InvalidateDevice drops the memoized result for a device and for every
// entity that inherits from it.
func (e *Engine) InvalidateDevice(device types.DeviceID) {
	e.invalidate(types.DeviceSubject(device))
	for _, entity := range e.source.EntitiesOf(device) {
		e.invalidate(types.EntitySubject(entity))
	}
}

// RemoveSubject forgets a subject entirely, for registry removals.
func (e *Engine) RemoveSubject(subject types.Subject) {
	e.invalidate(subject)
}

func (e *Engine) invalidate(subject types.Subject) {
	e.snapshot.Load().invalidate(subject)
}

func sortIDs[T ~string](ids []T) {
	slices.Sort(ids)
}
