// Package area presents the area-flagged subset of the label hierarchy
// to legacy area-based consumers as if it were a native area tree. It
// adds no semantics of its own: area membership is exactly effective
// label membership, and the area hierarchy is the label graph
// restricted to area-flagged labels.
package area

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/arturpragacz/labelgraph/engine"
	"github.com/arturpragacz/labelgraph/metric"
	"github.com/arturpragacz/labelgraph/types"
)

// TieBreak selects the primary area when a subject holds several
// mutually non-ancestral area labels.
type TieBreak string

const (
	// TieBreakID picks the lexicographically smallest identifier.
	TieBreakID TieBreak = "id"
	// TieBreakName picks the smallest display name, then identifier.
	TieBreakName TieBreak = "name"
)

// Layer answers emulated-area queries on top of the propagation engine.
type Layer struct {
	engine   *engine.Engine
	logger   *slog.Logger
	metrics  *metric.Metrics
	tieBreak TieBreak
}

// Option configures a Layer.
type Option func(*Layer)

// WithTieBreak overrides the primary-area tie break heuristic.
func WithTieBreak(tb TieBreak) Option {
	return func(l *Layer) { l.tieBreak = tb }
}

// WithMetrics attaches Prometheus instrumentation to the layer.
func WithMetrics(m *metric.Metrics) Option {
	return func(l *Layer) { l.metrics = m }
}

// New creates an area layer over the engine.
func New(eng *engine.Engine, logger *slog.Logger, opts ...Option) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Layer{
		engine:   eng,
		logger:   logger.With("component", "area"),
		tieBreak: TieBreakID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Area is one emulated area entry as exposed to legacy consumers.
type Area struct {
	ID      types.LabelID `json:"id"`
	Name    string        `json:"name"`
	Parent  types.LabelID `json:"parent,omitempty"`
	Aliases []string      `json:"aliases,omitempty"`
}

// Areas returns every emulated area in the current snapshot, sorted by
// identifier. Each area's parent is its nearest area-flagged ancestor.
func (l *Layer) Areas() []Area {
	snap := l.engine.Current()
	g := snap.Graph()
	flagged := snap.Areas()

	out := make([]Area, 0, flagged.Len())
	for _, id := range flagged.Sorted() {
		parent, _ := l.nearestArea(snap, g.Ancestors(id).Intersect(flagged))
		out = append(out, Area{
			ID:      id,
			Name:    g.Name(id),
			Parent:  parent,
			Aliases: g.Aliases(id),
		})
	}
	return out
}

// Hierarchy returns the area tree as child → parent edges. Root areas
// are absent from the map.
func (l *Layer) Hierarchy() map[types.LabelID]types.LabelID {
	out := make(map[types.LabelID]types.LabelID)
	for _, a := range l.Areas() {
		if a.Parent != "" {
			out[a.ID] = a.Parent
		}
	}
	return out
}

// AreasOf returns every area label in the subject's effective set,
// most specific first. Ancestor areas are included, mirroring label
// semantics.
func (l *Layer) AreasOf(subject types.Subject) []types.LabelID {
	snap := l.engine.Current()
	g := snap.Graph()
	held := l.engine.EffectiveLabels(subject).Intersect(snap.Areas())

	out := held.Sorted()
	slices.SortStableFunc(out, func(a, b types.LabelID) int {
		return g.Ancestors(b).Len() - g.Ancestors(a).Len()
	})
	return out
}

// Find resolves an area reference by identifier, display name, or
// alias, using normalized matching. Only area-flagged labels match.
func (l *Layer) Find(ref string) (types.LabelID, bool) {
	snap := l.engine.Current()
	g := snap.Graph()

	if id := types.LabelID(ref); snap.IsArea(id) {
		return id, true
	}

	want := types.NormalizeName(ref)
	for _, id := range snap.Areas().Sorted() {
		if types.NormalizeName(g.Name(id)) == want {
			return id, true
		}
		for _, alias := range g.Aliases(id) {
			if types.NormalizeName(alias) == want {
				return id, true
			}
		}
	}
	return "", false
}

// PrimaryAreaOf returns the subject's emulated area: the most specific
// area label it holds, meaning the one that is not an ancestor of any
// other held area label. Holding several mutually non-ancestral areas
// is a configuration ambiguity: a warning is emitted and the tie break
// heuristic decides. The second return is false when the subject holds
// no area label.
func (l *Layer) PrimaryAreaOf(subject types.Subject) (types.LabelID, bool) {
	snap := l.engine.Current()
	held := l.engine.EffectiveLabels(subject).Intersect(snap.Areas())
	if held.Len() == 0 {
		return "", false
	}

	primary, ambiguous := l.nearestArea(snap, held)
	if ambiguous {
		if l.metrics != nil {
			l.metrics.AreaAmbiguities.Inc()
		}
		l.logger.Warn("subject holds multiple unrelated areas",
			"subject", subject.String(),
			"areas", held.Sorted(),
			"chosen", primary)
	}
	return primary, true
}

// EntitiesInArea expands an area target to the entities it covers.
// Targeting an ancestor area covers every descendant's entities, since
// descendants carry the ancestor in their effective set.
func (l *Layer) EntitiesInArea(area types.LabelID) []types.EntityID {
	if !l.engine.Current().IsArea(area) {
		return nil
	}
	return l.engine.LabelEntities(area)
}

// DevicesInArea expands an area target to the devices it covers.
func (l *Layer) DevicesInArea(area types.LabelID) []types.DeviceID {
	if !l.engine.Current().IsArea(area) {
		return nil
	}
	return l.engine.LabelDevices(area)
}

// nearestArea returns the most specific area among candidates: the one
// that is not an ancestor of any other candidate. It reports whether
// several incomparable candidates tied.
func (l *Layer) nearestArea(snap *engine.Snapshot, candidates types.LabelSet) (types.LabelID, bool) {
	g := snap.Graph()

	var specific []types.LabelID
	for id := range candidates {
		isAncestor := false
		for other := range candidates {
			if other != id && g.IsAncestor(id, other) {
				isAncestor = true
				break
			}
		}
		if !isAncestor {
			specific = append(specific, id)
		}
	}

	switch len(specific) {
	case 0:
		return "", false
	case 1:
		return specific[0], false
	}

	if l.tieBreak == TieBreakName {
		slices.SortFunc(specific, func(a, b types.LabelID) int {
			if c := strings.Compare(g.Name(a), g.Name(b)); c != 0 {
				return c
			}
			return strings.Compare(string(a), string(b))
		})
	} else {
		slices.Sort(specific)
	}
	return specific[0], true
}
