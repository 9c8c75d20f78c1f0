// Package metric provides the platform-level Prometheus metrics for
// labelgraph: reload outcomes, propagation engine activity, and delta
// publication counters.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics
type Metrics struct {
	// Reload metrics
	ReloadsTotal      *prometheus.CounterVec
	ReloadErrors      prometheus.Gauge
	SnapshotTimestamp prometheus.Gauge
	LabelCount        prometheus.Gauge
	RuleCount         prometheus.Gauge
	AreaCount         prometheus.Gauge

	// Propagation engine metrics
	RecomputesTotal      *prometheus.CounterVec
	FixedPointIterations prometheus.Histogram
	RuleContradictions   prometheus.Counter
	CacheHits            prometheus.Counter
	CacheMisses          prometheus.Counter

	// Coordinator metrics
	EventsTotal     *prometheus.CounterVec
	DeltasPublished prometheus.Counter
	AreaAmbiguities prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labelgraph",
				Subsystem: "reload",
				Name:      "total",
				Help:      "Total number of configuration reloads by outcome",
			},
			[]string{"outcome"},
		),

		ReloadErrors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "labelgraph",
				Subsystem: "reload",
				Name:      "errors",
				Help:      "Number of configuration errors in the last rejected reload",
			},
		),

		SnapshotTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "labelgraph",
				Subsystem: "snapshot",
				Name:      "timestamp_seconds",
				Help:      "Unix time at which the active snapshot was published",
			},
		),

		LabelCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "labelgraph",
				Subsystem: "snapshot",
				Name:      "labels",
				Help:      "Number of labels in the active snapshot",
			},
		),

		RuleCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "labelgraph",
				Subsystem: "snapshot",
				Name:      "rules",
				Help:      "Number of rule-derived labels in the active snapshot",
			},
		),

		AreaCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "labelgraph",
				Subsystem: "snapshot",
				Name:      "areas",
				Help:      "Number of area-flagged labels in the active snapshot",
			},
		),

		RecomputesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labelgraph",
				Subsystem: "engine",
				Name:      "recomputes_total",
				Help:      "Total number of effective label set computations",
			},
			[]string{"kind"},
		),

		FixedPointIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "labelgraph",
				Subsystem: "engine",
				Name:      "fixed_point_iterations",
				Help:      "Iterations needed to reach the effective set fixed point",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
		),

		RuleContradictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "labelgraph",
				Subsystem: "engine",
				Name:      "rule_contradictions_total",
				Help:      "Rule evaluations flagged as contradictions and pinned false",
			},
		),

		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "labelgraph",
				Subsystem: "engine",
				Name:      "cache_hits_total",
				Help:      "Effective set lookups served from the snapshot cache",
			},
		),

		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "labelgraph",
				Subsystem: "engine",
				Name:      "cache_misses_total",
				Help:      "Effective set lookups that required recomputation",
			},
		),

		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labelgraph",
				Subsystem: "coordinator",
				Name:      "events_total",
				Help:      "Change events processed by the coordinator",
			},
			[]string{"type"},
		),

		DeltasPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "labelgraph",
				Subsystem: "coordinator",
				Name:      "deltas_published_total",
				Help:      "Per-subject effective label deltas published to subscribers",
			},
		),

		AreaAmbiguities: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "labelgraph",
				Subsystem: "area",
				Name:      "ambiguities_total",
				Help:      "Entities holding multiple mutually non-ancestral area labels",
			},
		),
	}
}

// collectors returns every metric for bulk registration.
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ReloadsTotal,
		m.ReloadErrors,
		m.SnapshotTimestamp,
		m.LabelCount,
		m.RuleCount,
		m.AreaCount,
		m.RecomputesTotal,
		m.FixedPointIterations,
		m.RuleContradictions,
		m.CacheHits,
		m.CacheMisses,
		m.EventsTotal,
		m.DeltasPublished,
		m.AreaAmbiguities,
	}
}
