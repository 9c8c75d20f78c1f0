// Package labelgraph implements hierarchical, rule-driven label
// propagation for home automation platforms.
//
// Labels form a directed acyclic hierarchy: assigning a label to an
// entity or device implies every ancestor label, entities inherit the
// labels of their owning device, and boolean rule expressions derive
// further labels from the ones already held. The effective label set of
// a subject is the fixed point of these three derivations, computed by
// the engine package against an immutable configuration snapshot.
//
// The packages compose as follows:
//
//   - graph: the validated label hierarchy with ancestor closure and
//     cycle detection
//   - rule: the boolean expression grammar, parser, and resolved rule set
//   - registry: the direct assignment store for entities and devices
//   - engine: per-subject fixed point computation, result caching, and
//     inverse label queries over atomic snapshots
//   - area: the area emulation view for legacy area-based consumers
//   - coordinator: the single write path serializing reloads and
//     assignment changes, publishing deltas over NATS
//   - config: the daemon configuration and the YAML labels file loader
//
// cmd/labelgraphd ties these together into a daemon with an HTTP query
// API, Prometheus metrics, health reporting, and NATS event intake.
package labelgraph
