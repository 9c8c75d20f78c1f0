// Package coordinator serializes configuration reloads and assignment
// changes into a single consistent sequence. It owns the only write
// path into the propagation engine: every mutation funnels through one
// processing goroutine, so readers always observe a coherent snapshot
// and deltas are published in a well-defined order.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arturpragacz/labelgraph/engine"
	"github.com/arturpragacz/labelgraph/errors"
	"github.com/arturpragacz/labelgraph/graph"
	"github.com/arturpragacz/labelgraph/metric"
	"github.com/arturpragacz/labelgraph/registry"
	"github.com/arturpragacz/labelgraph/rule"
	"github.com/arturpragacz/labelgraph/types"
)

// LoadFunc supplies parsed configuration records on each reload.
type LoadFunc func(diags *errors.Diagnostics) ([]types.LabelRecord, error)

// Publisher sends notifications to external consumers. It is satisfied
// by natsclient.Client; a nil publisher disables publication.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Coordinator applies reloads and assignment changes one at a time and
// republishes affected subjects' new effective label sets.
type Coordinator struct {
	engine  *engine.Engine
	store   *registry.Store
	load    LoadFunc
	logger  *slog.Logger
	metrics *metric.Metrics

	publisher Publisher
	prefix    string

	events  chan event
	done    chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher enables delta and reload publication.
func WithPublisher(p Publisher, subjectPrefix string) Option {
	return func(c *Coordinator) {
		c.publisher = p
		if subjectPrefix != "" {
			c.prefix = subjectPrefix
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithQueueSize overrides the event queue capacity.
func WithQueueSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.events = make(chan event, n)
		}
	}
}

// New creates a coordinator. The load function is invoked on every
// reload request.
func New(eng *engine.Engine, store *registry.Store, load LoadFunc, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		engine: eng,
		store:  store,
		load:   load,
		logger: logger.With("component", "coordinator"),
		prefix: "labelgraph",
		events: make(chan event, 256),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the processing loop.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "coordinator", "Start", "starting loop")
	}

	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

// Stop drains the loop and waits for it to finish.
func (c *Coordinator) Stop() error {
	if !c.started.Load() {
		return errors.WrapInvalid(errors.ErrNotStarted, "coordinator", "Stop", "stopping loop")
	}
	close(c.done)
	c.wg.Wait()
	return nil
}

func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case ev := <-c.events:
			c.process(ev)
		}
	}
}

func (c *Coordinator) process(ev event) {
	if c.metrics != nil {
		c.metrics.EventsTotal.WithLabelValues(ev.kind).Inc()
	}

	switch ev.kind {
	case EventReload:
		err := c.reload()
		if ev.reply != nil {
			ev.reply <- err
		}
	case EventAssignment:
		c.applyAssignment(ev.subject, ev.labels)
	case EventOwnership:
		c.applyOwnership(ev.entity, ev.device)
	case EventRemoval:
		c.applyRemoval(ev.subject)
	case EventAssignEdit:
		c.applyAssignEdit(ev.subject, ev.assign, ev.add)
	}
}

// Reload requests a configuration reload and waits for the result. On
// any fatal configuration error the previous snapshot stays active and
// the collected diagnostics are returned.
func (c *Coordinator) Reload(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := c.submit(ctx, event{kind: EventReload, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AssignmentChanged records a subject's new direct label set.
func (c *Coordinator) AssignmentChanged(ctx context.Context, subject types.Subject, labels types.LabelSet) error {
	return c.submit(ctx, event{kind: EventAssignment, subject: subject, labels: labels.Clone()})
}

// OwnershipChanged records an entity's new owning device; an empty
// device clears ownership.
func (c *Coordinator) OwnershipChanged(ctx context.Context, entity types.EntityID, device types.DeviceID) error {
	return c.submit(ctx, event{kind: EventOwnership, entity: entity, device: device})
}

// SubjectRemoved drops a subject from the assignment store and caches.
func (c *Coordinator) SubjectRemoved(ctx context.Context, subject types.Subject) error {
	return c.submit(ctx, event{kind: EventRemoval, subject: subject})
}

// AssignEditRequested routes a UI edit of a virtual assign label to
// the direct assignment store. The label must carry the assign prefix;
// anything else is rejected before it reaches the loop.
func (c *Coordinator) AssignEditRequested(ctx context.Context, subject types.Subject, label types.LabelID, add bool) error {
	if _, ok := types.TrimAssignID(label); !ok {
		return errors.WrapInvalid(errors.ErrUnknownLabel, "coordinator", "AssignEditRequested",
			fmt.Sprintf("routing edit for non-assign label %q", label))
	}
	return c.submit(ctx, event{kind: EventAssignEdit, subject: subject, assign: label, add: add})
}

func (c *Coordinator) submit(ctx context.Context, ev event) error {
	select {
	case <-c.done:
		return errors.WrapTransient(errors.ErrShuttingDown, "coordinator", "submit", "queueing event")
	default:
	}

	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errors.WrapTransient(errors.ErrShuttingDown, "coordinator", "submit", "queueing event")
	}
}

// reload validates the full configuration, builds a fresh snapshot,
// swaps it in atomically, and publishes deltas for every subject whose
// effective set changed. Errors are collected exhaustively so one pass
// reports the complete list.
func (c *Coordinator) reload() error {
	var diags errors.Diagnostics

	records, err := c.load(&diags)
	if err != nil {
		c.reloadFailed(&diags, err)
		return err
	}

	g := graph.Build(records, &diags)
	rules, warnings := rule.BuildSet(records, g, &diags)
	for _, w := range warnings {
		c.logger.Warn("rule warning", "detail", w)
	}

	if diags.HasErrors() {
		err := diags.Err()
		c.reloadFailed(&diags, err)
		return err
	}

	areas := types.NewLabelSet()
	for _, rec := range records {
		if rec.Area {
			areas.Add(rec.ID)
		}
	}

	before := c.effectiveAll()

	c.engine.Publish(engine.NewSnapshot(g, rules, areas))

	if c.metrics != nil {
		c.metrics.ReloadsTotal.WithLabelValues("success").Inc()
		c.metrics.ReloadErrors.Set(0)
	}

	c.publishNotice(ReloadNotice{
		ID:        uuid.NewString(),
		Labels:    g.Len(),
		Rules:     rules.Len(),
		Areas:     areas.Len(),
		Warnings:  warnings,
		Timestamp: time.Now(),
	})
	c.publishChanged(before)
	return nil
}

func (c *Coordinator) reloadFailed(diags *errors.Diagnostics, err error) {
	if c.metrics != nil {
		c.metrics.ReloadsTotal.WithLabelValues("failure").Inc()
		c.metrics.ReloadErrors.Set(float64(len(diags.Errors())))
	}
	c.logger.Error("reload rejected, previous snapshot stays active",
		"errors", len(diags.Errors()),
		"error", err)
}

// effectiveAll captures the current effective set of every known
// subject, for delta computation across a snapshot swap.
func (c *Coordinator) effectiveAll() map[types.Subject]types.LabelSet {
	out := make(map[types.Subject]types.LabelSet)
	for _, id := range c.store.Entities() {
		subject := types.EntitySubject(id)
		out[subject] = c.engine.EffectiveLabels(subject)
	}
	for _, id := range c.store.Devices() {
		subject := types.DeviceSubject(id)
		out[subject] = c.engine.EffectiveLabels(subject)
	}
	return out
}

func (c *Coordinator) publishChanged(before map[types.Subject]types.LabelSet) {
	for subject, old := range before {
		now := c.engine.EffectiveLabels(subject)
		if !now.Equal(old) {
			c.publishDelta(newDelta(subject, old, now))
		}
	}
}

func (c *Coordinator) applyAssignment(subject types.Subject, labels types.LabelSet) {
	before := c.engine.EffectiveLabels(subject)
	beforeOwned := c.effectiveOwned(subject)

	var changed bool
	switch subject.Kind {
	case types.SubjectEntity:
		changed = c.store.SetEntityLabels(types.EntityID(subject.ID), labels)
		if changed {
			c.engine.InvalidateEntity(types.EntityID(subject.ID))
		}
	case types.SubjectDevice:
		changed = c.store.SetDeviceLabels(types.DeviceID(subject.ID), labels)
		if changed {
			c.engine.InvalidateDevice(types.DeviceID(subject.ID))
		}
	}
	if !changed {
		return
	}

	c.republish(subject, before)
	c.publishChanged(beforeOwned)
}

func (c *Coordinator) applyOwnership(entity types.EntityID, device types.DeviceID) {
	subject := types.EntitySubject(entity)
	before := c.engine.EffectiveLabels(subject)

	if !c.store.SetOwner(entity, device) {
		return
	}
	c.engine.InvalidateEntity(entity)
	c.republish(subject, before)
}

func (c *Coordinator) applyRemoval(subject types.Subject) {
	switch subject.Kind {
	case types.SubjectEntity:
		c.store.RemoveEntity(types.EntityID(subject.ID))
		c.engine.RemoveSubject(subject)
	case types.SubjectDevice:
		device := types.DeviceID(subject.ID)
		owned := c.store.EntitiesOf(device)
		c.store.RemoveDevice(device)
		c.engine.RemoveSubject(subject)
		for _, entity := range owned {
			before := c.engine.EffectiveLabels(types.EntitySubject(entity))
			c.engine.InvalidateEntity(entity)
			c.republish(types.EntitySubject(entity), before)
		}
	}
}

func (c *Coordinator) applyAssignEdit(subject types.Subject, label types.LabelID, add bool) {
	before := c.engine.EffectiveLabels(subject)
	beforeOwned := c.effectiveOwned(subject)

	var changed bool
	var err error
	switch subject.Kind {
	case types.SubjectEntity:
		changed, err = c.store.ApplyEntityAssignEdit(types.EntityID(subject.ID), label, add)
	case types.SubjectDevice:
		changed, err = c.store.ApplyDeviceAssignEdit(types.DeviceID(subject.ID), label, add)
	}
	if err != nil {
		c.logger.Warn("assign edit rejected", "subject", subject.String(), "label", label, "error", err)
		return
	}
	if !changed {
		return
	}

	switch subject.Kind {
	case types.SubjectEntity:
		c.engine.InvalidateEntity(types.EntityID(subject.ID))
	case types.SubjectDevice:
		c.engine.InvalidateDevice(types.DeviceID(subject.ID))
	}
	c.republish(subject, before)
	c.publishChanged(beforeOwned)
}

// republish recomputes a subject and publishes a delta if its
// effective set changed.
func (c *Coordinator) republish(subject types.Subject, before types.LabelSet) {
	now := c.engine.EffectiveLabels(subject)
	if now.Equal(before) {
		return
	}
	c.publishDelta(newDelta(subject, before, now))
}

// effectiveOwned captures the effective sets of every entity that
// inherits from a device subject, taken before the mutation so that a
// meaningful delta can be published afterwards.
func (c *Coordinator) effectiveOwned(subject types.Subject) map[types.Subject]types.LabelSet {
	if subject.Kind != types.SubjectDevice {
		return nil
	}
	out := make(map[types.Subject]types.LabelSet)
	for _, entity := range c.store.EntitiesOf(types.DeviceID(subject.ID)) {
		s := types.EntitySubject(entity)
		out[s] = c.engine.EffectiveLabels(s)
	}
	return out
}

func (c *Coordinator) publishDelta(d Delta) {
	if c.publisher == nil {
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		c.logger.Error("marshaling delta", "error", err)
		return
	}
	if err := c.publisher.Publish(c.prefix+".labels.delta", data); err != nil {
		c.logger.Warn("publishing delta", "subject", d.Subject.String(), "error", err)
		return
	}
	if c.metrics != nil {
		c.metrics.DeltasPublished.Inc()
	}
}

func (c *Coordinator) publishNotice(n ReloadNotice) {
	if c.publisher == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		c.logger.Error("marshaling reload notice", "error", err)
		return
	}
	if err := c.publisher.Publish(c.prefix+".labels.updated", data); err != nil {
		c.logger.Warn("publishing reload notice", "error", err)
	}
}
