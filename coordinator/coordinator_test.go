package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturpragacz/labelgraph/engine"
	"github.com/arturpragacz/labelgraph/errors"
	"github.com/arturpragacz/labelgraph/registry"
	"github.com/arturpragacz/labelgraph/types"
)

// capturePublisher records published messages for assertions.
type capturePublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{messages: make(map[string][][]byte)}
}

func (p *capturePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[subject] = append(p.messages[subject], data)
	return nil
}

func (p *capturePublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[subject])
}

func (p *capturePublisher) deltas(t *testing.T) []Delta {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Delta
	for _, data := range p.messages["labelgraph.labels.delta"] {
		var d Delta
		require.NoError(t, json.Unmarshal(data, &d))
		out = append(out, d)
	}
	return out
}

func staticLoader(records []types.LabelRecord) LoadFunc {
	return func(*errors.Diagnostics) ([]types.LabelRecord, error) {
		return records, nil
	}
}

func houseRecords() []types.LabelRecord {
	return []types.LabelRecord{
		{ID: "home", Area: true},
		{ID: "ground_floor", Parents: []types.LabelID{"home"}, Area: true},
		{ID: "living_room", Parents: []types.LabelID{"ground_floor"}, Area: true},
		{ID: "battery"},
		{ID: "important"},
		{ID: "important_battery", Rule: "label(important) and label(battery)"},
	}
}

type fixture struct {
	coord     *Coordinator
	engine    *engine.Engine
	store     *registry.Store
	publisher *capturePublisher
	loader    *swappableLoader
}

// swappableLoader lets tests change the configuration between reloads.
type swappableLoader struct {
	mu      sync.Mutex
	records []types.LabelRecord
}

func (l *swappableLoader) set(records []types.LabelRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = records
}

func (l *swappableLoader) load(*errors.Diagnostics) ([]types.LabelRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := registry.NewStore()
	logger := slog.New(slog.DiscardHandler)
	eng := engine.New(store, logger)
	publisher := newCapturePublisher()
	loader := &swappableLoader{records: houseRecords()}

	coord := New(eng, store, loader.load, logger, WithPublisher(publisher, "labelgraph"))
	require.NoError(t, coord.Start(context.Background()))
	t.Cleanup(func() { _ = coord.Stop() })

	require.NoError(t, coord.Reload(context.Background()))
	return &fixture{coord: coord, engine: eng, store: store, publisher: publisher, loader: loader}
}

// barrier waits until all previously submitted events are processed,
// using the synchronous reload as a fence.
func (f *fixture) barrier(t *testing.T) {
	t.Helper()
	require.NoError(t, f.coord.Reload(context.Background()))
}

func TestReloadPublishesNotice(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 1, f.publisher.count("labelgraph.labels.updated"))
	assert.Equal(t, 6, f.engine.Current().Graph().Len())

	var notice ReloadNotice
	require.NoError(t, json.Unmarshal(f.publisher.messages["labelgraph.labels.updated"][0], &notice))
	assert.Equal(t, 6, notice.Labels)
	assert.Equal(t, 1, notice.Rules)
	assert.Equal(t, 3, notice.Areas)
	assert.NotEmpty(t, notice.ID)
}

func TestReloadRejectsCycleKeepsPriorSnapshot(t *testing.T) {
	f := newFixture(t)

	f.store.SetEntityLabels("light.x", types.NewLabelSet("living_room"))
	require.True(t, f.engine.EffectiveLabels(types.EntitySubject("light.x")).Has("home"))
	prior := f.engine.Current()

	f.loader.set([]types.LabelRecord{
		{ID: "a", Parents: []types.LabelID{"b"}},
		{ID: "b", Parents: []types.LabelID{"a"}},
	})

	err := f.coord.Reload(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrParentCycle)

	// The previous snapshot stays active and queryable.
	assert.Same(t, prior, f.engine.Current())
	assert.True(t, f.engine.EffectiveLabels(types.EntitySubject("light.x")).Has("home"))
}

func TestReloadCollectsAllErrors(t *testing.T) {
	f := newFixture(t)

	f.loader.set([]types.LabelRecord{
		{ID: "a", Parents: []types.LabelID{"missing_one"}},
		{ID: "b", Parents: []types.LabelID{"missing_two"}},
		{ID: "c", Rule: "label(a) and and"},
	})

	err := f.coord.Reload(context.Background())
	require.Error(t, err)

	var diags *errors.Diagnostics
	require.ErrorAs(t, err, &diags)
	assert.Len(t, diags.Errors(), 3, "dangling parents and rule syntax collected in one pass")
}

func TestReloadPublishesDeltasForChangedSubjects(t *testing.T) {
	f := newFixture(t)

	f.store.SetEntityLabels("light.x", types.NewLabelSet("living_room"))
	require.True(t, f.engine.EffectiveLabels(types.EntitySubject("light.x")).Has("home"))

	// Drop the hierarchy above living_room; light.x loses two labels.
	f.loader.set([]types.LabelRecord{{ID: "living_room", Area: true}})
	require.NoError(t, f.coord.Reload(context.Background()))

	deltas := f.publisher.deltas(t)
	require.Len(t, deltas, 1)
	assert.Equal(t, types.EntitySubject("light.x"), deltas[0].Subject)
	assert.ElementsMatch(t, []types.LabelID{"ground_floor", "home"}, deltas[0].Removed)
	assert.Equal(t, []types.LabelID{"living_room"}, deltas[0].Effective)
}

func TestReloadDeltasCoverOwnershipOnlyEntities(t *testing.T) {
	f := newFixture(t)

	// light.bare is known only through ownership; its whole effective
	// set comes from the hub device.
	f.store.SetDeviceLabels("dev-hub", types.NewLabelSet("living_room"))
	require.True(t, f.store.SetOwner("light.bare", "dev-hub"))
	require.True(t, f.engine.EffectiveLabels(types.EntitySubject("light.bare")).Has("home"))

	f.loader.set([]types.LabelRecord{{ID: "living_room", Area: true}})
	require.NoError(t, f.coord.Reload(context.Background()))

	deltas := f.publisher.deltas(t)
	subjects := make([]types.Subject, 0, len(deltas))
	for _, d := range deltas {
		subjects = append(subjects, d.Subject)
	}
	assert.Contains(t, subjects, types.EntitySubject("light.bare"))
	assert.Contains(t, subjects, types.DeviceSubject("dev-hub"))
}

func TestAssignmentChangedPublishesDelta(t *testing.T) {
	f := newFixture(t)

	subject := types.EntitySubject("light.x")
	require.NoError(t, f.coord.AssignmentChanged(context.Background(), subject, types.NewLabelSet("living_room")))
	f.barrier(t)

	eff := f.engine.EffectiveLabels(subject)
	assert.Equal(t, []types.LabelID{"ground_floor", "home", "living_room"}, eff.Sorted())

	deltas := f.publisher.deltas(t)
	require.Len(t, deltas, 1)
	assert.ElementsMatch(t, []types.LabelID{"living_room", "ground_floor", "home"}, deltas[0].Added)
	assert.Empty(t, deltas[0].Removed)
}

func TestDeviceAssignmentCascadesToOwnedEntities(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.coord.OwnershipChanged(context.Background(), "sensor.a", "dev-hub"))
	require.NoError(t, f.coord.AssignmentChanged(context.Background(),
		types.DeviceSubject("dev-hub"), types.NewLabelSet("living_room")))
	f.barrier(t)

	assert.True(t, f.engine.EffectiveLabels(types.EntitySubject("sensor.a")).Has("living_room"))

	var subjects []string
	for _, d := range f.publisher.deltas(t) {
		subjects = append(subjects, d.Subject.String())
	}
	assert.Contains(t, subjects, "device:dev-hub")
	assert.Contains(t, subjects, "entity:sensor.a")
}

func TestAssignEditRoutesToDirectStore(t *testing.T) {
	f := newFixture(t)

	subject := types.EntitySubject("light.x")
	require.NoError(t, f.coord.AssignEditRequested(context.Background(), subject, "assign:living_room", true))
	f.barrier(t)

	assert.True(t, f.store.EntityLabels("light.x").Has("living_room"))
	assert.True(t, f.engine.EffectiveLabels(subject).Has("home"))

	// Removing through the assign label clears the direct assignment.
	require.NoError(t, f.coord.AssignEditRequested(context.Background(), subject, "assign:living_room", false))
	f.barrier(t)

	assert.False(t, f.store.EntityLabels("light.x").Has("living_room"))
	assert.Equal(t, 0, f.engine.EffectiveLabels(subject).Len())
}

func TestAssignEditRejectsPlainLabel(t *testing.T) {
	f := newFixture(t)

	err := f.coord.AssignEditRequested(context.Background(),
		types.EntitySubject("light.x"), "living_room", true)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "non-assign label"))
}

func TestSubjectRemovedDropsState(t *testing.T) {
	f := newFixture(t)

	subject := types.EntitySubject("light.x")
	require.NoError(t, f.coord.AssignmentChanged(context.Background(), subject, types.NewLabelSet("living_room")))
	f.barrier(t)

	require.NoError(t, f.coord.SubjectRemoved(context.Background(), subject))
	f.barrier(t)

	assert.Equal(t, 0, f.store.EntityLabels("light.x").Len())
	assert.Empty(t, f.engine.LabelEntities("living_room"))
}

func TestStartTwiceFails(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.coord.Start(context.Background()), errors.ErrAlreadyStarted)
}

func TestSubmitAfterStopFails(t *testing.T) {
	store := registry.NewStore()
	logger := slog.New(slog.DiscardHandler)
	eng := engine.New(store, logger)
	coord := New(eng, store, staticLoader(nil), logger)

	require.NoError(t, coord.Start(context.Background()))
	require.NoError(t, coord.Stop())

	err := coord.AssignmentChanged(context.Background(),
		types.EntitySubject("light.x"), types.NewLabelSet("a"))
	assert.ErrorIs(t, err, errors.ErrShuttingDown)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.Error(t, coord.Reload(ctx))
}
