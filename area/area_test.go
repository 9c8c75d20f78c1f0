package area

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturpragacz/labelgraph/engine"
	"github.com/arturpragacz/labelgraph/errors"
	"github.com/arturpragacz/labelgraph/graph"
	"github.com/arturpragacz/labelgraph/registry"
	"github.com/arturpragacz/labelgraph/rule"
	"github.com/arturpragacz/labelgraph/types"
)

func houseRecords() []types.LabelRecord {
	return []types.LabelRecord{
		{ID: "home", Name: "Home", Area: true},
		{ID: "ground_floor", Name: "Ground floor", Parents: []types.LabelID{"home"}, Area: true},
		{ID: "living_room", Name: "Living room", Parents: []types.LabelID{"ground_floor"}, Area: true, Aliases: []string{"lounge"}},
		{ID: "kitchen", Name: "Kitchen", Parents: []types.LabelID{"ground_floor"}, Area: true},
		{ID: "battery"},
	}
}

func newTestLayer(t *testing.T, opts ...Option) (*Layer, *registry.Store) {
	t.Helper()

	records := houseRecords()
	var diags errors.Diagnostics
	g := graph.Build(records, &diags)
	rules, _ := rule.BuildSet(records, g, &diags)
	require.False(t, diags.HasErrors())

	areas := types.NewLabelSet()
	for _, rec := range records {
		if rec.Area {
			areas.Add(rec.ID)
		}
	}

	store := registry.NewStore()
	logger := slog.New(slog.DiscardHandler)
	eng := engine.New(store, logger)
	eng.Publish(engine.NewSnapshot(g, rules, areas))
	return New(eng, logger, opts...), store
}

func TestAreasListsFlaggedLabelsWithParents(t *testing.T) {
	layer, _ := newTestLayer(t)

	areas := layer.Areas()
	require.Len(t, areas, 4)

	byID := make(map[types.LabelID]Area, len(areas))
	for _, a := range areas {
		byID[a.ID] = a
	}

	assert.Equal(t, types.LabelID(""), byID["home"].Parent)
	assert.Equal(t, types.LabelID("home"), byID["ground_floor"].Parent)
	assert.Equal(t, types.LabelID("ground_floor"), byID["living_room"].Parent)
	assert.Equal(t, "Living room", byID["living_room"].Name)
	assert.Equal(t, []string{"lounge"}, byID["living_room"].Aliases)
}

func TestHierarchyRestrictedToAreas(t *testing.T) {
	layer, _ := newTestLayer(t)

	h := layer.Hierarchy()
	assert.Equal(t, map[types.LabelID]types.LabelID{
		"ground_floor": "home",
		"living_room":  "ground_floor",
		"kitchen":      "ground_floor",
	}, h)
}

func TestPrimaryAreaMostSpecific(t *testing.T) {
	layer, store := newTestLayer(t)
	store.SetEntityLabels("light.sofa", types.NewLabelSet("living_room"))

	// Effective set holds living_room plus both ancestors; the deepest
	// area wins.
	primary, ok := layer.PrimaryAreaOf(types.EntitySubject("light.sofa"))
	require.True(t, ok)
	assert.Equal(t, types.LabelID("living_room"), primary)
}

func TestPrimaryAreaAbsentWithoutAreaLabels(t *testing.T) {
	layer, store := newTestLayer(t)
	store.SetEntityLabels("sensor.x", types.NewLabelSet("battery"))

	_, ok := layer.PrimaryAreaOf(types.EntitySubject("sensor.x"))
	assert.False(t, ok)
}

func TestPrimaryAreaAmbiguityTieBreak(t *testing.T) {
	layer, store := newTestLayer(t)
	store.SetEntityLabels("vacuum.x", types.NewLabelSet("kitchen", "living_room"))

	primary, ok := layer.PrimaryAreaOf(types.EntitySubject("vacuum.x"))
	require.True(t, ok)
	assert.Equal(t, types.LabelID("kitchen"), primary, "identifier tie break picks the smallest id")
}

func TestPrimaryAreaAmbiguityNameTieBreak(t *testing.T) {
	layer, store := newTestLayer(t, WithTieBreak(TieBreakName))
	store.SetEntityLabels("vacuum.x", types.NewLabelSet("kitchen", "living_room"))

	primary, ok := layer.PrimaryAreaOf(types.EntitySubject("vacuum.x"))
	require.True(t, ok)
	assert.Equal(t, types.LabelID("kitchen"), primary, "Kitchen sorts before Living room")
}

func TestAreasOfMostSpecificFirst(t *testing.T) {
	layer, store := newTestLayer(t)
	store.SetEntityLabels("light.sofa", types.NewLabelSet("living_room", "battery"))

	areas := layer.AreasOf(types.EntitySubject("light.sofa"))
	assert.Equal(t, []types.LabelID{"living_room", "ground_floor", "home"}, areas)
}

func TestFindByIDNameAndAlias(t *testing.T) {
	layer, _ := newTestLayer(t)

	id, ok := layer.Find("living_room")
	assert.True(t, ok)
	assert.Equal(t, types.LabelID("living_room"), id)

	id, ok = layer.Find("Living Room")
	assert.True(t, ok)
	assert.Equal(t, types.LabelID("living_room"), id)

	id, ok = layer.Find("LOUNGE")
	assert.True(t, ok)
	assert.Equal(t, types.LabelID("living_room"), id)

	// Non-area labels never match, even by id.
	_, ok = layer.Find("battery")
	assert.False(t, ok)

	_, ok = layer.Find("garage")
	assert.False(t, ok)
}

func TestAncestorAreaTargetingExpands(t *testing.T) {
	layer, store := newTestLayer(t)

	store.SetEntityLabels("light.sofa", types.NewLabelSet("living_room"))
	store.SetEntityLabels("light.kitchen", types.NewLabelSet("kitchen"))
	store.SetEntityLabels("sensor.outdoor", types.NewLabelSet("battery"))

	assert.Equal(t,
		[]types.EntityID{"light.kitchen", "light.sofa"},
		layer.EntitiesInArea("home"))
	assert.Equal(t,
		[]types.EntityID{"light.sofa"},
		layer.EntitiesInArea("living_room"))
}

func TestEntitiesInAreaRejectsNonArea(t *testing.T) {
	layer, store := newTestLayer(t)
	store.SetEntityLabels("sensor.x", types.NewLabelSet("battery"))

	assert.Nil(t, layer.EntitiesInArea("battery"))
	assert.Nil(t, layer.DevicesInArea("battery"))
}

func TestDevicesInArea(t *testing.T) {
	layer, store := newTestLayer(t)
	store.SetDeviceLabels("dev-a", types.NewLabelSet("kitchen"))

	assert.Equal(t, []types.DeviceID{"dev-a"}, layer.DevicesInArea("ground_floor"))
}
