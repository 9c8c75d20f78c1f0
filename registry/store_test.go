package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/arturpragacz/labelgraph/errors"
	"github.com/arturpragacz/labelgraph/types"
)

func TestAssignedEntityUnionsDeviceLabels(t *testing.T) {
	store := NewStore()
	store.SetDeviceLabels("dev1", types.NewLabelSet("battery"))
	store.SetEntityLabels("light.sofa", types.NewLabelSet("living_room"))
	store.SetOwner("light.sofa", "dev1")

	assigned := store.Assigned(types.EntitySubject("light.sofa"))
	assert.True(t, assigned.Equal(types.NewLabelSet("living_room", "battery")))

	// Device assignment has no further inheritance.
	assert.True(t, store.Assigned(types.DeviceSubject("dev1")).
		Equal(types.NewLabelSet("battery")))
}

func TestAssignedUnknownSubjectEmpty(t *testing.T) {
	store := NewStore()
	assert.Equal(t, 0, store.Assigned(types.EntitySubject("nope")).Len())
	assert.Equal(t, 0, store.Assigned(types.DeviceSubject("nope")).Len())
}

func TestSetEntityLabelsReportsChange(t *testing.T) {
	store := NewStore()

	assert.True(t, store.SetEntityLabels("e1", types.NewLabelSet("a")))
	assert.False(t, store.SetEntityLabels("e1", types.NewLabelSet("a")))
	assert.True(t, store.SetEntityLabels("e1", types.NewLabelSet("a", "b")))
}

func TestSetEntityLabelsCopiesInput(t *testing.T) {
	store := NewStore()
	labels := types.NewLabelSet("a")
	store.SetEntityLabels("e1", labels)
	labels.Add("b")

	assert.True(t, store.EntityLabels("e1").Equal(types.NewLabelSet("a")))
}

func TestOwnership(t *testing.T) {
	store := NewStore()
	store.SetEntityLabels("e1", types.NewLabelSet())
	store.SetEntityLabels("e2", types.NewLabelSet())

	assert.True(t, store.SetOwner("e1", "dev1"))
	assert.True(t, store.SetOwner("e2", "dev1"))
	assert.False(t, store.SetOwner("e1", "dev1"))

	owner, ok := store.OwnerDevice("e1")
	require.True(t, ok)
	assert.Equal(t, types.DeviceID("dev1"), owner)

	entities := store.EntitiesOf("dev1")
	assert.ElementsMatch(t, []types.EntityID{"e1", "e2"}, entities)

	// Re-homing moves the reverse index entry.
	assert.True(t, store.SetOwner("e1", "dev2"))
	assert.ElementsMatch(t, []types.EntityID{"e2"}, store.EntitiesOf("dev1"))
	assert.ElementsMatch(t, []types.EntityID{"e1"}, store.EntitiesOf("dev2"))

	// Clearing ownership.
	assert.True(t, store.SetOwner("e1", ""))
	_, ok = store.OwnerDevice("e1")
	assert.False(t, ok)
	assert.Empty(t, store.EntitiesOf("dev2"))
}

func TestEntitiesIncludesOwnershipOnly(t *testing.T) {
	store := NewStore()
	store.SetDeviceLabels("dev-hub", types.NewLabelSet("living_room"))
	store.SetEntityLabels("light.direct", types.NewLabelSet("battery"))
	store.SetOwner("light.bare", "dev-hub")

	// An entity known only through ownership inherits the device's
	// labels and must be enumerable alongside directly assigned ones.
	assert.True(t, store.Assigned(types.EntitySubject("light.bare")).Has("living_room"))
	assert.ElementsMatch(t,
		[]types.EntityID{"light.direct", "light.bare"}, store.Entities())

	// No duplicate when the same entity has both.
	store.SetEntityLabels("light.bare", types.NewLabelSet("battery"))
	assert.ElementsMatch(t,
		[]types.EntityID{"light.direct", "light.bare"}, store.Entities())

	// Clearing ownership forgets an ownership-only entity.
	store2 := NewStore()
	store2.SetOwner("light.bare", "dev-hub")
	store2.SetOwner("light.bare", "")
	assert.Empty(t, store2.Entities())
}

func TestRemoveDeviceReleasesEntities(t *testing.T) {
	store := NewStore()
	store.SetDeviceLabels("dev1", types.NewLabelSet("battery"))
	store.SetEntityLabels("e1", types.NewLabelSet())
	store.SetOwner("e1", "dev1")

	store.RemoveDevice("dev1")

	_, ok := store.OwnerDevice("e1")
	assert.False(t, ok)
	assert.Equal(t, 0, store.DeviceLabels("dev1").Len())
}

func TestApplyEntityAssignEdit(t *testing.T) {
	store := NewStore()
	store.SetEntityLabels("e1", types.NewLabelSet("battery"))

	changed, err := store.ApplyEntityAssignEdit("e1", "assign:important", true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, store.EntityLabels("e1").Equal(types.NewLabelSet("battery", "important")))

	// Adding again is a no-op.
	changed, err = store.ApplyEntityAssignEdit("e1", "assign:important", true)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = store.ApplyEntityAssignEdit("e1", "assign:battery", false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, store.EntityLabels("e1").Equal(types.NewLabelSet("important")))
}

func TestApplyAssignEditRejectsPlainLabel(t *testing.T) {
	store := NewStore()

	_, err := store.ApplyEntityAssignEdit("e1", "battery", true)
	require.Error(t, err)
	assert.True(t, xerrors.IsInvalid(err))

	_, err = store.ApplyDeviceAssignEdit("d1", "battery", true)
	assert.Error(t, err)
}

func TestApplyDeviceAssignEdit(t *testing.T) {
	store := NewStore()

	changed, err := store.ApplyDeviceAssignEdit("dev1", "assign:battery", true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, store.DeviceLabels("dev1").Equal(types.NewLabelSet("battery")))
}
