// Package registry holds the direct label assignments of entities and
// devices, together with the device→entity ownership relation. The host
// platform's registries own this data; the core reads it and is notified
// of deltas through the change coordinator.
package registry

import (
	"sync"

	"github.com/arturpragacz/labelgraph/types"
)

// Store is the in-process view of direct assignments. All methods are
// safe for concurrent use; mutation happens only on the coordinator's
// writer goroutine.
type Store struct {
	mu       sync.RWMutex
	entities map[types.EntityID]types.LabelSet
	devices  map[types.DeviceID]types.LabelSet
	owner    map[types.EntityID]types.DeviceID
	owned    map[types.DeviceID]map[types.EntityID]struct{}
}

// NewStore creates an empty assignment store.
func NewStore() *Store {
	return &Store{
		entities: make(map[types.EntityID]types.LabelSet),
		devices:  make(map[types.DeviceID]types.LabelSet),
		owner:    make(map[types.EntityID]types.DeviceID),
		owned:    make(map[types.DeviceID]map[types.EntityID]struct{}),
	}
}

// SetEntityLabels replaces an entity's direct labels and reports whether
// anything changed.
func (s *Store) SetEntityLabels(id types.EntityID, labels types.LabelSet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.entities[id]; ok && current.Equal(labels) {
		return false
	}
	s.entities[id] = labels.Clone()
	return true
}

// SetDeviceLabels replaces a device's direct labels and reports whether
// anything changed.
func (s *Store) SetDeviceLabels(id types.DeviceID, labels types.LabelSet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.devices[id]; ok && current.Equal(labels) {
		return false
	}
	s.devices[id] = labels.Clone()
	return true
}

// SetOwner records that an entity is owned by a device. An empty device
// id clears ownership. Reports whether the relation changed.
func (s *Store) SetOwner(entity types.EntityID, device types.DeviceID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, had := s.owner[entity]
	if had && current == device {
		return false
	}
	if !had && device == "" {
		return false
	}

	if had {
		delete(s.owned[current], entity)
	}
	if device == "" {
		delete(s.owner, entity)
		return true
	}

	s.owner[entity] = device
	if s.owned[device] == nil {
		s.owned[device] = make(map[types.EntityID]struct{})
	}
	s.owned[device][entity] = struct{}{}
	return true
}

// RemoveEntity drops an entity's assignments and ownership.
func (s *Store) RemoveEntity(id types.EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if device, ok := s.owner[id]; ok {
		delete(s.owned[device], id)
		delete(s.owner, id)
	}
	delete(s.entities, id)
}

// RemoveDevice drops a device's assignments and releases its entities.
func (s *Store) RemoveDevice(id types.DeviceID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for entity := range s.owned[id] {
		delete(s.owner, entity)
	}
	delete(s.owned, id)
	delete(s.devices, id)
}

// EntityLabels returns an entity's own direct labels, pre-closure.
// Unknown entities yield an empty set.
func (s *Store) EntityLabels(id types.EntityID) types.LabelSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities[id].Clone()
}

// DeviceLabels returns a device's direct labels. Unknown devices yield
// an empty set.
func (s *Store) DeviceLabels(id types.DeviceID) types.LabelSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devices[id].Clone()
}

// OwnerDevice returns the device owning an entity, if any.
func (s *Store) OwnerDevice(entity types.EntityID) (types.DeviceID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	device, ok := s.owner[entity]
	return device, ok
}

// EntitiesOf returns every entity owned by the device.
func (s *Store) EntitiesOf(device types.DeviceID) []types.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.EntityID, 0, len(s.owned[device]))
	for entity := range s.owned[device] {
		out = append(out, entity)
	}
	return out
}

// Assigned returns the direct assignment of a subject: the subject's own
// labels, plus the owning device's labels for entities. Device
// assignment has no further inheritance.
func (s *Store) Assigned(subject types.Subject) types.LabelSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch subject.Kind {
	case types.SubjectDevice:
		return s.devices[types.DeviceID(subject.ID)].Clone()
	case types.SubjectEntity:
		entity := types.EntityID(subject.ID)
		labels := s.entities[entity].Clone()
		if device, ok := s.owner[entity]; ok {
			labels.AddAll(s.devices[device])
		}
		return labels
	default:
		return types.NewLabelSet()
	}
}

// Entities returns every known entity id: entities with direct
// assignments and entities known only through device ownership. The
// latter still carry inherited labels, so inverse queries must see them.
func (s *Store) Entities() []types.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[types.EntityID]struct{}, len(s.entities)+len(s.owner))
	out := make([]types.EntityID, 0, len(s.entities)+len(s.owner))
	for id := range s.entities {
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for id := range s.owner {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Devices returns every known device id.
func (s *Store) Devices() []types.DeviceID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.DeviceID, 0, len(s.devices))
	for id := range s.devices {
		out = append(out, id)
	}
	return out
}
