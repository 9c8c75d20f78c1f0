package registry

import (
	"fmt"

	"github.com/arturpragacz/labelgraph/errors"
	"github.com/arturpragacz/labelgraph/types"
)

// ApplyEntityAssignEdit routes an edit of a virtual assign:<label> tag to
// the entity's direct assignment. The UI shows effective labels alongside
// assign: aliases of the direct ones; only the latter are editable, and
// editing them must never touch derived state. Reports whether the
// direct assignment changed.
func (s *Store) ApplyEntityAssignEdit(entity types.EntityID, assignID types.LabelID, add bool) (bool, error) {
	label, ok := types.TrimAssignID(assignID)
	if !ok {
		return false, errors.WrapInvalid(
			fmt.Errorf("label %q is not an assign label: %w", assignID, errors.ErrUnknownLabel),
			"Store", "ApplyEntityAssignEdit", "parsing assign label")
	}

	labels := s.EntityLabels(entity)
	if add {
		if !labels.Add(label) {
			return false, nil
		}
	} else {
		if !labels.Has(label) {
			return false, nil
		}
		labels.Delete(label)
	}
	return s.SetEntityLabels(entity, labels), nil
}

// ApplyDeviceAssignEdit is ApplyEntityAssignEdit for devices.
func (s *Store) ApplyDeviceAssignEdit(device types.DeviceID, assignID types.LabelID, add bool) (bool, error) {
	label, ok := types.TrimAssignID(assignID)
	if !ok {
		return false, errors.WrapInvalid(
			fmt.Errorf("label %q is not an assign label: %w", assignID, errors.ErrUnknownLabel),
			"Store", "ApplyDeviceAssignEdit", "parsing assign label")
	}

	labels := s.DeviceLabels(device)
	if add {
		if !labels.Add(label) {
			return false, nil
		}
	} else {
		if !labels.Has(label) {
			return false, nil
		}
		labels.Delete(label)
	}
	return s.SetDeviceLabels(device, labels), nil
}
