package coordinator

import (
	"time"

	"github.com/google/uuid"

	"github.com/arturpragacz/labelgraph/types"
)

// Event type names used in notifications and metrics.
const (
	EventReload     = "reload"
	EventAssignment = "assignment"
	EventOwnership  = "ownership"
	EventRemoval    = "removal"
	EventAssignEdit = "assign_edit"
)

// Delta is published for every subject whose effective label set
// changed.
type Delta struct {
	ID        string          `json:"id"`
	Subject   types.Subject   `json:"subject"`
	Added     []types.LabelID `json:"added,omitempty"`
	Removed   []types.LabelID `json:"removed,omitempty"`
	Effective []types.LabelID `json:"effective"`
	Timestamp time.Time       `json:"timestamp"`
}

// ReloadNotice is published after a successful configuration reload.
type ReloadNotice struct {
	ID        string    `json:"id"`
	Labels    int       `json:"labels"`
	Rules     int       `json:"rules"`
	Areas     int       `json:"areas"`
	Warnings  []string  `json:"warnings,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newDelta(subject types.Subject, before, after types.LabelSet) Delta {
	return Delta{
		ID:        uuid.NewString(),
		Subject:   subject,
		Added:     after.Diff(before).Sorted(),
		Removed:   before.Diff(after).Sorted(),
		Effective: after.Sorted(),
		Timestamp: time.Now(),
	}
}

// event is one unit of serialized work for the coordinator loop.
type event struct {
	kind string

	// reload
	reply chan error

	// assignment / removal / assign edit
	subject types.Subject
	labels  types.LabelSet
	assign  types.LabelID
	add     bool

	// ownership
	entity types.EntityID
	device types.DeviceID
}
