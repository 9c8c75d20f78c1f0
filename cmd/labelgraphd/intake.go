package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/arturpragacz/labelgraph/coordinator"
	"github.com/arturpragacz/labelgraph/natsclient"
	"github.com/arturpragacz/labelgraph/types"
)

// Registry event payloads delivered by the host platform.
type assignmentEvent struct {
	Subject types.Subject   `json:"subject"`
	Labels  []types.LabelID `json:"labels"`
}

type ownershipEvent struct {
	Entity types.EntityID `json:"entity"`
	Device types.DeviceID `json:"device"`
}

type removalEvent struct {
	Subject types.Subject `json:"subject"`
}

type assignEditEvent struct {
	Subject types.Subject `json:"subject"`
	Label   types.LabelID `json:"label"`
	Add     bool          `json:"add"`
}

// subscribeIntake wires registry change events from NATS into the
// coordinator. Malformed payloads are logged and dropped; the stream
// must keep flowing.
func subscribeIntake(ctx context.Context, nc *natsclient.Client, coord *coordinator.Coordinator,
	prefix string, logger *slog.Logger) error {

	logger = logger.With("component", "intake")

	if err := nc.Subscribe(prefix+".registry.assignment", func(msg *nats.Msg) {
		var ev assignmentEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Warn("dropping malformed assignment event", "error", err)
			return
		}
		if err := coord.AssignmentChanged(ctx, ev.Subject, types.NewLabelSet(ev.Labels...)); err != nil {
			logger.Warn("queueing assignment event", "error", err)
		}
	}); err != nil {
		return err
	}

	if err := nc.Subscribe(prefix+".registry.ownership", func(msg *nats.Msg) {
		var ev ownershipEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Warn("dropping malformed ownership event", "error", err)
			return
		}
		if err := coord.OwnershipChanged(ctx, ev.Entity, ev.Device); err != nil {
			logger.Warn("queueing ownership event", "error", err)
		}
	}); err != nil {
		return err
	}

	if err := nc.Subscribe(prefix+".registry.removed", func(msg *nats.Msg) {
		var ev removalEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Warn("dropping malformed removal event", "error", err)
			return
		}
		if err := coord.SubjectRemoved(ctx, ev.Subject); err != nil {
			logger.Warn("queueing removal event", "error", err)
		}
	}); err != nil {
		return err
	}

	if err := nc.Subscribe(prefix+".registry.assign_edit", func(msg *nats.Msg) {
		var ev assignEditEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Warn("dropping malformed assign edit event", "error", err)
			return
		}
		if err := coord.AssignEditRequested(ctx, ev.Subject, ev.Label, ev.Add); err != nil {
			logger.Warn("rejecting assign edit", "error", err)
		}
	}); err != nil {
		return err
	}

	// Administrative reload request, equivalent to SIGHUP.
	return nc.Subscribe(prefix+".reload", func(_ *nats.Msg) {
		reloadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := coord.Reload(reloadCtx); err != nil {
			logger.Error("requested reload failed, previous configuration stays active", "error", err)
		}
	})
}
