// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/fableboard/internal/events"
)

// RelayHub matches the relay hub's run loop, allowing tests to substitute
// a fake.
type RelayHub interface {
	RunWithContext(ctx context.Context) error
}

// RelayHubService runs the relay hub under supervision. The hub's
// RunWithContext already implements the suture pattern; this wrapper only
// supplies the service name.
type RelayHubService struct {
	hub RelayHub
}

// NewRelayHubService wraps the hub.
func NewRelayHubService(hub RelayHub) *RelayHubService {
	return &RelayHubService{hub: hub}
}

// Serve implements suture.Service.
func (s *RelayHubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervision logs.
func (s *RelayHubService) String() string {
	return "relay-hub"
}

// EventSubscriber matches the bus side of the entity-change pump.
type EventSubscriber interface {
	Subscribe(ctx context.Context) (<-chan events.EntityChanged, error)
}

// EventPump matches the hub side of the entity-change pump.
type EventPump interface {
	PumpEvents(ctx context.Context, changes <-chan events.EntityChanged)
}

// EventPumpService forwards committed entity changes from the in-process
// bus to the relay hub. Supervised separately from the hub so a pump
// failure resubscribes without dropping WebSocket connections.
type EventPumpService struct {
	bus EventSubscriber
	hub EventPump
}

// NewEventPumpService wires the bus subscription to the hub.
func NewEventPumpService(bus EventSubscriber, hub EventPump) *EventPumpService {
	return &EventPumpService{bus: bus, hub: hub}
}

// Serve implements suture.Service. Subscribes on every (re)start; the
// subscription dies with the context.
func (s *EventPumpService) Serve(ctx context.Context) error {
	changes, err := s.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe entity changes: %w", err)
	}
	s.hub.PumpEvents(ctx, changes)
	return ctx.Err()
}

// String implements fmt.Stringer for supervision logs.
func (s *EventPumpService) String() string {
	return "event-pump"
}
