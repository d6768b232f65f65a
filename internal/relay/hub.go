// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

// Package relay fans presence and change notifications out to the
// WebSocket peers of a board. Delivery is best-effort: a slow or dead peer
// is dropped from its group rather than blocking fan-out to the others,
// and nothing is queued for absent peers.
package relay

import (
	"context"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/fableboard/internal/events"
	"github.com/tomtom215/fableboard/internal/logging"
	"github.com/tomtom215/fableboard/internal/metrics"
	"github.com/tomtom215/fableboard/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// inbound is a message received from a connected client.
type inbound struct {
	origin *Client
	env    Envelope
}

// outbound is a message to fan out to a board group. origin is excluded
// from delivery; a nil origin reaches every member.
type outbound struct {
	boardID string
	origin  *Client
	env     Envelope
}

// Hub maintains per-board groups of clients and routes messages between
// them. All group state is owned by the run loop; external callers only
// touch the channels.
type Hub struct {
	mu       sync.RWMutex
	groups   map[string]map[*Client]bool
	inert    map[*Client]bool
	presence *presenceTracker

	Register   chan *Client
	Unregister chan *Client
	inbound    chan inbound
	broadcast  chan outbound
}

// NewHub creates a hub with no groups.
func NewHub() *Hub {
	return &Hub{
		groups:     make(map[string]map[*Client]bool),
		inert:      make(map[*Client]bool),
		presence:   newPresenceTracker(),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		inbound:    make(chan inbound, 256),
		broadcast:  make(chan outbound, 256),
	}
}

// RunWithContext runs the hub until the context is canceled. Designed for
// suture supervision: cancellation closes every client and returns
// ctx.Err() so the supervisor can restart a clean instance.
//
// Priority-based selection keeps behavior deterministic when multiple
// channels are ready: shutdown first, then client lifecycle, then traffic.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown (non-blocking check).
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle (non-blocking check).
		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		// Priority 3: traffic, or wait for any event.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case msg := <-h.inbound:
			h.handleInbound(msg)
		case msg := <-h.broadcast:
			h.fanOut(msg.boardID, msg.env, msg.origin)
		}
	}
}

// PumpEvents forwards committed entity changes from the bus into the
// originating board's group. Returns when ctx is done or the subscription
// channel closes.
func (h *Hub) PumpEvents(ctx context.Context, changes <-chan events.EntityChanged) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-changes:
			if !ok {
				return
			}
			h.BroadcastEntityChanged(ev)
		}
	}
}

// BroadcastEntityChanged queues an entity_changed notification for the
// board's group. Dropped with a warning if the hub is saturated.
func (h *Hub) BroadcastEntityChanged(ev events.EntityChanged) {
	msg := outbound{boardID: ev.BoardID, env: NewEnvelope(MessageTypeEntityChanged, ev)}
	select {
	case h.broadcast <- msg:
	default:
		metrics.RelayMessagesDropped.WithLabelValues("hub_saturated").Inc()
		logging.Warn().Str("board_id", ev.BoardID).Msg("Broadcast channel full, dropping entity change")
	}
}

// register adds the client to its board group and synchronizes presence.
// A client that joined without identifying itself stays inert: it is
// tracked only so shutdown can close it, receives nothing, and its
// messages are ignored.
func (h *Hub) register(client *Client) {
	h.mu.Lock()
	if client.boardID == "" || client.userID == "" {
		h.inert[client] = true
		h.mu.Unlock()
		metrics.RelayConnections.Inc()
		logging.Info().Msg("Relay client connected without identity, holding inert")
		return
	}

	group := h.groups[client.boardID]
	if group == nil {
		group = make(map[*Client]bool)
		h.groups[client.boardID] = group
	}
	group[client] = true
	groupSize := len(group)
	h.mu.Unlock()

	metrics.RelayConnections.Inc()
	h.updateGroupGauge()

	joined := h.presence.join(client.boardID, client.userID, client.name)

	// The joining member gets the current state of the room; the room
	// gets the new member.
	state := PresenceStatePayload{BoardID: client.boardID, Users: h.presence.snapshot(client.boardID)}
	client.trySend(NewEnvelope(MessageTypePresenceState, state))
	h.fanOut(client.boardID, NewEnvelope(MessageTypePresenceUpdate, joined), client)

	logging.Info().
		Str("board_id", client.boardID).
		Str("user_id", client.userID).
		Int("group_size", groupSize).
		Msg("Relay client joined board group")
}

// unregister removes the client, closes its send channel, and announces
// the departure to the remaining group members.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if h.inert[client] {
		delete(h.inert, client)
		close(client.send)
		h.mu.Unlock()
		metrics.RelayConnections.Dec()
		return
	}

	group := h.groups[client.boardID]
	if group == nil || !group[client] {
		h.mu.Unlock()
		return
	}
	delete(group, client)
	if len(group) == 0 {
		delete(h.groups, client.boardID)
	}
	close(client.send)
	h.mu.Unlock()

	metrics.RelayConnections.Dec()
	h.updateGroupGauge()

	if left := h.presence.leave(client.boardID, client.userID); left != nil {
		h.fanOut(client.boardID, NewEnvelope(MessageTypePresenceUpdate, left), nil)
	}

	logging.Info().
		Str("board_id", client.boardID).
		Str("user_id", client.userID).
		Msg("Relay client left board group")
}

// handleInbound applies a client message to presence state and fans it out
// to the rest of the group. Heartbeats refresh liveness and go no further.
// Messages from inert clients are discarded.
func (h *Hub) handleInbound(msg inbound) {
	metrics.RelayMessagesReceived.Inc()

	origin := msg.origin
	h.mu.RLock()
	isInert := h.inert[origin]
	h.mu.RUnlock()
	if isInert {
		metrics.RelayMessagesDropped.WithLabelValues("inert_origin").Inc()
		return
	}

	switch msg.env.Type {
	case MessageTypeHeartbeat:
		h.presence.heartbeat(origin.boardID, origin.userID)
		return

	case MessageTypeCursorMove:
		var payload CursorPayload
		if err := json.Unmarshal(msg.env.Payload, &payload); err == nil {
			h.presence.cursor(origin.boardID, origin.userID, payload.Cursor)
		}

	case MessageTypeUserActivity:
		var payload ActivityPayload
		if err := json.Unmarshal(msg.env.Payload, &payload); err == nil {
			h.presence.activity(origin.boardID, origin.userID, payload.CurrentCard)
		}

	case MessageTypePresenceUpdate:
		var payload models.Presence
		if err := json.Unmarshal(msg.env.Payload, &payload); err == nil {
			h.presence.activity(origin.boardID, origin.userID, payload.CurrentCard)
		}

	default:
		metrics.RelayMessagesDropped.WithLabelValues("unknown_type").Inc()
		logging.Debug().Str("type", msg.env.Type).Msg("Dropping relay message of unknown type")
		return
	}

	h.fanOut(origin.boardID, msg.env, origin)
}

// fanOut delivers the envelope to every group member except origin.
// Clients are visited in ID order for deterministic delivery. A member
// whose send queue is full is dropped from the group: one slow consumer
// must not degrade the room.
func (h *Hub) fanOut(boardID string, env Envelope, origin *Client) {
	h.mu.Lock()
	group := h.groups[boardID]
	members := make([]*Client, 0, len(group))
	for client := range group {
		if client != origin {
			members = append(members, client)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].id < members[j].id })

	var evicted []*Client
	for _, client := range members {
		select {
		case client.send <- env:
			metrics.RelayMessagesDelivered.WithLabelValues(env.Type).Inc()
		default:
			evicted = append(evicted, client)
		}
	}
	for _, client := range evicted {
		delete(group, client)
		close(client.send)
		metrics.RelayMessagesDropped.WithLabelValues("slow_consumer").Inc()
		metrics.RelayConnections.Dec()
	}
	if len(group) == 0 {
		delete(h.groups, boardID)
	}
	h.mu.Unlock()

	for _, client := range evicted {
		logging.Warn().
			Str("board_id", boardID).
			Str("user_id", client.userID).
			Msg("Dropping slow relay client from board group")
		if left := h.presence.leave(boardID, client.userID); left != nil {
			h.fanOut(boardID, NewEnvelope(MessageTypePresenceUpdate, left), nil)
		}
	}
	if len(evicted) > 0 {
		h.updateGroupGauge()
	}
}

// GroupSize returns the number of members in a board group.
func (h *Hub) GroupSize(boardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[boardID])
}

// ClientCount returns the number of connected clients, inert included.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.inert)
	for _, group := range h.groups {
		n += len(group)
	}
	return n
}

func (h *Hub) updateGroupGauge() {
	h.mu.RLock()
	metrics.RelayGroups.Set(float64(len(h.groups)))
	h.mu.RUnlock()
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	closed := h.closeAllClients()

	// ctx.Err() is expected during graceful shutdown, so it is logged as
	// a field rather than an error.
	logging.Info().
		Str("component", "relay-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("clients_closed", closed).
		Msg("Relay hub stopped")
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes every connected client in ID order and empties
// the groups. Returns the number of clients closed.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	all := make([]*Client, 0)
	for _, group := range h.groups {
		for client := range group {
			all = append(all, client)
		}
	}
	for client := range h.inert {
		all = append(all, client)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].id < all[j].id })

	for _, client := range all {
		close(client.send)
	}
	h.groups = make(map[string]map[*Client]bool)
	h.inert = make(map[*Client]bool)
	return len(all)
}
