// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

// Package events carries entity-change notifications from the store to the
// presence relay over an in-process Watermill channel. Delivery is
// fire-and-forget: subscribers that lag simply miss events, and nothing is
// persisted for replay. Clients recover missed changes by refetching the
// board snapshot, so the bus never needs durable transport.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/fableboard/internal/logging"
)

// TopicEntityChanged is the single topic the bus carries.
const TopicEntityChanged = "entity.changed"

// Action identifies what happened to the entity.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// EntityChanged describes a committed mutation. It is published after the
// store write succeeds, never before, so relay subscribers only ever see
// durable state.
type EntityChanged struct {
	BoardID  string `json:"boardId"`
	Entity   string `json:"entity"` // "board", "card", "connection", "comment"
	EntityID string `json:"entityId"`
	Action   Action `json:"action"`
	ActorID  string `json:"actorId"`
	Version  int64  `json:"version,omitempty"`
}

// Bus is an in-process publish/subscribe channel for EntityChanged events.
type Bus struct {
	pubsub *gochannel.GoChannel

	mu     sync.RWMutex
	closed bool
}

// NewBus creates the in-process event bus. Buffer bounds the per-subscriber
// queue; a full queue drops the oldest pressure onto the publisher, so keep
// it generous relative to fan-out volume.
func NewBus(buffer int64) *Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            buffer,
			BlockPublishUntilSubscriberAck: false,
		},
		newWatermillLogger(),
	)
	return &Bus{pubsub: pubsub}
}

// Publish serializes the event and publishes it. Errors are returned to the
// caller but callers treat publishing as best-effort: a failed publish never
// rolls back the store write it describes.
func (b *Bus) Publish(ctx context.Context, ev EntityChanged) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.RUnlock()

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal entity change: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return b.pubsub.Publish(TopicEntityChanged, msg)
}

// Subscribe returns a channel of decoded events. Messages that fail to
// decode are acked and dropped; the subscription ends when ctx is done or
// the bus closes.
func (b *Bus) Subscribe(ctx context.Context) (<-chan EntityChanged, error) {
	msgs, err := b.pubsub.Subscribe(ctx, TopicEntityChanged)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicEntityChanged, err)
	}

	out := make(chan EntityChanged)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev EntityChanged
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable entity change event")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down, terminating all subscriptions.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}
