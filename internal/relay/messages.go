// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package relay

import (
	json "github.com/goccy/go-json"

	"github.com/tomtom215/fableboard/internal/models"
)

// Message types carried over the relay. Everything is ephemeral: a message
// not delivered right now is never delivered.
const (
	MessageTypePresenceUpdate = "presence_update"
	MessageTypeCursorMove     = "cursor_move"
	MessageTypeUserActivity   = "user_activity"
	MessageTypeHeartbeat      = "heartbeat"
	MessageTypeEntityChanged  = "entity_changed"
	MessageTypePresenceState  = "presence_state"
)

// Envelope is the wire format for every relay message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an Envelope. Marshal failures return a
// payload-less envelope; the payloads used here are plain structs that
// cannot fail to marshal.
func NewEnvelope(msgType string, payload interface{}) Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{Type: msgType}
	}
	return Envelope{Type: msgType, Payload: raw}
}

// CursorPayload is the body of a cursor_move message.
type CursorPayload struct {
	UserID string          `json:"userId"`
	Cursor models.Position `json:"cursor"`
}

// ActivityPayload is the body of a user_activity message.
type ActivityPayload struct {
	UserID      string `json:"userId"`
	CurrentCard string `json:"currentCard,omitempty"`
}

// PresenceStatePayload is sent to a joining member: the current presence
// of everyone already in the board group.
type PresenceStatePayload struct {
	BoardID string            `json:"boardId"`
	Users   []models.Presence `json:"users"`
}
