// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package models

// ConnectionType classifies a directed edge between two cards.
type ConnectionType string

const (
	ConnectionTypeRelationship ConnectionType = "relationship"
	ConnectionTypeDependency   ConnectionType = "dependency"
	ConnectionTypeTimeline     ConnectionType = "timeline"
	ConnectionTypeCustom       ConnectionType = "custom"
)

// Valid reports whether the connection type is one of the known values.
func (t ConnectionType) Valid() bool {
	switch t {
	case ConnectionTypeRelationship, ConnectionTypeDependency, ConnectionTypeTimeline, ConnectionTypeCustom:
		return true
	}
	return false
}

// Connection is a directed, typed edge between two cards on the same
// board. Both endpoints must exist when the connection is created; a
// connection whose endpoint is deleted is removed, never left dangling.
type Connection struct {
	ID         string         `json:"_id" validate:"required"`
	BoardID    string         `json:"boardId" validate:"required"`
	FromCardID string         `json:"fromCardId" validate:"required"`
	ToCardID   string         `json:"toCardId" validate:"required"`
	Label      string         `json:"label,omitempty"`
	Type       ConnectionType `json:"type" validate:"required,conntype"`
	Color      string         `json:"color,omitempty"`
	CreatedBy  string         `json:"createdBy"`
}
