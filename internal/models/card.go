// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package models

import "time"

// CardType classifies a card on the canvas.
type CardType string

const (
	CardTypeNote      CardType = "note"
	CardTypeCharacter CardType = "character"
	CardTypeLocation  CardType = "location"
	CardTypePlot      CardType = "plot"
	CardTypeItem      CardType = "item"
)

// Valid reports whether the card type is one of the known values.
func (t CardType) Valid() bool {
	switch t {
	case CardTypeNote, CardTypeCharacter, CardTypeLocation, CardTypePlot, CardTypeItem:
		return true
	}
	return false
}

// Position is a point in canvas coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Attachment records file metadata attached to a card. The blob itself
// lives in external storage; only the reference is kept here.
type Attachment struct {
	ID         string    `json:"_id"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	FileSize   int64     `json:"fileSize"`
	MimeType   string    `json:"mimeType"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Card is a positioned, typed content unit on a board's canvas.
//
// Version increases strictly on every successful update; an update
// submitted with a stale version is rejected with a version conflict.
type Card struct {
	ID          string       `json:"_id" validate:"required"`
	BoardID     string       `json:"boardId" validate:"required"`
	Type        CardType     `json:"type" validate:"required,cardtype"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	Title       string       `json:"title,omitempty"`
	Content     string       `json:"content"`
	Tags        []string     `json:"tags"`
	Attachments []Attachment `json:"attachments"`
	CreatedBy   string       `json:"createdBy"`
	Version     int64        `json:"version"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
