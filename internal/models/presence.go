// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package models

import "time"

// Presence is the ephemeral per-(user, board) collaboration state tracked
// by the relay. It is created when a connection joins a board group,
// updated on cursor and activity events, and discarded when the
// connection closes. Nothing here is persisted beyond last-seen.
type Presence struct {
	UserID      string    `json:"userId"`
	BoardID     string    `json:"boardId"`
	Name        string    `json:"name,omitempty"`
	Role        Role      `json:"role,omitempty"`
	IsOnline    bool      `json:"isOnline"`
	Cursor      *Position `json:"cursor,omitempty"`
	CurrentCard string    `json:"currentCard,omitempty"`
	LastSeen    time.Time `json:"lastSeen"`
}

// User is an account record. Placeholder users are created when a board
// invitation names an email with no existing account; they carry a random
// credential hash until the invitee signs in through the credential
// service.
type User struct {
	ID           string    `json:"_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
