// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package store

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by store operations. Callers branch with
// errors.Is; the API layer maps them onto response codes.
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrVersionConflict is returned when a card update carries an
	// expected version that no longer matches the stored row. The caller
	// must refetch and re-apply.
	ErrVersionConflict = errors.New("version conflict")

	// ErrCrossBoard is returned when a connection's endpoints live on
	// different boards than the connection itself.
	ErrCrossBoard = errors.New("endpoints must belong to the connection's board")
)

// VersionConflictError wraps ErrVersionConflict with the versions involved
// so the API can report them to the client.
type VersionConflictError struct {
	CardID   string
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on card %s: expected %d, stored %d", e.CardID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error {
	return ErrVersionConflict
}

// NotFoundError wraps ErrNotFound with the entity kind and ID.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
