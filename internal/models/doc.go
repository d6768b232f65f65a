// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

// Package models defines the Fableboard data model: boards, cards,
// connections, comments, permissions, presence, and the typed patch
// structs used for partial updates.
//
// Entity identifiers are client-generated strings (UUIDs in practice) so
// that create operations can be retried idempotently. Only Card carries a
// version counter; the other kinds are updated last-writer-wins.
package models
