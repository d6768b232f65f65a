// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package models

import "time"

// APIResponse is the uniform envelope for every REST response.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response bookkeeping.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a coded error payload. Code is machine-readable
// (VERSION_CONFLICT, FORBIDDEN, NOT_FOUND, ...) so clients can branch on
// it; Message is for humans.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// BoardData is the combined snapshot of every entity scoped to a board.
// The three lists are fetched concurrently; their relative order carries
// no meaning.
type BoardData struct {
	Cards       []Card       `json:"cards"`
	Connections []Connection `json:"connections"`
	Comments    []Comment    `json:"comments"`
}
