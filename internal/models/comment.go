// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package models

import (
	"regexp"
	"strings"
	"time"
)

// Comment is a threaded annotation attached to exactly one card.
//
// Mentions is derived from Content on every save and is never settable
// independently. Resolved is only ever changed by an explicit action.
type Comment struct {
	ID              string    `json:"_id" validate:"required"`
	BoardID         string    `json:"boardId" validate:"required"`
	CardID          string    `json:"cardId" validate:"required"`
	Content         string    `json:"content" validate:"required"`
	CreatedBy       string    `json:"createdBy"`
	Mentions        []string  `json:"mentions"`
	Resolved        bool      `json:"resolved"`
	X               *float64  `json:"x,omitempty"`
	Y               *float64  `json:"y,omitempty"`
	ParentCommentID string    `json:"parentCommentId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ExtractMentions returns the lowercased user-name tokens mentioned in
// content with an @ prefix, deduplicated in order of first appearance.
// It is a pure function: identical content always yields identical
// mentions.
func ExtractMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(matches))
	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		mentions = append(mentions, name)
	}
	return mentions
}
