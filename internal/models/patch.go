// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package models

// Typed partial-update payloads, one per entity kind. Handlers decode
// these with unknown-field rejection so an open-ended map can never drift
// the schema silently. Nil fields mean "leave unchanged".

// CardPatch is a partial update to a card. A drag sends only Position;
// content edits send the fields they touch.
type CardPatch struct {
	Type     *CardType     `json:"type,omitempty" validate:"omitempty,cardtype"`
	Position *Position     `json:"position,omitempty"`
	Title    *string       `json:"title,omitempty"`
	Content  *string       `json:"content,omitempty"`
	Tags     *[]string     `json:"tags,omitempty"`
	Attach   *[]Attachment `json:"attachments,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p *CardPatch) IsZero() bool {
	return p.Type == nil && p.Position == nil && p.Title == nil &&
		p.Content == nil && p.Tags == nil && p.Attach == nil
}

// Apply copies the patched fields onto the card. Version and timestamps
// are managed by the store, not the patch.
func (p *CardPatch) Apply(c *Card) {
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Position != nil {
		c.X = p.Position.X
		c.Y = p.Position.Y
	}
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.Tags != nil {
		c.Tags = *p.Tags
	}
	if p.Attach != nil {
		c.Attachments = *p.Attach
	}
}

// BoardPatch is a partial update to board metadata. Permissions are not
// patchable here; grants and revokes go through the invite operation.
type BoardPatch struct {
	Name           *string   `json:"name,omitempty" validate:"omitempty,max=200"`
	Description    *string   `json:"description,omitempty"`
	ParentFolderID *string   `json:"parentFolderId,omitempty"`
	Tags           *[]string `json:"tags,omitempty"`
	IsPublic       *bool     `json:"isPublic,omitempty"`
}

// Apply copies the patched fields onto the board.
func (p *BoardPatch) Apply(b *Board) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.ParentFolderID != nil {
		b.ParentFolderID = *p.ParentFolderID
	}
	if p.Tags != nil {
		b.Tags = *p.Tags
	}
	if p.IsPublic != nil {
		b.IsPublic = *p.IsPublic
	}
}

// ConnectionPatch is a partial update to a connection.
type ConnectionPatch struct {
	Label *string         `json:"label,omitempty"`
	Type  *ConnectionType `json:"type,omitempty" validate:"omitempty,conntype"`
	Color *string         `json:"color,omitempty"`
}

// Apply copies the patched fields onto the connection.
func (p *ConnectionPatch) Apply(c *Connection) {
	if p.Label != nil {
		c.Label = *p.Label
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
}

// CommentPatch is a partial update to a comment. Changing Content
// re-derives the mention list; Mentions itself is never patchable.
type CommentPatch struct {
	Content  *string   `json:"content,omitempty"`
	Resolved *bool     `json:"resolved,omitempty"`
	Position *Position `json:"position,omitempty"`
}

// Apply copies the patched fields onto the comment, re-deriving mentions
// when content changes.
func (p *CommentPatch) Apply(c *Comment) {
	if p.Content != nil {
		c.Content = *p.Content
		c.Mentions = ExtractMentions(c.Content)
	}
	if p.Resolved != nil {
		c.Resolved = *p.Resolved
	}
	if p.Position != nil {
		x, y := p.Position.X, p.Position.Y
		c.X = &x
		c.Y = &y
	}
}
