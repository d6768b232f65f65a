// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package client

import (
	"sync"

	"github.com/tomtom215/fableboard/internal/models"
)

// BoardView is the client's in-memory picture of one board. Mutations are
// applied here synchronously before persistence starts, so the canvas
// never waits on the network. Card versions are bumped optimistically and
// reconciled when the server's authoritative row comes back.
type BoardView struct {
	mu      sync.RWMutex
	boardID string

	cards       map[string]*models.Card
	connections map[string]*models.Connection
	comments    map[string]*models.Comment
}

// NewBoardView creates an empty view of the board.
func NewBoardView(boardID string) *BoardView {
	return &BoardView{
		boardID:     boardID,
		cards:       make(map[string]*models.Card),
		connections: make(map[string]*models.Connection),
		comments:    make(map[string]*models.Comment),
	}
}

// BoardID returns the board this view pictures.
func (v *BoardView) BoardID() string {
	return v.boardID
}

// LoadSnapshot replaces the view's content with a server or cache
// snapshot.
func (v *BoardView) LoadSnapshot(data *models.BoardData) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.cards = make(map[string]*models.Card, len(data.Cards))
	for i := range data.Cards {
		card := data.Cards[i]
		v.cards[card.ID] = &card
	}
	v.connections = make(map[string]*models.Connection, len(data.Connections))
	for i := range data.Connections {
		conn := data.Connections[i]
		v.connections[conn.ID] = &conn
	}
	v.comments = make(map[string]*models.Comment, len(data.Comments))
	for i := range data.Comments {
		comment := data.Comments[i]
		v.comments[comment.ID] = &comment
	}
}

// Snapshot returns a copy of the current board state, suitable for the
// fallback cache or a bulk import.
func (v *BoardView) Snapshot() *models.BoardData {
	v.mu.RLock()
	defer v.mu.RUnlock()

	data := &models.BoardData{
		Cards:       make([]models.Card, 0, len(v.cards)),
		Connections: make([]models.Connection, 0, len(v.connections)),
		Comments:    make([]models.Comment, 0, len(v.comments)),
	}
	for _, card := range v.cards {
		data.Cards = append(data.Cards, *card)
	}
	for _, conn := range v.connections {
		data.Connections = append(data.Connections, *conn)
	}
	for _, comment := range v.comments {
		data.Comments = append(data.Comments, *comment)
	}
	return data
}

// Card returns a copy of the card, or nil when absent.
func (v *BoardView) Card(id string) *models.Card {
	v.mu.RLock()
	defer v.mu.RUnlock()
	card, ok := v.cards[id]
	if !ok {
		return nil
	}
	copied := *card
	return &copied
}

// CardCount returns the number of cards in the view.
func (v *BoardView) CardCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.cards)
}

// PutCard stores the card, overwriting any local state. Used both for the
// optimistic apply of a create and for reconciling a server response.
func (v *BoardView) PutCard(card *models.Card) {
	copied := *card
	v.mu.Lock()
	v.cards[card.ID] = &copied
	v.mu.Unlock()
}

// PatchCard applies the patch locally and bumps the version optimistically,
// returning the resulting card. Returns nil when the card is absent.
func (v *BoardView) PatchCard(cardID string, patch *models.CardPatch) *models.Card {
	v.mu.Lock()
	defer v.mu.Unlock()

	card, ok := v.cards[cardID]
	if !ok {
		return nil
	}
	patch.Apply(card)
	card.Version++
	copied := *card
	return &copied
}

// RemoveCard deletes the card and mirrors the server's cascade: local
// connections touching the card and comments on it go too.
func (v *BoardView) RemoveCard(cardID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.cards, cardID)
	for id, conn := range v.connections {
		if conn.FromCardID == cardID || conn.ToCardID == cardID {
			delete(v.connections, id)
		}
	}
	for id, comment := range v.comments {
		if comment.CardID == cardID {
			delete(v.comments, id)
		}
	}
}

// Connection returns a copy of the connection, or nil when absent.
func (v *BoardView) Connection(id string) *models.Connection {
	v.mu.RLock()
	defer v.mu.RUnlock()
	conn, ok := v.connections[id]
	if !ok {
		return nil
	}
	copied := *conn
	return &copied
}

// PutConnection stores the connection.
func (v *BoardView) PutConnection(conn *models.Connection) {
	copied := *conn
	v.mu.Lock()
	v.connections[conn.ID] = &copied
	v.mu.Unlock()
}

// PatchConnection applies the patch locally, returning the result or nil
// when absent.
func (v *BoardView) PatchConnection(connID string, patch *models.ConnectionPatch) *models.Connection {
	v.mu.Lock()
	defer v.mu.Unlock()

	conn, ok := v.connections[connID]
	if !ok {
		return nil
	}
	patch.Apply(conn)
	copied := *conn
	return &copied
}

// RemoveConnection deletes the connection.
func (v *BoardView) RemoveConnection(connID string) {
	v.mu.Lock()
	delete(v.connections, connID)
	v.mu.Unlock()
}

// Comment returns a copy of the comment, or nil when absent.
func (v *BoardView) Comment(id string) *models.Comment {
	v.mu.RLock()
	defer v.mu.RUnlock()
	comment, ok := v.comments[id]
	if !ok {
		return nil
	}
	copied := *comment
	return &copied
}

// PutComment stores the comment, deriving mentions locally so the view
// matches what the server will compute.
func (v *BoardView) PutComment(comment *models.Comment) {
	copied := *comment
	copied.Mentions = models.ExtractMentions(copied.Content)
	v.mu.Lock()
	v.comments[comment.ID] = &copied
	v.mu.Unlock()
}

// PatchComment applies the patch locally, returning the result or nil when
// absent. Content changes re-derive mentions through the patch itself.
func (v *BoardView) PatchComment(commentID string, patch *models.CommentPatch) *models.Comment {
	v.mu.Lock()
	defer v.mu.Unlock()

	comment, ok := v.comments[commentID]
	if !ok {
		return nil
	}
	patch.Apply(comment)
	copied := *comment
	return &copied
}

// RemoveComment deletes the comment and its direct replies, mirroring the
// server's cascade.
func (v *BoardView) RemoveComment(commentID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.comments, commentID)
	for id, reply := range v.comments {
		if reply.ParentCommentID == commentID {
			delete(v.comments, id)
		}
	}
}
