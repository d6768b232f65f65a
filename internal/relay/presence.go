// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package relay

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/fableboard/internal/models"
)

// presenceTracker keeps the latest-value presence state per (board, user).
// Only the most recent cursor and activity matter; stale intermediate
// updates are overwritten, never queued.
type presenceTracker struct {
	mu     sync.RWMutex
	boards map[string]map[string]*models.Presence
}

func newPresenceTracker() *presenceTracker {
	return &presenceTracker{boards: make(map[string]map[string]*models.Presence)}
}

func (t *presenceTracker) join(boardID, userID, name string) *models.Presence {
	t.mu.Lock()
	defer t.mu.Unlock()

	board := t.boards[boardID]
	if board == nil {
		board = make(map[string]*models.Presence)
		t.boards[boardID] = board
	}

	p := board[userID]
	if p == nil {
		p = &models.Presence{UserID: userID, BoardID: boardID}
		board[userID] = p
	}
	p.Name = name
	p.IsOnline = true
	p.LastSeen = time.Now().UTC()
	return snapshotOf(p)
}

// leave marks the user offline and returns the final presence, or nil if
// the user was not tracked. The entry is removed: presence is ephemeral
// and nothing survives the connection.
func (t *presenceTracker) leave(boardID, userID string) *models.Presence {
	t.mu.Lock()
	defer t.mu.Unlock()

	board := t.boards[boardID]
	if board == nil {
		return nil
	}
	p := board[userID]
	if p == nil {
		return nil
	}
	delete(board, userID)
	if len(board) == 0 {
		delete(t.boards, boardID)
	}

	p.IsOnline = false
	p.Cursor = nil
	p.CurrentCard = ""
	p.LastSeen = time.Now().UTC()
	return snapshotOf(p)
}

func (t *presenceTracker) cursor(boardID, userID string, pos models.Position) {
	t.touch(boardID, userID, func(p *models.Presence) {
		c := pos
		p.Cursor = &c
	})
}

func (t *presenceTracker) activity(boardID, userID, currentCard string) {
	t.touch(boardID, userID, func(p *models.Presence) {
		p.CurrentCard = currentCard
	})
}

func (t *presenceTracker) heartbeat(boardID, userID string) {
	t.touch(boardID, userID, nil)
}

func (t *presenceTracker) touch(boardID, userID string, apply func(*models.Presence)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	board := t.boards[boardID]
	if board == nil {
		return
	}
	p := board[userID]
	if p == nil {
		return
	}
	if apply != nil {
		apply(p)
	}
	p.LastSeen = time.Now().UTC()
}

// snapshot returns the presence of every online user on the board, sorted
// by user ID for stable output.
func (t *presenceTracker) snapshot(boardID string) []models.Presence {
	t.mu.RLock()
	defer t.mu.RUnlock()

	board := t.boards[boardID]
	users := make([]models.Presence, 0, len(board))
	for _, p := range board {
		users = append(users, *snapshotOf(p))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

func snapshotOf(p *models.Presence) *models.Presence {
	cp := *p
	if p.Cursor != nil {
		c := *p.Cursor
		cp.Cursor = &c
	}
	return &cp
}
