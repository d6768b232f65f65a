// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/fableboard/internal/models"
)

// GetBoardData returns the combined snapshot of the board's cards,
// connections, and comments. The three queries run concurrently; the first
// error aborts the snapshot. The snapshot is not a point-in-time
// transaction across the three lists, which matches how clients consume
// it: a subsequent change event triggers a refetch anyway.
func (s *Store) GetBoardData(ctx context.Context, boardID string) (*models.BoardData, error) {
	if _, err := s.GetBoard(ctx, boardID); err != nil {
		return nil, err
	}

	var (
		wg   sync.WaitGroup
		data models.BoardData
		errs [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		data.Cards, errs[0] = s.ListCards(ctx, boardID)
	}()
	go func() {
		defer wg.Done()
		data.Connections, errs[1] = s.ListConnections(ctx, boardID)
	}()
	go func() {
		defer wg.Done()
		data.Comments, errs[2] = s.ListComments(ctx, boardID)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("board snapshot: %w", err)
		}
	}
	return &data, nil
}
