// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/fableboard/internal/logging"
	"github.com/tomtom215/fableboard/internal/metrics"
)

// sweepStatements remove rows whose parent no longer exists. Cascade
// deletes are best-effort, so a crash mid-cascade can leave cards without
// a board, connections without an endpoint, or comments without a card.
// Each statement is independent; a failure in one does not stop the rest.
var sweepStatements = []struct {
	table string
	query string
}{
	{
		table: "cards",
		query: `DELETE FROM cards WHERE board_id NOT IN (SELECT id FROM boards)`,
	},
	{
		table: "connections",
		query: `DELETE FROM connections WHERE board_id NOT IN (SELECT id FROM boards)
			OR from_card_id NOT IN (SELECT id FROM cards)
			OR to_card_id NOT IN (SELECT id FROM cards)`,
	},
	{
		table: "comments",
		query: `DELETE FROM comments WHERE board_id NOT IN (SELECT id FROM boards)
			OR card_id NOT IN (SELECT id FROM cards)
			OR (parent_comment_id <> '' AND parent_comment_id NOT IN (SELECT id FROM comments))`,
	},
}

// Sweep runs one orphan-removal pass and returns the number of rows
// removed. Cards are swept before connections and comments so edges whose
// endpoint was orphaned go in the same pass.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	metrics.SweeperRuns.Inc()

	var (
		total    int64
		firstErr error
	)
	for _, stmt := range sweepStatements {
		start := time.Now()
		res, err := s.db.ExecContext(ctx, stmt.query)
		metrics.RecordDBQuery("sweep", stmt.table, time.Since(start), err)
		if err != nil {
			logging.Warn().Err(err).Str("table", stmt.table).Msg("Sweep statement failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("sweep %s: %w", stmt.table, err)
			}
			continue
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			total += n
			metrics.SweeperOrphansRemoved.WithLabelValues(stmt.table).Add(float64(n))
			logging.Info().Str("table", stmt.table).Int64("removed", n).Msg("Swept orphaned rows")
		}
	}
	return total, firstErr
}
