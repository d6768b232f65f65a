// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package services

import (
	"context"
	"time"

	"github.com/tomtom215/fableboard/internal/logging"
)

// Sweeper matches the store's orphan sweep, allowing tests to substitute
// a fake.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// SweeperService periodically reclaims orphaned rows left behind by
// best-effort cascade deletes. A failed pass is logged and retried on the
// next tick; the service itself never crashes over a sweep error, since
// orphans are an eventual-consistency concern, not an emergency.
type SweeperService struct {
	sweeper  Sweeper
	interval time.Duration
}

// NewSweeperService creates the sweeper loop.
func NewSweeperService(sweeper Sweeper, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweeperService{sweeper: sweeper, interval: interval}
}

// Serve implements suture.Service. Runs one pass immediately so orphans
// from a previous crash don't wait a full interval.
func (s *SweeperService) Serve(ctx context.Context) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *SweeperService) runOnce(ctx context.Context) {
	removed, err := s.sweeper.Sweep(ctx)
	if err != nil {
		logging.Warn().Err(err).Int64("removed", removed).Msg("Orphan sweep pass failed")
		return
	}
	if removed > 0 {
		logging.Info().Int64("removed", removed).Msg("Orphan sweep reclaimed rows")
	}
}

// String implements fmt.Stringer for supervision logs.
func (s *SweeperService) String() string {
	return "orphan-sweeper"
}
