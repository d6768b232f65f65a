// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fableboard/internal/logging"
	"github.com/tomtom215/fableboard/internal/metrics"
	"github.com/tomtom215/fableboard/internal/models"
)

// MutationState is the terminal state of one mutation's journey through
// the pipeline.
type MutationState string

const (
	// StateConfirmed means the server accepted the mutation.
	StateConfirmed MutationState = "confirmed"
	// StateConflict means the server refused a stale card version. The
	// local view keeps the optimistic value; the caller decides whether
	// to refetch.
	StateConflict MutationState = "conflict"
	// StateFallback means persistence failed and the full board snapshot
	// was written to the local cache instead.
	StateFallback MutationState = "fallback"
)

// MutationResult is delivered to the status callback when a mutation
// reaches a terminal state.
type MutationResult struct {
	Entity   string
	EntityID string
	State    MutationState
	Err      error
}

// StatusFunc observes mutation completions, e.g. to surface a
// "saved to cloud" / "saved locally" indicator. May be nil.
type StatusFunc func(MutationResult)

// Pipeline is the optimistic mutation pipeline: every edit lands on the
// BoardView synchronously, then persists in the background through a
// circuit breaker. Persistence failure of any kind degrades to a durable
// local snapshot rather than losing the edit.
type Pipeline struct {
	view    *BoardView
	api     *APIClient
	cache   *LocalCache
	breaker *gobreaker.CircuitBreaker[struct{}]
	status  StatusFunc

	wg sync.WaitGroup
}

// NewPipeline wires the view, REST client and fallback cache together.
func NewPipeline(view *BoardView, api *APIClient, cache *LocalCache, status StatusFunc) *Pipeline {
	settings := gobreaker.Settings{
		Name:        "persistence",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerState(name, to.String())
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Persistence circuit breaker changed state")
		},
		// A version conflict is the server working as intended, not a
		// service failure; it must not open the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var conflict *VersionConflictError
			return errors.As(err, &conflict)
		},
	}

	return &Pipeline{
		view:    view,
		api:     api,
		cache:   cache,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		status:  status,
	}
}

// CreateCard applies a new card locally and persists it in the background.
// The ID is generated client-side before the first attempt so retries are
// idempotent.
func (p *Pipeline) CreateCard(ctx context.Context, card *models.Card) *models.Card {
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	card.BoardID = p.view.BoardID()
	if card.Version == 0 {
		card.Version = 1
	}
	p.view.PutCard(card)

	p.persistAsync(ctx, "card", card.ID, func(ctx context.Context) error {
		created, err := p.api.CreateCard(ctx, card)
		if err != nil {
			return err
		}
		p.view.PutCard(created)
		return nil
	})
	return p.view.Card(card.ID)
}

// UpdateCard applies a content patch locally under an optimistic version
// bump and persists it with conflict detection against the pre-bump
// version.
func (p *Pipeline) UpdateCard(ctx context.Context, cardID string, patch *models.CardPatch) *models.Card {
	before := p.view.Card(cardID)
	if before == nil {
		return nil
	}
	expected := before.Version
	updated := p.view.PatchCard(cardID, patch)

	p.persistAsync(ctx, "card", cardID, func(ctx context.Context) error {
		confirmed, err := p.api.UpdateCard(ctx, p.view.BoardID(), cardID, patch, &expected)
		if err != nil {
			return err
		}
		p.view.PutCard(confirmed)
		return nil
	})
	return updated
}

// MoveCard applies a drag locally and persists a minimal position patch
// without conflict detection: drags are high-frequency and last-write-wins.
func (p *Pipeline) MoveCard(ctx context.Context, cardID string, x, y float64) *models.Card {
	patch := &models.CardPatch{Position: &models.Position{X: x, Y: y}}
	updated := p.view.PatchCard(cardID, patch)
	if updated == nil {
		return nil
	}

	p.persistAsync(ctx, "card", cardID, func(ctx context.Context) error {
		confirmed, err := p.api.UpdateCard(ctx, p.view.BoardID(), cardID, patch, nil)
		if err != nil {
			return err
		}
		p.view.PutCard(confirmed)
		return nil
	})
	return updated
}

// DeleteCard removes the card locally, cascade included, and persists the
// delete.
func (p *Pipeline) DeleteCard(ctx context.Context, cardID string) {
	p.view.RemoveCard(cardID)
	p.persistAsync(ctx, "card", cardID, func(ctx context.Context) error {
		return p.api.DeleteCard(ctx, p.view.BoardID(), cardID)
	})
}

// CreateConnection applies a new connection locally and persists it.
func (p *Pipeline) CreateConnection(ctx context.Context, conn *models.Connection) *models.Connection {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	conn.BoardID = p.view.BoardID()
	p.view.PutConnection(conn)

	p.persistAsync(ctx, "connection", conn.ID, func(ctx context.Context) error {
		created, err := p.api.CreateConnection(ctx, conn)
		if err != nil {
			return err
		}
		p.view.PutConnection(created)
		return nil
	})
	return p.view.Connection(conn.ID)
}

// UpdateConnection applies a patch locally and persists it.
func (p *Pipeline) UpdateConnection(ctx context.Context, connID string, patch *models.ConnectionPatch) *models.Connection {
	updated := p.view.PatchConnection(connID, patch)
	if updated == nil {
		return nil
	}
	p.persistAsync(ctx, "connection", connID, func(ctx context.Context) error {
		confirmed, err := p.api.UpdateConnection(ctx, p.view.BoardID(), connID, patch)
		if err != nil {
			return err
		}
		p.view.PutConnection(confirmed)
		return nil
	})
	return updated
}

// DeleteConnection removes the connection locally and persists the delete.
func (p *Pipeline) DeleteConnection(ctx context.Context, connID string) {
	p.view.RemoveConnection(connID)
	p.persistAsync(ctx, "connection", connID, func(ctx context.Context) error {
		return p.api.DeleteConnection(ctx, p.view.BoardID(), connID)
	})
}

// CreateComment applies a new comment locally, mentions derived, and
// persists it.
func (p *Pipeline) CreateComment(ctx context.Context, comment *models.Comment) *models.Comment {
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}
	comment.BoardID = p.view.BoardID()
	p.view.PutComment(comment)

	p.persistAsync(ctx, "comment", comment.ID, func(ctx context.Context) error {
		created, err := p.api.CreateComment(ctx, comment)
		if err != nil {
			return err
		}
		p.view.PutComment(created)
		return nil
	})
	return p.view.Comment(comment.ID)
}

// UpdateComment applies a patch locally and persists it.
func (p *Pipeline) UpdateComment(ctx context.Context, commentID string, patch *models.CommentPatch) *models.Comment {
	updated := p.view.PatchComment(commentID, patch)
	if updated == nil {
		return nil
	}
	p.persistAsync(ctx, "comment", commentID, func(ctx context.Context) error {
		confirmed, err := p.api.UpdateComment(ctx, p.view.BoardID(), commentID, patch)
		if err != nil {
			return err
		}
		p.view.PutComment(confirmed)
		return nil
	})
	return updated
}

// DeleteComment removes the comment locally, replies included, and
// persists the delete.
func (p *Pipeline) DeleteComment(ctx context.Context, commentID string) {
	p.view.RemoveComment(commentID)
	p.persistAsync(ctx, "comment", commentID, func(ctx context.Context) error {
		return p.api.DeleteComment(ctx, p.view.BoardID(), commentID)
	})
}

// Replay pushes the cached fallback snapshot to the server as a bulk
// import and drops it on success. Called after connectivity returns.
func (p *Pipeline) Replay(ctx context.Context) error {
	boardID := p.view.BoardID()
	snapshot, err := p.cache.LoadSnapshot(boardID)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return nil
		}
		return err
	}

	if err := p.api.ImportBoard(ctx, boardID, snapshot); err != nil {
		metrics.LocalCacheReplays.WithLabelValues("failure").Inc()
		return err
	}
	metrics.LocalCacheReplays.WithLabelValues("success").Inc()
	if err := p.cache.DropSnapshot(boardID); err != nil {
		logging.Warn().Err(err).Str("board_id", boardID).Msg("Failed to drop replayed snapshot")
	}
	return nil
}

// Wait blocks until every outstanding persistence attempt has finished.
// Navigating away does not call this; results are simply abandoned.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// persistAsync runs op through the circuit breaker in the background and
// reports the terminal state. Any failure other than a version conflict
// degrades to a local snapshot write.
func (p *Pipeline) persistAsync(ctx context.Context, entity, id string, op func(context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		_, err := p.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, op(ctx)
		})

		switch {
		case err == nil:
			metrics.CircuitBreakerRequests.WithLabelValues("persistence", "success").Inc()
			p.report(MutationResult{Entity: entity, EntityID: id, State: StateConfirmed})

		case isConflict(err):
			metrics.PipelineMutations.WithLabelValues(string(StateConflict)).Inc()
			p.report(MutationResult{Entity: entity, EntityID: id, State: StateConflict, Err: err})

		default:
			result := "failure"
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				result = "rejected"
			}
			metrics.CircuitBreakerRequests.WithLabelValues("persistence", result).Inc()
			p.fallback(entity, id, err)
		}
	}()
}

// fallback writes the full current snapshot to the local cache. The edit
// survives a reload even though the server never saw it.
func (p *Pipeline) fallback(entity, id string, cause error) {
	if err := p.cache.SaveSnapshot(p.view.BoardID(), p.view.Snapshot()); err != nil {
		logging.Error().Err(err).
			Str("board_id", p.view.BoardID()).
			Msg("Fallback snapshot write failed, edit is volatile")
	}
	metrics.PipelineMutations.WithLabelValues(string(StateFallback)).Inc()
	p.report(MutationResult{Entity: entity, EntityID: id, State: StateFallback, Err: cause})
}

func (p *Pipeline) report(result MutationResult) {
	if result.State == StateConfirmed {
		metrics.PipelineMutations.WithLabelValues(string(StateConfirmed)).Inc()
	}
	if p.status != nil {
		p.status(result)
	}
}

func isConflict(err error) bool {
	var conflict *VersionConflictError
	return errors.As(err, &conflict)
}
