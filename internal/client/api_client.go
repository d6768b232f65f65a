// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

// Package client implements the embedded Fableboard client: a REST client,
// an in-memory board view mutated optimistically, a durable local fallback
// cache, the mutation pipeline tying the three together, and a
// reconnecting relay session.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/fableboard/internal/models"
)

// TransientError marks a failure worth retrying or falling back on:
// network trouble or a server-side error. Client-side errors (4xx other
// than conflicts) are returned unwrapped since retrying cannot help.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient persistence failure: %v", e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// VersionConflictError reports that the server refused a card update
// because the submitted version was stale.
type VersionConflictError struct {
	CardID   string
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("card %s version conflict: expected %d, actual %d", e.CardID, e.Expected, e.Actual)
}

// APIClient talks to the Fableboard REST API with bearer authentication.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient creates a client for the server at baseURL.
func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope mirrors the server's uniform response shape with the payload
// left raw for caller-side decoding.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error,omitempty"`
}

// do issues one request and decodes the response envelope into out (which
// may be nil for calls whose payload the caller discards).
func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &TransientError{Cause: err}
	}

	if resp.StatusCode >= 500 {
		return &TransientError{Cause: fmt.Errorf("server returned %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &TransientError{Cause: fmt.Errorf("undecodable response (%d): %w", resp.StatusCode, err)}
	}

	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, env.Error)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response payload: %w", err)
		}
	}
	return nil
}

// apiError converts an error envelope into a typed client error.
func apiError(status int, apiErr *models.APIError) error {
	if apiErr == nil {
		return fmt.Errorf("request failed with status %d", status)
	}
	if status == http.StatusConflict && apiErr.Code == "VERSION_CONFLICT" {
		conflict := &VersionConflictError{}
		if id, ok := apiErr.Details["cardId"].(string); ok {
			conflict.CardID = id
		}
		if v, ok := apiErr.Details["expectedVersion"].(float64); ok {
			conflict.Expected = int64(v)
		}
		if v, ok := apiErr.Details["actualVersion"].(float64); ok {
			conflict.Actual = int64(v)
		}
		return conflict
	}
	if status == http.StatusTooManyRequests {
		return &TransientError{Cause: fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)}
	}
	return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
}

func boardPath(boardID, rest string) string {
	return "/api/v1/boards/" + boardID + rest
}

// GetBoardData fetches the combined entity snapshot for a board.
func (c *APIClient) GetBoardData(ctx context.Context, boardID string) (*models.BoardData, error) {
	var data models.BoardData
	if err := c.do(ctx, http.MethodGet, boardPath(boardID, "/data"), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ImportBoard replaces the board's content with the snapshot.
func (c *APIClient) ImportBoard(ctx context.Context, boardID string, snapshot *models.BoardData) error {
	return c.do(ctx, http.MethodPost, boardPath(boardID, "/import"), snapshot, nil)
}

// createCardBody mirrors the server's card creation payload.
type createCardBody struct {
	ID      string          `json:"_id"`
	Type    models.CardType `json:"type"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Title   string          `json:"title"`
	Content string          `json:"content"`
	Tags    []string        `json:"tags"`
}

// CreateCard persists a locally created card. The ID travels with the
// request so a retried create is idempotent.
func (c *APIClient) CreateCard(ctx context.Context, card *models.Card) (*models.Card, error) {
	body := createCardBody{
		ID:      card.ID,
		Type:    card.Type,
		X:       card.X,
		Y:       card.Y,
		Title:   card.Title,
		Content: card.Content,
		Tags:    card.Tags,
	}
	var created models.Card
	if err := c.do(ctx, http.MethodPost, boardPath(card.BoardID, "/cards"), body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// updateCardBody is a card patch plus the optional expected version.
type updateCardBody struct {
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
	models.CardPatch
}

// UpdateCard patches a card. A nil expectedVersion opts out of conflict
// detection (last-write-wins, used for position drags).
func (c *APIClient) UpdateCard(ctx context.Context, boardID, cardID string, patch *models.CardPatch, expectedVersion *int64) (*models.Card, error) {
	body := updateCardBody{ExpectedVersion: expectedVersion, CardPatch: *patch}
	var updated models.Card
	if err := c.do(ctx, http.MethodPatch, boardPath(boardID, "/cards/"+cardID), body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCard removes a card, cascading server-side.
func (c *APIClient) DeleteCard(ctx context.Context, boardID, cardID string) error {
	return c.do(ctx, http.MethodDelete, boardPath(boardID, "/cards/"+cardID), nil, nil)
}

// createConnectionBody mirrors the server's connection creation payload.
type createConnectionBody struct {
	ID         string                `json:"_id"`
	FromCardID string                `json:"fromCardId"`
	ToCardID   string                `json:"toCardId"`
	Label      string                `json:"label"`
	Type       models.ConnectionType `json:"type"`
	Color      string                `json:"color"`
}

// CreateConnection persists a locally created connection.
func (c *APIClient) CreateConnection(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	body := createConnectionBody{
		ID:         conn.ID,
		FromCardID: conn.FromCardID,
		ToCardID:   conn.ToCardID,
		Label:      conn.Label,
		Type:       conn.Type,
		Color:      conn.Color,
	}
	var created models.Connection
	if err := c.do(ctx, http.MethodPost, boardPath(conn.BoardID, "/connections"), body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateConnection patches a connection last-write-wins.
func (c *APIClient) UpdateConnection(ctx context.Context, boardID, connID string, patch *models.ConnectionPatch) (*models.Connection, error) {
	var updated models.Connection
	if err := c.do(ctx, http.MethodPatch, boardPath(boardID, "/connections/"+connID), patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteConnection removes a connection.
func (c *APIClient) DeleteConnection(ctx context.Context, boardID, connID string) error {
	return c.do(ctx, http.MethodDelete, boardPath(boardID, "/connections/"+connID), nil, nil)
}

// createCommentBody mirrors the server's comment creation payload. The
// server re-derives mentions; none are sent.
type createCommentBody struct {
	ID              string           `json:"_id"`
	CardID          string           `json:"cardId"`
	Content         string           `json:"content"`
	Position        *models.Position `json:"position,omitempty"`
	ParentCommentID string           `json:"parentCommentId,omitempty"`
}

// CreateComment persists a locally created comment.
func (c *APIClient) CreateComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	body := createCommentBody{
		ID:              comment.ID,
		CardID:          comment.CardID,
		Content:         comment.Content,
		ParentCommentID: comment.ParentCommentID,
	}
	if comment.X != nil && comment.Y != nil {
		body.Position = &models.Position{X: *comment.X, Y: *comment.Y}
	}
	var created models.Comment
	if err := c.do(ctx, http.MethodPost, boardPath(comment.BoardID, "/comments"), body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateComment patches a comment last-write-wins.
func (c *APIClient) UpdateComment(ctx context.Context, boardID, commentID string, patch *models.CommentPatch) (*models.Comment, error) {
	var updated models.Comment
	if err := c.do(ctx, http.MethodPatch, boardPath(boardID, "/comments/"+commentID), patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteComment removes a comment and its replies.
func (c *APIClient) DeleteComment(ctx context.Context, boardID, commentID string) error {
	return c.do(ctx, http.MethodDelete, boardPath(boardID, "/comments/"+commentID), nil, nil)
}
