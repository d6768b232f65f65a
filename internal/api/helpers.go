// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/fableboard/internal/logging"
	"github.com/tomtom215/fableboard/internal/models"
	"github.com/tomtom215/fableboard/internal/store"
	"github.com/tomtom215/fableboard/internal/validation"
)

// sanitizeLogValue removes control characters from strings to prevent log
// injection: newlines and friends could otherwise forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response. Board data is live collaborative
// state, so responses are never cacheable.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData sends a success envelope with query timing metadata.
func respondData(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondStoreError maps store sentinel errors onto response codes.
// Unmapped errors are logged and reported as INTERNAL_ERROR without
// leaking internals to the client.
func respondStoreError(w http.ResponseWriter, err error) {
	var conflict *store.VersionConflictError
	if errors.As(err, &conflict) {
		respondError(w, http.StatusConflict, "VERSION_CONFLICT",
			"Card was modified by someone else, refetch and retry",
			map[string]interface{}{
				"cardId":          conflict.CardID,
				"expectedVersion": conflict.Expected,
				"actualVersion":   conflict.Actual,
			})
		return
	}

	var notFound *store.NotFoundError
	if errors.As(err, &notFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND",
			fmt.Sprintf("%s not found", notFound.Entity), nil)
		return
	}

	if errors.Is(err, store.ErrCrossBoard) {
		respondError(w, http.StatusBadRequest, "INVALID_REFERENCE",
			"Referenced entities must belong to the same board", nil)
		return
	}

	logging.Error().Str("error", sanitizeLogValue(err.Error())).Msg("API store error")
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}

// respondForbidden is the single shape for authorization denials.
func respondForbidden(w http.ResponseWriter) {
	respondError(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this board", nil)
}

// decodeJSON decodes a request body, rejecting unknown fields so schema
// drift surfaces as a client error instead of silent data loss.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// validateRequest validates a struct and converts failures to the API
// error format.
func validateRequest(v interface{}) *models.APIError {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return nil
	}
	apiErr := verr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}
