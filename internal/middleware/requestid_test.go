// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/fableboard/internal/logging"
)

func TestRequestIDGenerated(t *testing.T) {
	var gotID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/boards", nil))

	if gotID == "" {
		t.Fatal("request ID missing from context")
	}
	if header := rec.Header().Get("X-Request-ID"); header != gotID {
		t.Errorf("response header %q does not match context ID %q", header, gotID)
	}
}

func TestRequestIDHonoursUpstream(t *testing.T) {
	var gotID, gotLogged string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
		gotLogged = logging.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/boards", nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotID != "upstream-42" {
		t.Errorf("context ID = %q, want upstream-42", gotID)
	}
	if gotLogged != "upstream-42" {
		t.Errorf("logging context ID = %q, want upstream-42", gotLogged)
	}
}

func TestMetricsResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapper := &metricsResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	wrapper.WriteHeader(http.StatusConflict)

	if wrapper.statusCode != http.StatusConflict {
		t.Errorf("captured status = %d, want %d", wrapper.statusCode, http.StatusConflict)
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("underlying status = %d, want %d", rec.Code, http.StatusConflict)
	}
}
