// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/fableboard/internal/auth"
	"github.com/tomtom215/fableboard/internal/config"
	"github.com/tomtom215/fableboard/internal/models"
	"github.com/tomtom215/fableboard/internal/relay"
	"github.com/tomtom215/fableboard/internal/store"
)

// testDBSemaphore serializes DuckDB usage across tests. Concurrent CGO
// connections can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

const testJWTSecret = "test-secret-0123456789abcdef0123456789"

type testServer struct {
	router http.Handler
	store  *store.Store
	jwt    *auth.JWTManager
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	st, err := store.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"}, nil)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	secCfg := &config.SecurityConfig{
		JWTSecret:       testJWTSecret,
		SessionTimeout:  time.Hour,
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	}
	mgr, err := auth.NewJWTManager(secCfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	wsLimiter := auth.NewRateLimiter(1000, time.Minute)
	t.Cleanup(wsLimiter.Stop)

	cfg := &config.Config{Security: *secCfg}
	hub := relay.NewHub()
	handler := NewHandler(st, hub, secCfg.CORSOrigins)
	router := NewRouter(cfg, handler, auth.NewMiddleware(mgr), wsLimiter)

	return &testServer{router: router, store: st, jwt: mgr}
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := ts.jwt.GenerateToken(auth.Identity{
		UserID: userID,
		Email:  userID + "@example.com",
		Name:   userID,
	})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

// do issues a request against the router and decodes the response envelope.
func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, *models.APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response envelope (%d %s): %v", rec.Code, rec.Body.String(), err)
	}
	return rec.Code, &resp
}

func (ts *testServer) mustCreateBoard(t *testing.T, token string, isPublic bool) string {
	t.Helper()
	boardID := uuid.New().String()
	code, resp := ts.do(t, http.MethodPost, "/api/v1/boards", token, map[string]interface{}{
		"_id":      boardID,
		"name":     "Novel outline",
		"isPublic": isPublic,
	})
	if code != http.StatusCreated {
		t.Fatalf("create board = %d (%+v), want 201", code, resp.Error)
	}
	return boardID
}

func (ts *testServer) mustCreateCard(t *testing.T, token, boardID string) string {
	t.Helper()
	cardID := uuid.New().String()
	code, resp := ts.do(t, http.MethodPost, "/api/v1/boards/"+boardID+"/cards", token, map[string]interface{}{
		"_id":   cardID,
		"type":  "note",
		"x":     10.0,
		"y":     20.0,
		"title": "Opening scene",
	})
	if code != http.StatusCreated {
		t.Fatalf("create card = %d (%+v), want 201", code, resp.Error)
	}
	return cardID
}

func TestHealthRequiresNoAuth(t *testing.T) {
	ts := setupTestServer(t)

	code, resp := ts.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if code != http.StatusOK {
		t.Fatalf("health = %d, want 200", code)
	}
	if resp.Status != "success" {
		t.Errorf("status = %q, want success", resp.Status)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	ts := setupTestServer(t)

	code, resp := ts.do(t, http.MethodGet, "/api/v1/boards", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", code)
	}
	if resp.Error == nil || resp.Error.Code != "UNAUTHORIZED" {
		t.Errorf("error = %+v, want UNAUTHORIZED", resp.Error)
	}
}

func TestBoardLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.token(t, "alice")

	boardID := ts.mustCreateBoard(t, alice, false)

	code, resp := ts.do(t, http.MethodGet, "/api/v1/boards/"+boardID, alice, nil)
	if code != http.StatusOK {
		t.Fatalf("get board = %d, want 200", code)
	}
	board, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("board payload has unexpected shape: %T", resp.Data)
	}
	if board["name"] != "Novel outline" {
		t.Errorf("name = %v, want Novel outline", board["name"])
	}

	code, _ = ts.do(t, http.MethodPatch, "/api/v1/boards/"+boardID, alice, map[string]interface{}{
		"name": "Renamed outline",
	})
	if code != http.StatusOK {
		t.Fatalf("patch board = %d, want 200", code)
	}

	code, resp = ts.do(t, http.MethodGet, "/api/v1/boards", alice, nil)
	if code != http.StatusOK {
		t.Fatalf("list boards = %d, want 200", code)
	}
	boards, ok := resp.Data.([]interface{})
	if !ok || len(boards) != 1 {
		t.Fatalf("board list = %v, want exactly one entry", resp.Data)
	}

	code, _ = ts.do(t, http.MethodDelete, "/api/v1/boards/"+boardID, alice, nil)
	if code != http.StatusOK {
		t.Fatalf("delete board = %d, want 200", code)
	}

	code, resp = ts.do(t, http.MethodGet, "/api/v1/boards/"+boardID, alice, nil)
	if code != http.StatusNotFound {
		t.Fatalf("get deleted board = %d (%+v), want 404", code, resp.Error)
	}
}

func TestPrivateBoardHiddenFromStrangers(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.token(t, "alice")
	mallory := ts.token(t, "mallory")

	boardID := ts.mustCreateBoard(t, alice, false)

	code, resp := ts.do(t, http.MethodGet, "/api/v1/boards/"+boardID, mallory, nil)
	if code != http.StatusForbidden {
		t.Fatalf("stranger get = %d, want 403", code)
	}
	if resp.Error == nil || resp.Error.Code != "FORBIDDEN" {
		t.Errorf("error = %+v, want FORBIDDEN", resp.Error)
	}
}

func TestPublicBoardReadableButNotWritable(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.token(t, "alice")
	bob := ts.token(t, "bob")

	boardID := ts.mustCreateBoard(t, alice, true)

	code, _ := ts.do(t, http.MethodGet, "/api/v1/boards/"+boardID+"/data", bob, nil)
	if code != http.StatusOK {
		t.Fatalf("public read = %d, want 200", code)
	}

	code, resp := ts.do(t, http.MethodPost, "/api/v1/boards/"+boardID+"/cards", bob, map[string]interface{}{
		"_id":  uuid.New().String(),
		"type": "note",
	})
	if code != http.StatusForbidden {
		t.Fatalf("public write = %d (%+v), want 403", code, resp.Error)
	}
}

func TestCardVersionConflictEnvelope(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.token(t, "alice")
	boardID := ts.mustCreateBoard(t, alice, false)
	cardID := ts.mustCreateCard(t, alice, boardID)

	cardPath := "/api/v1/boards/" + boardID + "/cards/" + cardID

	code, resp := ts.do(t, http.MethodPatch, cardPath, alice, map[string]interface{}{
		"expectedVersion": 1,
		"title":           "Revised scene",
	})
	if code != http.StatusOK {
		t.Fatalf("first update = %d (%+v), want 200", code, resp.Error)
	}
	card := resp.Data.(map[string]interface{})
	if v := card["version"].(float64); v != 2 {
		t.Errorf("version after update = %v, want 2", v)
	}

	// A second writer still holding version 1 must be refused.
	code, resp = ts.do(t, http.MethodPatch, cardPath, alice, map[string]interface{}{
		"expectedVersion": 1,
		"title":           "Competing revision",
	})
	if code != http.StatusConflict {
		t.Fatalf("stale update = %d, want 409", code)
	}
	if resp.Error == nil || resp.Error.Code != "VERSION_CONFLICT" {
		t.Fatalf("error = %+v, want VERSION_CONFLICT", resp.Error)
	}
	if resp.Error.Details["actualVersion"].(float64) != 2 {
		t.Errorf("actualVersion = %v, want 2", resp.Error.Details["actualVersion"])
	}

	// Omitting expectedVersion applies last-write-wins regardless.
	code, resp = ts.do(t, http.MethodPatch, cardPath, alice, map[string]interface{}{
		"position": map[string]float64{"x": 300, "y": 400},
	})
	if code != http.StatusOK {
		t.Fatalf("positional update = %d (%+v), want 200", code, resp.Error)
	}
	card = resp.Data.(map[string]interface{})
	if v := card["version"].(float64); v != 3 {
		t.Errorf("version after LWW update = %v, want 3", v)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.token(t, "alice")
	boardID := ts.mustCreateBoard(t, alice, false)

	code, resp := ts.do(t, http.MethodPost, "/api/v1/boards/"+boardID+"/cards", alice, map[string]interface{}{
		"_id":     uuid.New().String(),
		"type":    "note",
		"mystery": true,
	})
	if code != http.StatusBadRequest {
		t.Fatalf("unknown field = %d, want 400", code)
	}
	if resp.Error == nil || resp.Error.Code != "INVALID_BODY" {
		t.Errorf("error = %+v, want INVALID_BODY", resp.Error)
	}
}

func TestInvalidCardTypeRejected(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.token(t, "alice")
	boardID := ts.mustCreateBoard(t, alice, false)

	code, resp := ts.do(t, http.MethodPost, "/api/v1/boards/"+boardID+"/cards", alice, map[string]interface{}{
		"_id":  uuid.New().String(),
		"type": "spreadsheet",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("invalid type = %d, want 400", code)
	}
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v, want VALIDATION_ERROR", resp.Error)
	}
}

func TestCardPathScopedToBoard(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.token(t, "alice")
	boardA := ts.mustCreateBoard(t, alice, false)
	boardB := ts.mustCreateBoard(t, alice, false)
	cardOnB := ts.mustCreateCard(t, alice, boardB)

	// Addressing board B's card through board A must not resolve.
	code, _ := ts.do(t, http.MethodPatch, "/api/v1/boards/"+boardA+"/cards/"+cardOnB, alice, map[string]interface{}{
		"title": "Hijacked",
	})
	if code != http.StatusNotFound {
		t.Fatalf("cross-board patch = %d, want 404", code)
	}

	code, _ = ts.do(t, http.MethodDelete, "/api/v1/boards/"+boardA+"/cards/"+cardOnB, alice, nil)
	if code != http.StatusNotFound {
		t.Fatalf("cross-board delete = %d, want 404", code)
	}
}

func TestInviteAndRevokeFlow(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.token(t, "alice")
	boardID := ts.mustCreateBoard(t, alice, false)

	code, resp := ts.do(t, http.MethodPost, "/api/v1/boards/"+boardID+"/permissions", alice, map[string]interface{}{
		"email": "bob@example.com",
		"role":  "editor",
	})
	if code != http.StatusOK {
		t.Fatalf("invite = %d (%+v), want 200", code, resp.Error)
	}
	payload := resp.Data.(map[string]interface{})
	user, ok := payload["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("invite payload missing user: %v", payload)
	}
	bobID, _ := user["_id"].(string)
	if bobID == "" {
		t.Fatal("invited user has no ID")
	}

	// The invitee can now write.
	bob := ts.token(t, bobID)
	ts.mustCreateCard(t, bob, boardID)

	// But cannot manage permissions.
	code, _ = ts.do(t, http.MethodPost, "/api/v1/boards/"+boardID+"/permissions", bob, map[string]interface{}{
		"email": "carol@example.com",
		"role":  "viewer",
	})
	if code != http.StatusForbidden {
		t.Fatalf("editor invite = %d, want 403", code)
	}

	code, _ = ts.do(t, http.MethodDelete, "/api/v1/boards/"+boardID+"/permissions/"+bobID, alice, nil)
	if code != http.StatusOK {
		t.Fatalf("revoke = %d, want 200", code)
	}

	code, _ = ts.do(t, http.MethodGet, "/api/v1/boards/"+boardID, bob, nil)
	if code != http.StatusForbidden {
		t.Fatalf("revoked access = %d, want 403", code)
	}
}

func TestCommentLifecycleAndMentions(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.token(t, "alice")
	boardID := ts.mustCreateBoard(t, alice, false)
	cardID := ts.mustCreateCard(t, alice, boardID)

	commentID := uuid.New().String()
	code, resp := ts.do(t, http.MethodPost, "/api/v1/boards/"+boardID+"/comments", alice, map[string]interface{}{
		"_id":     commentID,
		"cardId":  cardID,
		"content": "What does @Bob think about this?",
	})
	if code != http.StatusCreated {
		t.Fatalf("create comment = %d (%+v), want 201", code, resp.Error)
	}
	comment := resp.Data.(map[string]interface{})
	mentions, _ := comment["mentions"].([]interface{})
	if len(mentions) != 1 || mentions[0] != "bob" {
		t.Errorf("mentions = %v, want [bob]", mentions)
	}

	code, resp = ts.do(t, http.MethodPatch, "/api/v1/boards/"+boardID+"/comments/"+commentID, alice, map[string]interface{}{
		"content": "Asking @carol instead.",
	})
	if code != http.StatusOK {
		t.Fatalf("patch comment = %d (%+v), want 200", code, resp.Error)
	}
	comment = resp.Data.(map[string]interface{})
	mentions, _ = comment["mentions"].([]interface{})
	if len(mentions) != 1 || mentions[0] != "carol" {
		t.Errorf("mentions after edit = %v, want [carol]", mentions)
	}

	code, _ = ts.do(t, http.MethodDelete, "/api/v1/boards/"+boardID+"/comments/"+commentID, alice, nil)
	if code != http.StatusOK {
		t.Fatalf("delete comment = %d, want 200", code)
	}
}

func TestConnectionEndpointsMustShareBoard(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.token(t, "alice")
	boardA := ts.mustCreateBoard(t, alice, false)
	boardB := ts.mustCreateBoard(t, alice, false)
	cardA := ts.mustCreateCard(t, alice, boardA)
	cardB := ts.mustCreateCard(t, alice, boardB)

	code, resp := ts.do(t, http.MethodPost, "/api/v1/boards/"+boardA+"/connections", alice, map[string]interface{}{
		"_id":        uuid.New().String(),
		"fromCardId": cardA,
		"toCardId":   cardB,
		"type":       "relationship",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("cross-board connection = %d, want 400", code)
	}
	if resp.Error == nil || resp.Error.Code != "INVALID_REFERENCE" {
		t.Errorf("error = %+v, want INVALID_REFERENCE", resp.Error)
	}
}

func TestImportReplacesBoardContent(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.token(t, "alice")
	boardID := ts.mustCreateBoard(t, alice, false)
	ts.mustCreateCard(t, alice, boardID)

	snapshot := map[string]interface{}{
		"cards": []map[string]interface{}{
			{"_id": uuid.New().String(), "boardId": boardID, "type": "character", "title": "Imported hero", "version": 4},
		},
		"connections": []map[string]interface{}{},
		"comments":    []map[string]interface{}{},
	}
	code, resp := ts.do(t, http.MethodPost, "/api/v1/boards/"+boardID+"/import", alice, snapshot)
	if code != http.StatusOK {
		t.Fatalf("import = %d (%+v), want 200", code, resp.Error)
	}

	code, resp = ts.do(t, http.MethodGet, "/api/v1/boards/"+boardID+"/cards", alice, nil)
	if code != http.StatusOK {
		t.Fatalf("list cards = %d, want 200", code)
	}
	cards := resp.Data.([]interface{})
	if len(cards) != 1 {
		t.Fatalf("cards after import = %d, want 1", len(cards))
	}
	card := cards[0].(map[string]interface{})
	if card["title"] != "Imported hero" {
		t.Errorf("card title = %v, want Imported hero", card["title"])
	}
	if v := card["version"].(float64); v != 4 {
		t.Errorf("imported version = %v, want 4", v)
	}
}
