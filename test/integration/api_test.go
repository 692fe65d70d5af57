package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/exemple-users/internal/api"
	"github.com/eugenenazirov/exemple-users/internal/store"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := zaptest.NewLogger(t)
	handler := api.NewHandler(store.NewMemoryModels(), logger)
	return api.NewRouter(handler, logger)
}

func performRequest(t *testing.T, handler http.Handler, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeUsers(t *testing.T, rec *httptest.ResponseRecorder) []store.User {
	t.Helper()

	var users []store.User
	if err := json.NewDecoder(rec.Body).Decode(&users); err != nil {
		t.Fatalf("failed to decode users: %v", err)
	}
	return users
}

func TestIntegrationFlow(t *testing.T) {
	handler := newRouter(t)
	jsonHeaders := map[string]string{"Content-Type": "application/json"}

	// Health check
	healthResp := performRequest(t, handler, http.MethodGet, "/healthz", nil, nil)
	if healthResp.Code != http.StatusOK {
		t.Fatalf("expected health status 200, got %d", healthResp.Code)
	}

	// Empty collection
	listResp := performRequest(t, handler, http.MethodGet, "/exemple-users", nil, nil)
	if listResp.Code != http.StatusOK {
		t.Fatalf("expected list status 200, got %d", listResp.Code)
	}
	if users := decodeUsers(t, listResp); len(users) != 0 {
		t.Fatalf("expected no users, got %+v", users)
	}

	// Create a batch
	createBody := []byte(`{"users":[{"name":"Ada","age":36},{"name":"Alan","age":41}]}`)
	createResp := performRequest(t, handler, http.MethodPost, "/exemple-users", createBody, jsonHeaders)
	if createResp.Code != http.StatusCreated {
		t.Fatalf("expected create status 201, got %d: %s", createResp.Code, createResp.Body.String())
	}
	created := decodeUsers(t, createResp)
	if len(created) != 2 || created[0].Name != "Ada" || created[1].Name != "Alan" {
		t.Fatalf("unexpected created users %+v", created)
	}
	adaID := created[0].ID

	// Rejected batch leaves the collection untouched
	badBody := []byte(`{"users":[{"name":"Grace","age":85},{"name":"x","age":0}]}`)
	badResp := performRequest(t, handler, http.MethodPost, "/exemple-users", badBody, jsonHeaders)
	if badResp.Code != http.StatusBadRequest {
		t.Fatalf("expected create status 400, got %d", badResp.Code)
	}

	listResp = performRequest(t, handler, http.MethodGet, "/exemple-users", nil, nil)
	if users := decodeUsers(t, listResp); len(users) != 2 {
		t.Fatalf("expected 2 users after rejected batch, got %d", len(users))
	}

	// Update
	updateBody := []byte(`{"user":{"name":"Jean Dupont","age":30}}`)
	updateResp := performRequest(t, handler, http.MethodPatch, "/exemple-users/"+adaID, updateBody, jsonHeaders)
	if updateResp.Code != http.StatusOK {
		t.Fatalf("expected update status 200, got %d: %s", updateResp.Code, updateResp.Body.String())
	}
	var updated store.User
	if err := json.NewDecoder(updateResp.Body).Decode(&updated); err != nil {
		t.Fatalf("failed to decode updated user: %v", err)
	}
	if updated != (store.User{ID: adaID, Name: "Jean Dupont", Age: 30}) {
		t.Fatalf("unexpected updated user %+v", updated)
	}

	// Delete
	deleteResp := performRequest(t, handler, http.MethodDelete, "/exemple-users/"+adaID, nil, nil)
	if deleteResp.Code != http.StatusNoContent {
		t.Fatalf("expected delete status 204, got %d", deleteResp.Code)
	}

	listResp = performRequest(t, handler, http.MethodGet, "/exemple-users", nil, nil)
	remaining := decodeUsers(t, listResp)
	if len(remaining) != 1 || remaining[0].ID == adaID || remaining[0].Name != "Alan" {
		t.Fatalf("expected only Alan to remain, got %+v", remaining)
	}

	// Deleting again is a miss
	deleteResp = performRequest(t, handler, http.MethodDelete, "/exemple-users/"+adaID, nil, nil)
	if deleteResp.Code != http.StatusNotFound {
		t.Fatalf("expected second delete status 404, got %d", deleteResp.Code)
	}

	// Preflight from the configured browser origin
	preflight := performRequest(t, handler, http.MethodOptions, "/exemple-users", nil, map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": http.MethodPatch,
	})
	if preflight.Code != http.StatusNoContent {
		t.Fatalf("expected preflight status 204, got %d", preflight.Code)
	}
	if preflight.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials to be allowed")
	}
}
