package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/calebsage/fable/internal/engine"
	"github.com/calebsage/fable/internal/narrator"
	"github.com/calebsage/fable/internal/store"
)

func testServer(t *testing.T, gen narrator.Generator) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, engine.New(db), gen, 1500, "test-version")
}

// createStory posts a story through the API and returns its ID.
func createStory(t *testing.T, srv *Server) string {
	t.Helper()
	body := `{"title":"The Hollow Crown","genre":"fantasy","setting":"A kingdom where the dead vote","current_scene":"The coronation"}`
	req := httptest.NewRequest("POST", "/api/stories", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create story status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode story: %v", err)
	}
	id, _ := resp["id"].(string)
	if id == "" {
		t.Fatalf("story response missing id: %s", w.Body.String())
	}
	return id
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}
