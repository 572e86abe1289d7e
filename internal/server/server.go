package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/calebsage/fable/internal/engine"
	"github.com/calebsage/fable/internal/narrator"
	"github.com/calebsage/fable/internal/store"
)

// Server is the fable HTTP API server.
type Server struct {
	db          *store.DB
	engine      *engine.Engine
	gen         narrator.Generator
	tokenBudget int
	router      chi.Router
	version     string
	started     time.Time
}

// New creates a Server. gen may be nil, in which case the generate
// endpoint returns 503 until a narrator is configured.
func New(db *store.DB, eng *engine.Engine, gen narrator.Generator, tokenBudget int, version string) *Server {
	s := &Server{
		db:          db,
		engine:      eng,
		gen:         gen,
		tokenBudget: tokenBudget,
		version:     version,
		started:     time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/stories", s.handleCreateStory)
		r.Get("/stories", s.handleListStories)
		r.Get("/stories/{storyID}", s.handleGetStory)
		r.Patch("/stories/{storyID}", s.handleUpdateStory)
		r.Post("/stories/{storyID}/generate", s.handleGenerate)
		r.Get("/stories/{storyID}/context", s.handleGetContext)
		r.Get("/stories/{storyID}/memories", s.handleListMemories)
		r.Post("/stories/{storyID}/consolidate", s.handleConsolidate)

		r.Post("/maintenance/cleanup", s.handleCleanup)
		r.Post("/maintenance/refresh", s.handleRefresh)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
