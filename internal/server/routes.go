package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/calebsage/fable/internal/narrator"
	"github.com/calebsage/fable/internal/store"
)

// maxInputChars bounds a single player action.
const maxInputChars = 1000

func (s *Server) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string `json:"title"`
		Genre        string `json:"genre"`
		Setting      string `json:"setting"`
		CurrentScene string `json:"current_scene"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	story := &store.Story{
		Title:          strings.TrimSpace(req.Title),
		Genre:          strings.TrimSpace(req.Genre),
		SettingSummary: strings.TrimSpace(req.Setting),
		CurrentScene:   strings.TrimSpace(req.CurrentScene),
	}
	if err := s.db.CreateStory(story); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(storyJSON(story))
}

func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := s.db.ListStories(50)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(stories))
	for i := range stories {
		out = append(out, storyJSON(&stories[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"stories": out})
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) {
	story, err := s.loadStory(w, r)
	if story == nil || err != nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(storyJSON(story))
}

func (s *Server) handleUpdateStory(w http.ResponseWriter, r *http.Request) {
	story, err := s.loadStory(w, r)
	if story == nil || err != nil {
		return
	}

	var req struct {
		CurrentScene *string `json:"current_scene"`
		Status       *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	if req.Status != nil {
		switch *req.Status {
		case store.StoryActive, store.StoryPaused, store.StoryCompleted, store.StoryArchived:
		default:
			http.Error(w, `{"error":"unknown status"}`, http.StatusBadRequest)
			return
		}
		if err := s.db.UpdateStoryStatus(story.ID, *req.Status); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
	}
	if req.CurrentScene != nil {
		if err := s.db.UpdateStoryScene(story.ID, *req.CurrentScene); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
	}

	story, err = s.db.GetStory(story.ID)
	if err != nil || story == nil {
		http.Error(w, `{"error":"reload story failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(storyJSON(story))
}

// handleGenerate runs one exchange: record the player action, assemble
// context, stream the narration, record the full response, then kick off
// extraction and compaction in the background. The stream is plain text
// chunks followed by "\n<END>" and the full response, so clients can
// replace their accumulated text with the authoritative copy.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	story, err := s.loadStory(w, r)
	if story == nil || err != nil {
		return
	}

	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		http.Error(w, `{"error":"input required"}`, http.StatusBadRequest)
		return
	}
	if len(input) > maxInputChars {
		http.Error(w, `{"error":"input too long"}`, http.StatusBadRequest)
		return
	}
	if s.gen == nil {
		http.Error(w, `{"error":"narrator not configured"}`, http.StatusServiceUnavailable)
		return
	}

	conv, err := s.engine.ActiveConversation(r.Context(), story.ID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if _, err := s.engine.RecordMessage(r.Context(), conv, store.RolePlayer, input); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	c, err := s.engine.BuildContext(r.Context(), story.ID, s.tokenBudget)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	full, err := s.gen.Generate(r.Context(), narrator.SystemPrompt(c), narrator.PlayerInput(input), func(chunk string) error {
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are gone; the best we can do is log and end the stream.
		log.Error("generate failed", "story", story.ID, "err", err)
		return
	}

	if _, err := s.engine.RecordMessage(r.Context(), conv, store.RoleAI, full); err != nil {
		log.Error("record response failed", "conversation", conv.ID, "err", err)
	}

	w.Write([]byte("\n<END>" + full))
	if flusher != nil {
		flusher.Flush()
	}

	// Extraction and compaction run after the response is on the wire.
	go s.engine.AfterExchange(context.Background(), conv.ID)
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	story, err := s.loadStory(w, r)
	if story == nil || err != nil {
		return
	}

	c, err := s.engine.BuildContext(r.Context(), story.ID, s.tokenBudget)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"context":          c,
		"estimated_tokens": c.EstimateTokens(),
	})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	story, err := s.loadStory(w, r)
	if story == nil || err != nil {
		return
	}

	factType := r.URL.Query().Get("type")
	switch factType {
	case "", store.FactCharacter, store.FactLocation, store.FactEvent, store.FactRule:
	default:
		http.Error(w, `{"error":"unknown memory type"}`, http.StatusBadRequest)
		return
	}

	facts, err := s.db.StoryFacts(story.ID, factType)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(facts))
	for _, f := range facts {
		out = append(out, map[string]any{
			"id":         f.ID,
			"type":       f.FactType,
			"title":      f.Title,
			"content":    f.Content,
			"importance": f.ImportanceScore,
			"tags":       f.RelevanceTags,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"memories": out, "count": len(out)})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	story, err := s.loadStory(w, r)
	if story == nil || err != nil {
		return
	}

	merged, err := s.engine.Consolidate(r.Context(), story.ID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"merged": merged})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Days int `json:"days"`
	}
	// An empty body means default retention.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Days < 0 {
		http.Error(w, `{"error":"days must be non-negative"}`, http.StatusBadRequest)
		return
	}

	removed, err := s.engine.Cleanup(r.Context(), req.Days)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	boosted, err := s.engine.RefreshImportance(r.Context())
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"removed": removed, "boosted": boosted})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	boosted, err := s.engine.RefreshImportance(r.Context())
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"boosted": boosted})
}

// loadStory resolves the storyID URL param. On a missing or failed lookup
// it writes the error response and returns nil.
func (s *Server) loadStory(w http.ResponseWriter, r *http.Request) (*store.Story, error) {
	storyID := chi.URLParam(r, "storyID")
	story, err := s.db.GetStory(storyID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return nil, err
	}
	if story == nil {
		http.Error(w, `{"error":"story not found"}`, http.StatusNotFound)
		return nil, nil
	}
	return story, nil
}

func storyJSON(s *store.Story) map[string]any {
	return map[string]any{
		"id":              s.ID,
		"title":           s.Title,
		"genre":           s.Genre,
		"setting":         s.SettingSummary,
		"current_scene":   s.CurrentScene,
		"status":          s.Status,
		"created_at":      s.CreatedAt,
		"updated_at":      s.UpdatedAt,
		"last_message_at": s.LastMessageAt,
	}
}
