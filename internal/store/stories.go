package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Story statuses.
const (
	StoryActive    = "active"
	StoryPaused    = "paused"
	StoryCompleted = "completed"
	StoryArchived  = "archived"
)

// Story is one narrative arc. It owns conversations and memory facts.
type Story struct {
	ID             string
	Title          string
	Genre          string
	SettingSummary string
	CurrentScene   string
	Status         string
	CreatedAt      int64
	UpdatedAt      int64
	LastMessageAt  int64
}

// CreateStory inserts a new story. The ID is generated here and is
// immutable afterward.
func (db *DB) CreateStory(s *Story) error {
	now := time.Now().UnixMilli()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StoryActive
	}

	_, err := db.Exec(`
		INSERT INTO stories (id, title, genre, setting_summary, current_scene, status, created_at, updated_at, last_message_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Title, s.Genre, s.SettingSummary, s.CurrentScene, s.Status, now, now, now)
	if err != nil {
		return fmt.Errorf("create story: %w", err)
	}

	s.CreatedAt = now
	s.UpdatedAt = now
	s.LastMessageAt = now
	return nil
}

// GetStory returns a story by ID, or nil if not found.
func (db *DB) GetStory(id string) (*Story, error) {
	var s Story
	var title, genre, setting, scene sql.NullString
	err := db.QueryRow(`
		SELECT id, title, genre, setting_summary, current_scene, status, created_at, updated_at, last_message_at
		FROM stories WHERE id = ?
	`, id).Scan(&s.ID, &title, &genre, &setting, &scene, &s.Status, &s.CreatedAt, &s.UpdatedAt, &s.LastMessageAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	s.Title = title.String
	s.Genre = genre.String
	s.SettingSummary = setting.String
	s.CurrentScene = scene.String
	return &s, nil
}

// ListStories returns the most recently active stories first.
func (db *DB) ListStories(limit int) ([]Story, error) {
	rows, err := db.Query(`
		SELECT id, title, genre, setting_summary, current_scene, status, created_at, updated_at, last_message_at
		FROM stories ORDER BY last_message_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	var stories []Story
	for rows.Next() {
		var s Story
		var title, genre, setting, scene sql.NullString
		if err := rows.Scan(&s.ID, &title, &genre, &setting, &scene, &s.Status,
			&s.CreatedAt, &s.UpdatedAt, &s.LastMessageAt); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		s.Title = title.String
		s.Genre = genre.String
		s.SettingSummary = setting.String
		s.CurrentScene = scene.String
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

// TouchStory bumps last_message_at and updated_at. Called on every exchange.
func (db *DB) TouchStory(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE stories SET last_message_at = ?, updated_at = ? WHERE id = ?
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("touch story: %w", err)
	}
	return nil
}

// UpdateStoryScene replaces the current scene text. Only the scene and
// updated_at move; extraction never writes story metadata.
func (db *DB) UpdateStoryScene(id, scene string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE stories SET current_scene = ?, updated_at = ? WHERE id = ?
	`, scene, now, id)
	if err != nil {
		return fmt.Errorf("update story scene: %w", err)
	}
	return nil
}

// UpdateStoryStatus moves a story between lifecycle states.
func (db *DB) UpdateStoryStatus(id, status string) error {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		UPDATE stories SET status = ?, updated_at = ? WHERE id = ?
	`, status, now, id)
	if err != nil {
		return fmt.Errorf("update story status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("no story found for %s", id)
	}
	return nil
}
