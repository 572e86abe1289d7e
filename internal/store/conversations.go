package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Conversation is one bounded session within a story, numbered
// monotonically per story.
type Conversation struct {
	ID               string
	StoryID          string
	SessionNumber    int
	ExtractedThrough int64
	CreatedAt        int64
	UpdatedAt        int64
}

// CreateConversation inserts a new conversation. If SessionNumber is zero,
// the next number for the story is assigned.
func (db *DB) CreateConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.SessionNumber == 0 {
		n, err := db.NextSessionNumber(c.StoryID)
		if err != nil {
			return err
		}
		c.SessionNumber = n
	}

	_, err := db.Exec(`
		INSERT INTO conversations (id, story_id, session_number, extracted_through, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, c.ID, c.StoryID, c.SessionNumber, now, now)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// GetConversation returns a conversation by ID, or nil if not found.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, story_id, session_number, extracted_through, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.StoryID, &c.SessionNumber, &c.ExtractedThrough, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// LatestConversation returns the most recently created conversation for a
// story, or nil if the story has none.
func (db *DB) LatestConversation(storyID string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, story_id, session_number, extracted_through, created_at, updated_at
		FROM conversations WHERE story_id = ?
		ORDER BY session_number DESC LIMIT 1
	`, storyID).Scan(&c.ID, &c.StoryID, &c.SessionNumber, &c.ExtractedThrough, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest conversation: %w", err)
	}
	return &c, nil
}

// NextSessionNumber returns one past the highest session number for a story.
func (db *DB) NextSessionNumber(storyID string) (int, error) {
	var n int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(session_number), 0) + 1 FROM conversations WHERE story_id = ?
	`, storyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next session number: %w", err)
	}
	return n, nil
}

// TouchConversation bumps updated_at. The session-gap check reads this.
func (db *DB) TouchConversation(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// SetExtractedThrough advances the extraction watermark. It never moves
// backward.
func (db *DB) SetExtractedThrough(id string, ts int64) error {
	_, err := db.Exec(`
		UPDATE conversations SET extracted_through = ? WHERE id = ? AND extracted_through < ?
	`, ts, id, ts)
	if err != nil {
		return fmt.Errorf("set extracted through: %w", err)
	}
	return nil
}
