package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RolePlayer = "player"
	RoleAI     = "ai"
)

// Message is a single utterance. The importance score and memory type are
// assigned exactly once, at creation, and never change.
type Message struct {
	ID              string
	ConversationID  string
	Role            string
	Content         string
	ImportanceScore float64
	MemoryType      string
	CreatedAt       int64
}

// CreateMessage inserts a new message. A pre-set CreatedAt is honored so
// imports and tests can backdate; otherwise the current time is used.
func (db *DB) CreateMessage(m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MemoryType == "" {
		m.MemoryType = "short"
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}

	_, err := db.Exec(`
		INSERT INTO messages (id, conversation_id, role, content, importance_score, memory_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID, m.Role, m.Content, m.ImportanceScore, m.MemoryType, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	return nil
}

// GetMessage returns a message by ID, or nil if not found.
func (db *DB) GetMessage(id string) (*Message, error) {
	var m Message
	err := db.QueryRow(`
		SELECT id, conversation_id, role, content, importance_score, memory_type, created_at
		FROM messages WHERE id = ?
	`, id).Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.ImportanceScore, &m.MemoryType, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

// ConversationMessages returns all messages of a conversation in
// chronological order.
func (db *DB) ConversationMessages(conversationID string) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, role, content, importance_score, memory_type, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ConversationMessagesAfter returns a conversation's messages created
// strictly after ts, in chronological order.
func (db *DB) ConversationMessagesAfter(conversationID string, ts int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, role, content, importance_score, memory_type, created_at
		FROM messages WHERE conversation_id = ? AND created_at > ?
		ORDER BY created_at ASC, id ASC
	`, conversationID, ts)
	if err != nil {
		return nil, fmt.Errorf("conversation messages after: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MessagesInRange returns a conversation's messages whose creation times
// fall inside [start, end], in chronological order. Used for partial
// summaries.
func (db *DB) MessagesInRange(conversationID string, start, end int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, role, content, importance_score, memory_type, created_at
		FROM messages WHERE conversation_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, id ASC
	`, conversationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("messages in range: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentStoryMessages returns messages across all of a story's
// conversations created at or after since, newest first, capped at limit.
func (db *DB) RecentStoryMessages(storyID string, since int64, limit int) ([]Message, error) {
	rows, err := db.Query(`
		SELECT m.id, m.conversation_id, m.role, m.content, m.importance_score, m.memory_type, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.story_id = ? AND m.created_at >= ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?
	`, storyID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent story messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// CountMessages returns the number of messages in a conversation.
func (db *DB) CountMessages(conversationID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// CountMessagesAfter returns the number of messages in a conversation
// created strictly after ts.
func (db *DB) CountMessagesAfter(conversationID string, ts int64) (int, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND created_at > ?
	`, conversationID, ts).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages after: %w", err)
	}
	return n, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content,
			&m.ImportanceScore, &m.MemoryType, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
