package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConversationSummary is a compaction of a contiguous message range within
// one conversation. Summaries are never mutated; later summaries supersede
// earlier ones.
type ConversationSummary struct {
	ID                   string
	ConversationID       string
	SummaryText          string
	OriginalMessageCount int
	StartMessageID       string
	EndMessageID         string
	TimeRangeStart       int64
	TimeRangeEnd         int64
	CompressionRatio     float64
	CreatedAt            int64
}

// CreateSummary inserts a new summary record.
func (db *DB) CreateSummary(s *ConversationSummary) error {
	now := time.Now().UnixMilli()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	_, err := db.Exec(`
		INSERT INTO conversation_summaries (id, conversation_id, summary_text, original_message_count,
			start_message_id, end_message_id, time_range_start, time_range_end, compression_ratio, created_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?)
	`, s.ID, s.ConversationID, s.SummaryText, s.OriginalMessageCount,
		s.StartMessageID, s.EndMessageID, s.TimeRangeStart, s.TimeRangeEnd, s.CompressionRatio, now)
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}

	s.CreatedAt = now
	return nil
}

// LatestSummary returns the newest summary for a conversation by range end,
// or nil if the conversation has none.
func (db *DB) LatestSummary(conversationID string) (*ConversationSummary, error) {
	row := db.QueryRow(`
		SELECT id, conversation_id, summary_text, original_message_count,
			start_message_id, end_message_id, time_range_start, time_range_end, compression_ratio, created_at
		FROM conversation_summaries WHERE conversation_id = ?
		ORDER BY time_range_end DESC LIMIT 1
	`, conversationID)
	s, err := scanSummaryRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest summary: %w", err)
	}
	return s, nil
}

// RecentStorySummaries returns summaries across a story's conversations
// whose range end falls at or after since, newest range end first, capped
// at limit.
func (db *DB) RecentStorySummaries(storyID string, since int64, limit int) ([]ConversationSummary, error) {
	rows, err := db.Query(`
		SELECT s.id, s.conversation_id, s.summary_text, s.original_message_count,
			s.start_message_id, s.end_message_id, s.time_range_start, s.time_range_end, s.compression_ratio, s.created_at
		FROM conversation_summaries s
		JOIN conversations c ON c.id = s.conversation_id
		WHERE c.story_id = ? AND s.time_range_end >= ?
		ORDER BY s.time_range_end DESC
		LIMIT ?
	`, storyID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent story summaries: %w", err)
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		s, err := scanSummaryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, *s)
	}
	return summaries, rows.Err()
}

func scanSummaryRow(row factScanner) (*ConversationSummary, error) {
	var s ConversationSummary
	var startID, endID sql.NullString
	if err := row.Scan(&s.ID, &s.ConversationID, &s.SummaryText, &s.OriginalMessageCount,
		&startID, &endID, &s.TimeRangeStart, &s.TimeRangeEnd, &s.CompressionRatio, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.StartMessageID = startID.String
	s.EndMessageID = endID.String
	return &s, nil
}
