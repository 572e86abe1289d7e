package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fact types.
const (
	FactCharacter = "character"
	FactLocation  = "location"
	FactEvent     = "event"
	FactRule      = "rule"
)

// MemoryFact is a durable, distilled unit of story knowledge. Created by
// extraction; its importance evolves under maintenance; deleted by cleanup
// or consolidation.
type MemoryFact struct {
	ID                   string
	StoryID              string
	FactType             string
	Title                string
	Content              string
	ImportanceScore      float64
	RelevanceTags        []string
	SourceMessageIDs     []string
	SourceConversationID string
	CreatedAt            int64
	LastReferenced       int64
}

// CreateFact inserts a new memory fact. Pre-set timestamps are honored for
// backdating; otherwise both default to now.
func (db *DB) CreateFact(f *MemoryFact) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UnixMilli()
	if f.CreatedAt == 0 {
		f.CreatedAt = now
	}
	if f.LastReferenced == 0 {
		f.LastReferenced = f.CreatedAt
	}

	tags, err := json.Marshal(f.RelevanceTags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	sources, err := json.Marshal(f.SourceMessageIDs)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO memory_facts (id, story_id, fact_type, title, content, importance_score,
			relevance_tags, source_message_ids, source_conversation_id, created_at, last_referenced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)
	`, f.ID, f.StoryID, f.FactType, f.Title, f.Content, f.ImportanceScore,
		string(tags), string(sources), f.SourceConversationID, f.CreatedAt, f.LastReferenced)
	if err != nil {
		return fmt.Errorf("create fact: %w", err)
	}
	return nil
}

// GetFact returns a fact by ID, or nil if not found.
func (db *DB) GetFact(id string) (*MemoryFact, error) {
	row := db.QueryRow(`
		SELECT id, story_id, fact_type, title, content, importance_score,
			relevance_tags, source_message_ids, source_conversation_id, created_at, last_referenced
		FROM memory_facts WHERE id = ?
	`, id)
	f, err := scanFactRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fact: %w", err)
	}
	return f, nil
}

// StoryFacts returns all facts of a story, optionally filtered by type,
// highest importance first.
func (db *DB) StoryFacts(storyID, factType string) ([]MemoryFact, error) {
	query := `
		SELECT id, story_id, fact_type, title, content, importance_score,
			relevance_tags, source_message_ids, source_conversation_id, created_at, last_referenced
		FROM memory_facts WHERE story_id = ?`
	args := []any{storyID}
	if factType != "" {
		query += ` AND fact_type = ?`
		args = append(args, factType)
	}
	query += ` ORDER BY importance_score DESC, last_referenced DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("story facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// ImportantFacts returns a story's facts scoring at or above minScore,
// ordered by importance then recency of reference, capped at limit.
func (db *DB) ImportantFacts(storyID string, minScore float64, limit int) ([]MemoryFact, error) {
	rows, err := db.Query(`
		SELECT id, story_id, fact_type, title, content, importance_score,
			relevance_tags, source_message_ids, source_conversation_id, created_at, last_referenced
		FROM memory_facts
		WHERE story_id = ? AND importance_score >= ?
		ORDER BY importance_score DESC, last_referenced DESC
		LIMIT ?
	`, storyID, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("important facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// TouchFacts marks the given facts as referenced now. Retrieval for context
// assembly calls this, so reads carry a deliberate write side effect.
func (db *DB) TouchFacts(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	query, args := inClause(`UPDATE memory_facts SET last_referenced = ? WHERE id IN`, ids)
	args = append([]any{now}, args...)
	if _, err := db.Exec(query, args...); err != nil {
		return fmt.Errorf("touch facts: %w", err)
	}
	return nil
}

// CleanupFacts deletes facts that are older than the cutoff, score below
// maxScore, and not referenced since the cutoff. All three conditions must
// hold; a recently referenced fact survives regardless of score.
func (db *DB) CleanupFacts(cutoff int64, maxScore float64) (int, error) {
	result, err := db.Exec(`
		DELETE FROM memory_facts
		WHERE created_at < ? AND importance_score < ? AND last_referenced < ?
	`, cutoff, maxScore, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup facts: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// BoostRecentFacts raises importance by delta (capped at 10.0) for every
// fact referenced at or after the cutoff. Returns the affected count.
func (db *DB) BoostRecentFacts(cutoff int64, delta float64) (int, error) {
	result, err := db.Exec(`
		UPDATE memory_facts SET importance_score = MIN(importance_score + ?, 10.0)
		WHERE last_referenced >= ?
	`, delta, cutoff)
	if err != nil {
		return 0, fmt.Errorf("boost recent facts: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// FactUpdate rewrites a surviving fact during consolidation.
type FactUpdate struct {
	ID               string
	Content          string
	SourceMessageIDs []string
}

// ApplyConsolidation commits a consolidation pass atomically: surviving
// facts get their merged content and source references, the absorbed
// duplicates are deleted. Any failure rolls the whole pass back.
func (db *DB) ApplyConsolidation(updates []FactUpdate, deleteIDs []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin consolidation: %w", err)
	}

	for _, u := range updates {
		sources, err := json.Marshal(u.SourceMessageIDs)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal sources: %w", err)
		}
		if _, err := tx.Exec(`
			UPDATE memory_facts SET content = ?, source_message_ids = ? WHERE id = ?
		`, u.Content, string(sources), u.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("update fact %s: %w", u.ID, err)
		}
	}

	if len(deleteIDs) > 0 {
		query, args := inClause(`DELETE FROM memory_facts WHERE id IN`, deleteIDs)
		if _, err := tx.Exec(query, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("delete duplicates: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit consolidation: %w", err)
	}
	return nil
}

// inClause builds "<prefix> (?,?,...)" with matching args.
func inClause(prefix string, ids []string) (string, []any) {
	args := make([]any, len(ids))
	ph := ""
	for i, id := range ids {
		if i > 0 {
			ph += ","
		}
		ph += "?"
		args[i] = id
	}
	return fmt.Sprintf("%s (%s)", prefix, ph), args
}

type factScanner interface {
	Scan(dest ...any) error
}

func scanFactRow(row factScanner) (*MemoryFact, error) {
	var f MemoryFact
	var tags, sources, sourceConv sql.NullString
	if err := row.Scan(&f.ID, &f.StoryID, &f.FactType, &f.Title, &f.Content,
		&f.ImportanceScore, &tags, &sources, &sourceConv, &f.CreatedAt, &f.LastReferenced); err != nil {
		return nil, err
	}
	if tags.String != "" {
		json.Unmarshal([]byte(tags.String), &f.RelevanceTags)
	}
	if sources.String != "" {
		json.Unmarshal([]byte(sources.String), &f.SourceMessageIDs)
	}
	f.SourceConversationID = sourceConv.String
	return &f, nil
}

func scanFacts(rows *sql.Rows) ([]MemoryFact, error) {
	var facts []MemoryFact
	for rows.Next() {
		f, err := scanFactRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		facts = append(facts, *f)
	}
	return facts, rows.Err()
}
