package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "stories: one row per narrative arc",
		SQL: `
CREATE TABLE stories (
    id              TEXT PRIMARY KEY,
    title           TEXT,
    genre           TEXT,
    setting_summary TEXT,
    current_scene   TEXT,
    status          TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'paused', 'completed', 'archived')),
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL,
    last_message_at INTEGER NOT NULL
);

CREATE INDEX idx_stories_last_message ON stories(last_message_at DESC);
CREATE INDEX idx_stories_status       ON stories(status);
`,
	},
	{
		Version:     2,
		Description: "conversations: bounded sessions within a story",
		SQL: `
CREATE TABLE conversations (
    id                TEXT PRIMARY KEY,
    story_id          TEXT NOT NULL,
    session_number    INTEGER NOT NULL DEFAULT 1,
    -- Extraction watermark: messages created at or before this instant
    -- have already been scanned for facts.
    extracted_through INTEGER NOT NULL DEFAULT 0,
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL,

    FOREIGN KEY (story_id) REFERENCES stories(id) ON DELETE CASCADE,
    UNIQUE (story_id, session_number)
);

CREATE INDEX idx_conversations_story ON conversations(story_id, created_at DESC);
`,
	},
	{
		Version:     3,
		Description: "messages: one utterance, scored and tiered at creation",
		SQL: `
CREATE TABLE messages (
    id               TEXT PRIMARY KEY,
    conversation_id  TEXT NOT NULL,
    role             TEXT NOT NULL CHECK (role IN ('player', 'ai')),
    content          TEXT NOT NULL,
    importance_score REAL NOT NULL DEFAULT 1.0,
    memory_type      TEXT NOT NULL DEFAULT 'short' CHECK (memory_type IN ('short', 'medium', 'long', 'critical')),
    created_at       INTEGER NOT NULL,

    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX idx_messages_conversation ON messages(conversation_id, created_at);
CREATE INDEX idx_messages_tier         ON messages(memory_type, importance_score);
`,
	},
	{
		Version:     4,
		Description: "memory_facts: durable distilled story knowledge",
		SQL: `
CREATE TABLE memory_facts (
    id                     TEXT PRIMARY KEY,
    story_id               TEXT NOT NULL,
    fact_type              TEXT NOT NULL CHECK (fact_type IN ('character', 'location', 'event', 'rule')),
    title                  TEXT NOT NULL,
    content                TEXT NOT NULL,
    importance_score       REAL NOT NULL DEFAULT 5.0,
    relevance_tags         TEXT,
    source_message_ids     TEXT,
    source_conversation_id TEXT,
    created_at             INTEGER NOT NULL,
    last_referenced        INTEGER NOT NULL,

    FOREIGN KEY (story_id) REFERENCES stories(id) ON DELETE CASCADE
);

CREATE INDEX idx_facts_story_type ON memory_facts(story_id, fact_type);
CREATE INDEX idx_facts_importance ON memory_facts(importance_score DESC);
CREATE INDEX idx_facts_referenced ON memory_facts(last_referenced DESC);
`,
	},
	{
		Version:     5,
		Description: "conversation_summaries: compacted message ranges",
		SQL: `
CREATE TABLE conversation_summaries (
    id                     TEXT PRIMARY KEY,
    conversation_id        TEXT NOT NULL,
    summary_text           TEXT NOT NULL,
    original_message_count INTEGER NOT NULL,
    start_message_id       TEXT,
    end_message_id         TEXT,
    time_range_start       INTEGER NOT NULL,
    time_range_end         INTEGER NOT NULL,
    compression_ratio      REAL NOT NULL DEFAULT 0,
    created_at             INTEGER NOT NULL,

    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX idx_summaries_conversation ON conversation_summaries(conversation_id, time_range_end DESC);
CREATE INDEX idx_summaries_range_end    ON conversation_summaries(time_range_end DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
