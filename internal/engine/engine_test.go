package engine

import (
	"context"
	"testing"
	"time"

	"github.com/calebsage/fable/internal/store"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func testStory(t *testing.T, e *Engine) *store.Story {
	t.Helper()
	s := &store.Story{Title: "Test Story", Genre: "fantasy"}
	if err := e.Store.CreateStory(s); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	return s
}

func TestActiveConversationReuse(t *testing.T) {
	e := testEngine(t)
	story := testStory(t, e)
	ctx := context.Background()

	first, err := e.ActiveConversation(ctx, story.ID)
	if err != nil {
		t.Fatalf("ActiveConversation: %v", err)
	}
	if first.SessionNumber != 1 {
		t.Errorf("SessionNumber = %d, want 1", first.SessionNumber)
	}

	// A second call within the gap returns the same session.
	again, err := e.ActiveConversation(ctx, story.ID)
	if err != nil {
		t.Fatalf("ActiveConversation again: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("got new conversation %s, want reuse of %s", again.ID, first.ID)
	}
}

func TestActiveConversationGapRollover(t *testing.T) {
	e := testEngine(t)
	story := testStory(t, e)
	ctx := context.Background()

	first, err := e.ActiveConversation(ctx, story.ID)
	if err != nil {
		t.Fatalf("ActiveConversation: %v", err)
	}

	// Backdate the conversation past the session gap.
	stale := time.Now().Add(-3 * time.Hour).UnixMilli()
	if _, err := e.Store.Exec(
		"UPDATE conversations SET updated_at = ? WHERE id = ?", stale, first.ID,
	); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	next, err := e.ActiveConversation(ctx, story.ID)
	if err != nil {
		t.Fatalf("ActiveConversation after gap: %v", err)
	}
	if next.ID == first.ID {
		t.Fatal("expected a new conversation after the idle gap")
	}
	if next.SessionNumber != 2 {
		t.Errorf("SessionNumber = %d, want 2", next.SessionNumber)
	}
}

func TestRecordMessage(t *testing.T) {
	e := testEngine(t)
	story := testStory(t, e)
	ctx := context.Background()

	conv, err := e.ActiveConversation(ctx, story.ID)
	if err != nil {
		t.Fatalf("ActiveConversation: %v", err)
	}

	msg, err := e.RecordMessage(ctx, conv, store.RolePlayer, "I attack the goblin")
	if err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	if msg.ImportanceScore != 4.0 {
		t.Errorf("ImportanceScore = %v, want 4.0", msg.ImportanceScore)
	}
	if msg.MemoryType != "short" {
		t.Errorf("MemoryType = %q, want short", msg.MemoryType)
	}

	got, err := e.Store.GetMessage(msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got == nil || got.Content != "I attack the goblin" {
		t.Errorf("persisted message = %+v", got)
	}
}
