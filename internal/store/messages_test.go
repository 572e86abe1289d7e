package store

import (
	"testing"
	"time"
)

func testConversation(t *testing.T, db *DB) (*Story, *Conversation) {
	t.Helper()
	story := testStory(t, db)
	conv := &Conversation{StoryID: story.ID}
	if err := db.CreateConversation(conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	return story, conv
}

// addMessage inserts a backdated message so ordering tests have distinct
// timestamps.
func addMessage(t *testing.T, db *DB, convID, role, content string, at int64) *Message {
	t.Helper()
	m := &Message{
		ConversationID:  convID,
		Role:            role,
		Content:         content,
		ImportanceScore: 1.0,
		MemoryType:      "short",
		CreatedAt:       at,
	}
	if err := db.CreateMessage(m); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	return m
}

func TestConversationMessagesOrder(t *testing.T) {
	db := testDB(t)
	_, conv := testConversation(t, db)

	base := time.Now().UnixMilli()
	addMessage(t, db, conv.ID, RolePlayer, "first", base)
	addMessage(t, db, conv.ID, RoleAI, "second", base+10)
	addMessage(t, db, conv.ID, RolePlayer, "third", base+20)

	msgs, err := db.ConversationMessages(conv.ID)
	if err != nil {
		t.Fatalf("ConversationMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Content != want {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i].Content, want)
		}
	}
}

func TestConversationMessagesAfter(t *testing.T) {
	db := testDB(t)
	_, conv := testConversation(t, db)

	base := time.Now().UnixMilli()
	addMessage(t, db, conv.ID, RoleAI, "old", base)
	addMessage(t, db, conv.ID, RoleAI, "new", base+100)

	msgs, err := db.ConversationMessagesAfter(conv.ID, base)
	if err != nil {
		t.Fatalf("ConversationMessagesAfter: %v", err)
	}
	// Strictly after: the message at the watermark itself is excluded.
	if len(msgs) != 1 || msgs[0].Content != "new" {
		t.Fatalf("msgs = %+v, want only the later message", msgs)
	}
}

func TestRecentStoryMessages(t *testing.T) {
	db := testDB(t)
	story, conv := testConversation(t, db)

	base := time.Now().UnixMilli()
	for i := 0; i < 5; i++ {
		addMessage(t, db, conv.ID, RolePlayer, "msg", base+int64(i*10))
	}

	msgs, err := db.RecentStoryMessages(story.ID, base-1, 3)
	if err != nil {
		t.Fatalf("RecentStoryMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	// Newest first.
	if msgs[0].CreatedAt < msgs[1].CreatedAt {
		t.Errorf("expected newest-first ordering, got %d then %d", msgs[0].CreatedAt, msgs[1].CreatedAt)
	}
}

func TestCountMessagesAfter(t *testing.T) {
	db := testDB(t)
	_, conv := testConversation(t, db)

	base := time.Now().UnixMilli()
	addMessage(t, db, conv.ID, RolePlayer, "a", base)
	addMessage(t, db, conv.ID, RoleAI, "b", base+10)
	addMessage(t, db, conv.ID, RolePlayer, "c", base+20)

	n, err := db.CountMessagesAfter(conv.ID, base)
	if err != nil {
		t.Fatalf("CountMessagesAfter: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
