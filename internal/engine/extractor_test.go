package engine

import (
	"context"
	"testing"
	"time"

	"github.com/calebsage/fable/internal/store"
)

func addMessage(t *testing.T, e *Engine, convID, role, content string, at int64) *store.Message {
	t.Helper()
	m := &store.Message{
		ConversationID:  convID,
		Role:            role,
		Content:         content,
		ImportanceScore: 1.0,
		MemoryType:      "short",
		CreatedAt:       at,
	}
	if err := e.Store.CreateMessage(m); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	return m
}

func TestExtractFacts(t *testing.T) {
	e := testEngine(t)
	story := testStory(t, e)
	ctx := context.Background()

	conv, err := e.ActiveConversation(ctx, story.ID)
	if err != nil {
		t.Fatalf("ActiveConversation: %v", err)
	}

	base := time.Now().UnixMilli()
	addMessage(t, e, conv.ID, store.RoleAI,
		"You enter a dark cave. Suddenly a dragon appears and roars.", base)

	facts, err := e.ExtractFacts(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ExtractFacts: %v", err)
	}
	if len(facts) == 0 {
		t.Fatal("expected facts, got none")
	}

	byType := map[string]int{}
	for _, f := range facts {
		byType[f.FactType]++
		if f.StoryID != story.ID {
			t.Errorf("fact story = %s, want %s", f.StoryID, story.ID)
		}
		if len(f.SourceMessageIDs) != 1 {
			t.Errorf("fact sources = %v, want one message", f.SourceMessageIDs)
		}
	}
	if byType[store.FactLocation] < 1 {
		t.Errorf("want at least one location fact, got %v", byType)
	}
	if byType[store.FactEvent] < 1 {
		t.Errorf("want at least one event fact, got %v", byType)
	}
}

func TestExtractFactsIdempotent(t *testing.T) {
	e := testEngine(t)
	story := testStory(t, e)
	ctx := context.Background()

	conv, err := e.ActiveConversation(ctx, story.ID)
	if err != nil {
		t.Fatalf("ActiveConversation: %v", err)
	}
	addMessage(t, e, conv.ID, store.RoleAI,
		"You find yourself in a ruined chapel, its roof open to the stars.",
		time.Now().UnixMilli())

	first, err := e.ExtractFacts(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ExtractFacts: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("expected facts on first pass")
	}

	// The watermark advanced; a second pass over the same messages must
	// produce nothing new.
	second, err := e.ExtractFacts(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ExtractFacts second pass: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second pass produced %d facts, want 0", len(second))
	}

	all, err := e.Store.StoryFacts(story.ID, "")
	if err != nil {
		t.Fatalf("StoryFacts: %v", err)
	}
	if len(all) != len(first) {
		t.Errorf("stored facts = %d, want %d", len(all), len(first))
	}
}

func TestExtractFactsSkipsPlayerText(t *testing.T) {
	e := testEngine(t)
	story := testStory(t, e)
	ctx := context.Background()

	conv, err := e.ActiveConversation(ctx, story.ID)
	if err != nil {
		t.Fatalf("ActiveConversation: %v", err)
	}
	// Would match a location rule if it were narrator text.
	addMessage(t, e, conv.ID, store.RolePlayer,
		"You enter a dark cave. Trust me.", time.Now().UnixMilli())

	facts, err := e.ExtractFacts(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ExtractFacts: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("player text produced %d facts, want 0", len(facts))
	}
}

func TestExtractFactsMissingConversation(t *testing.T) {
	e := testEngine(t)

	facts, err := e.ExtractFacts(context.Background(), "no-such-conversation")
	if err != nil {
		t.Fatalf("ExtractFacts: %v", err)
	}
	if facts != nil {
		t.Errorf("facts = %v, want nil", facts)
	}
}

func TestRulesetLengthGates(t *testing.T) {
	e := testEngine(t)
	story := testStory(t, e)
	ctx := context.Background()

	conv, err := e.ActiveConversation(ctx, story.ID)
	if err != nil {
		t.Fatalf("ActiveConversation: %v", err)
	}
	// "den" is too short for a location (needs more than 5 chars).
	addMessage(t, e, conv.ID, store.RoleAI, "You enter a den.", time.Now().UnixMilli())

	facts, err := e.ExtractFacts(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ExtractFacts: %v", err)
	}
	for _, f := range facts {
		if f.FactType == store.FactLocation {
			t.Errorf("short location slipped through: %+v", f)
		}
	}
}
