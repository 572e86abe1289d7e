package store

import (
	"testing"
	"time"
)

func TestSummaryRoundTrip(t *testing.T) {
	db := testDB(t)
	_, conv := testConversation(t, db)

	now := time.Now().UnixMilli()
	s := &ConversationSummary{
		ConversationID:       conv.ID,
		SummaryText:          "Scene: the docks | You bargain with a smuggler",
		OriginalMessageCount: 20,
		TimeRangeStart:       now - 10000,
		TimeRangeEnd:         now,
		CompressionRatio:     12.5,
	}
	if err := db.CreateSummary(s); err != nil {
		t.Fatalf("CreateSummary: %v", err)
	}

	got, err := db.LatestSummary(conv.ID)
	if err != nil {
		t.Fatalf("LatestSummary: %v", err)
	}
	if got == nil {
		t.Fatal("LatestSummary returned nil")
	}
	if got.SummaryText != s.SummaryText || got.OriginalMessageCount != 20 {
		t.Errorf("summary = %+v", got)
	}
	if got.CompressionRatio != 12.5 {
		t.Errorf("CompressionRatio = %v, want 12.5", got.CompressionRatio)
	}
}

func TestLatestSummaryOrdering(t *testing.T) {
	db := testDB(t)
	_, conv := testConversation(t, db)

	now := time.Now().UnixMilli()
	early := &ConversationSummary{
		ConversationID: conv.ID, SummaryText: "early",
		OriginalMessageCount: 20, TimeRangeStart: now - 20000, TimeRangeEnd: now - 10000,
	}
	late := &ConversationSummary{
		ConversationID: conv.ID, SummaryText: "late",
		OriginalMessageCount: 20, TimeRangeStart: now - 10000, TimeRangeEnd: now,
	}
	if err := db.CreateSummary(early); err != nil {
		t.Fatalf("CreateSummary: %v", err)
	}
	if err := db.CreateSummary(late); err != nil {
		t.Fatalf("CreateSummary: %v", err)
	}

	got, err := db.LatestSummary(conv.ID)
	if err != nil {
		t.Fatalf("LatestSummary: %v", err)
	}
	if got.SummaryText != "late" {
		t.Errorf("LatestSummary = %q, want late", got.SummaryText)
	}
}

func TestRecentStorySummaries(t *testing.T) {
	db := testDB(t)
	story, conv := testConversation(t, db)

	now := time.Now().UnixMilli()
	old := &ConversationSummary{
		ConversationID: conv.ID, SummaryText: "ancient",
		OriginalMessageCount: 20,
		TimeRangeStart:       now - 10*24*3600*1000, TimeRangeEnd: now - 9*24*3600*1000,
	}
	recent := &ConversationSummary{
		ConversationID: conv.ID, SummaryText: "fresh",
		OriginalMessageCount: 20,
		TimeRangeStart:       now - 3600*1000, TimeRangeEnd: now,
	}
	if err := db.CreateSummary(old); err != nil {
		t.Fatalf("CreateSummary: %v", err)
	}
	if err := db.CreateSummary(recent); err != nil {
		t.Fatalf("CreateSummary: %v", err)
	}

	since := now - 3*24*3600*1000
	got, err := db.RecentStorySummaries(story.ID, since, 5)
	if err != nil {
		t.Fatalf("RecentStorySummaries: %v", err)
	}
	if len(got) != 1 || got[0].SummaryText != "fresh" {
		t.Errorf("summaries = %+v, want only the fresh one", got)
	}
}
