package store

import (
	"testing"
)

func TestCreateAndGetStory(t *testing.T) {
	db := testDB(t)

	s := &Story{
		Title:          "The Hollow Crown",
		Genre:          "fantasy",
		SettingSummary: "A kingdom where the dead vote",
		CurrentScene:   "The coronation",
	}
	if err := db.CreateStory(s); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	if s.ID == "" {
		t.Fatal("CreateStory did not assign an ID")
	}
	if s.Status != StoryActive {
		t.Errorf("Status = %q, want %q", s.Status, StoryActive)
	}

	got, err := db.GetStory(s.ID)
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if got == nil {
		t.Fatal("GetStory returned nil for existing story")
	}
	if got.Title != s.Title || got.Genre != s.Genre || got.SettingSummary != s.SettingSummary {
		t.Errorf("GetStory = %+v, want fields from %+v", got, s)
	}
}

func TestGetStoryMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetStory("no-such-story")
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if got != nil {
		t.Errorf("GetStory = %+v, want nil", got)
	}
}

func TestListStories(t *testing.T) {
	db := testDB(t)

	for _, title := range []string{"First", "Second", "Third"} {
		if err := db.CreateStory(&Story{Title: title}); err != nil {
			t.Fatalf("CreateStory(%s): %v", title, err)
		}
	}

	stories, err := db.ListStories(10)
	if err != nil {
		t.Fatalf("ListStories: %v", err)
	}
	if len(stories) != 3 {
		t.Fatalf("len = %d, want 3", len(stories))
	}

	stories, err = db.ListStories(2)
	if err != nil {
		t.Fatalf("ListStories limited: %v", err)
	}
	if len(stories) != 2 {
		t.Errorf("limited len = %d, want 2", len(stories))
	}
}

func TestUpdateStorySceneAndStatus(t *testing.T) {
	db := testDB(t)

	s := &Story{Title: "The Hollow Crown"}
	if err := db.CreateStory(s); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}

	if err := db.UpdateStoryScene(s.ID, "The throne room, after midnight"); err != nil {
		t.Fatalf("UpdateStoryScene: %v", err)
	}
	if err := db.UpdateStoryStatus(s.ID, StoryPaused); err != nil {
		t.Fatalf("UpdateStoryStatus: %v", err)
	}

	got, err := db.GetStory(s.ID)
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if got.CurrentScene != "The throne room, after midnight" {
		t.Errorf("CurrentScene = %q", got.CurrentScene)
	}
	if got.Status != StoryPaused {
		t.Errorf("Status = %q, want %q", got.Status, StoryPaused)
	}
}
