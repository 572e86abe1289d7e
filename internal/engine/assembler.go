package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/calebsage/fable/internal/store"
)

// Assembly windows and caps.
const (
	recentWindow   = 2 * time.Hour
	recentCap      = 10
	memoryMinScore = 5.0
	memoryCap      = 8
	summaryWindow  = 3 * 24 * time.Hour
	summaryCap     = 5
	charsPerToken  = 4

	// Single-pass trim caps applied when the estimate exceeds the budget.
	trimmedRecentCap  = 5
	trimmedMemoryCap  = 4
	trimmedSummaryCap = 2
)

// Fallbacks for stories created before their metadata is filled in.
const (
	defaultTitle   = "An Untitled Adventure"
	defaultGenre   = "fantasy"
	defaultSetting = "A mysterious world awaits exploration"
	defaultScene   = "The adventure begins"
)

// StorySetup is the fixed story framing. Fields are never empty; absent
// metadata falls back to defaults.
type StorySetup struct {
	Title        string `json:"title"`
	Genre        string `json:"genre"`
	Setting      string `json:"setting"`
	CurrentScene string `json:"current_scene"`
}

// ContextMessage is one recent utterance in chronological order.
type ContextMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ContextMemory is one durable fact selected for the prompt.
type ContextMemory struct {
	Type       string  `json:"type"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
}

// ContextSummary is one compacted conversation span.
type ContextSummary struct {
	Summary      string `json:"summary"`
	TimeRange    string `json:"time_range"`
	MessageCount int    `json:"message_count"`
}

// Context is the bounded object handed to the narrator ahead of each
// generation call.
type Context struct {
	StorySetup            StorySetup       `json:"story_setup"`
	RecentContext         []ContextMessage `json:"recent_context"`
	ImportantMemories     []ContextMemory  `json:"important_memories"`
	ConversationSummaries []ContextSummary `json:"conversation_summary"`
}

// BuildContext assembles the story's context: setup, the last two hours of
// messages (chronological, capped), the highest-scoring facts, and recent
// summaries. Retrieved facts are touched, so inclusion in a prompt counts
// as a reference. If the token estimate exceeds the budget, one fixed trim
// is applied; any overage that survives the trim is accepted rather than
// iterated away. A missing story yields (nil, nil).
func (e *Engine) BuildContext(ctx context.Context, storyID string, tokenBudget int) (*Context, error) {
	story, err := e.Store.GetStory(storyID)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, nil
	}

	c := &Context{StorySetup: storySetup(story)}

	since := time.Now().Add(-recentWindow).UnixMilli()
	recent, err := e.Store.RecentStoryMessages(storyID, since, recentCap)
	if err != nil {
		return nil, err
	}
	// Newest-first fetch, reversed to chronological order.
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		c.RecentContext = append(c.RecentContext, ContextMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: time.UnixMilli(m.CreatedAt).UTC().Format(time.RFC3339),
		})
	}

	facts, err := e.Store.ImportantFacts(storyID, memoryMinScore, memoryCap)
	if err != nil {
		return nil, err
	}
	factIDs := make([]string, 0, len(facts))
	for _, f := range facts {
		factIDs = append(factIDs, f.ID)
		c.ImportantMemories = append(c.ImportantMemories, ContextMemory{
			Type:       f.FactType,
			Title:      f.Title,
			Content:    f.Content,
			Importance: f.ImportanceScore,
		})
	}
	if err := e.Store.TouchFacts(factIDs); err != nil {
		log.Warn("context: touch facts failed", "story", storyID, "err", err)
	}

	summarySince := time.Now().Add(-summaryWindow).UnixMilli()
	summaries, err := e.Store.RecentStorySummaries(storyID, summarySince, summaryCap)
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		c.ConversationSummaries = append(c.ConversationSummaries, ContextSummary{
			Summary:      s.SummaryText,
			TimeRange:    formatTimeRange(s.TimeRangeStart, s.TimeRangeEnd),
			MessageCount: s.OriginalMessageCount,
		})
	}

	if c.EstimateTokens() > tokenBudget {
		c.trim()
	}
	return c, nil
}

// EstimateTokens approximates the context size with the fixed 4-chars-per-
// token heuristic. This is deliberately not a real tokenizer.
func (c *Context) EstimateTokens() int {
	chars := len(c.StorySetup.Title) + len(c.StorySetup.Genre) +
		len(c.StorySetup.Setting) + len(c.StorySetup.CurrentScene)
	for _, m := range c.RecentContext {
		chars += len(m.Role) + len(m.Content) + len(m.Timestamp)
	}
	for _, m := range c.ImportantMemories {
		chars += len(m.Type) + len(m.Title) + len(m.Content)
	}
	for _, s := range c.ConversationSummaries {
		chars += len(s.Summary) + len(s.TimeRange)
	}
	return chars / charsPerToken
}

// trim applies the fixed over-budget reduction: story setup is kept whole,
// the variable sections drop to 5/4/2. No second pass follows.
func (c *Context) trim() {
	if len(c.RecentContext) > trimmedRecentCap {
		c.RecentContext = c.RecentContext[len(c.RecentContext)-trimmedRecentCap:]
	}
	if len(c.ImportantMemories) > trimmedMemoryCap {
		c.ImportantMemories = c.ImportantMemories[:trimmedMemoryCap]
	}
	if len(c.ConversationSummaries) > trimmedSummaryCap {
		c.ConversationSummaries = c.ConversationSummaries[:trimmedSummaryCap]
	}
}

func storySetup(s *store.Story) StorySetup {
	setup := StorySetup{
		Title:        s.Title,
		Genre:        s.Genre,
		Setting:      s.SettingSummary,
		CurrentScene: s.CurrentScene,
	}
	if setup.Title == "" {
		setup.Title = defaultTitle
	}
	if setup.Genre == "" {
		setup.Genre = defaultGenre
	}
	if setup.Setting == "" {
		setup.Setting = defaultSetting
	}
	if setup.CurrentScene == "" {
		setup.CurrentScene = defaultScene
	}
	return setup
}

func formatTimeRange(start, end int64) string {
	const layout = "2006-01-02 15:04"
	return fmt.Sprintf("%s - %s",
		time.UnixMilli(start).UTC().Format(layout),
		time.UnixMilli(end).UTC().Format(layout))
}
