package engine

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/calebsage/fable/internal/store"
)

// defaultSessionGap is how long a conversation may sit idle before the
// next exchange opens a fresh session.
const defaultSessionGap = 2 * time.Hour

// summarizeThreshold is how many messages accumulate past the last summary
// before the compactor runs.
const summarizeThreshold = 20

// Engine orchestrates message classification, fact extraction, compaction,
// context assembly, and memory maintenance. All state is keyed by story and
// conversation in the store; the engine itself holds no story data.
type Engine struct {
	Store      *store.DB
	Rules      []Rule
	SessionGap time.Duration

	locks   *storyLocks
	maintMu chan struct{} // maintenance ops are mutually exclusive
}

// New creates an Engine with the default extraction ruleset.
func New(db *store.DB) *Engine {
	e := &Engine{
		Store:      db,
		Rules:      DefaultRuleset(),
		SessionGap: defaultSessionGap,
		locks:      newStoryLocks(),
		maintMu:    make(chan struct{}, 1),
	}
	return e
}

// ActiveConversation returns the conversation the next message belongs to,
// creating one when the story has none or the latest has been idle past the
// session gap. Session-boundary decisions for one story are serialized.
func (e *Engine) ActiveConversation(ctx context.Context, storyID string) (*store.Conversation, error) {
	unlock := e.locks.lock(storyID)
	defer unlock()

	conv, err := e.Store.LatestConversation(storyID)
	if err != nil {
		return nil, err
	}

	if conv != nil {
		idle := time.Since(time.UnixMilli(conv.UpdatedAt))
		if idle < e.SessionGap {
			return conv, nil
		}
	}

	conv = &store.Conversation{StoryID: storyID}
	if err := e.Store.CreateConversation(conv); err != nil {
		return nil, err
	}
	log.Debug("opened conversation", "story", storyID, "session", conv.SessionNumber)
	return conv, nil
}

// RecordMessage classifies, tiers, and persists one utterance, then bumps
// the conversation and story clocks. The score and tier are assigned here,
// once, and never revisited.
func (e *Engine) RecordMessage(ctx context.Context, conv *store.Conversation, role, content string) (*store.Message, error) {
	score := Classify(content, role)
	msg := &store.Message{
		ConversationID:  conv.ID,
		Role:            role,
		Content:         content,
		ImportanceScore: score,
		MemoryType:      TierFor(score, 0),
	}
	if err := e.Store.CreateMessage(msg); err != nil {
		return nil, err
	}
	if err := e.Store.TouchConversation(conv.ID); err != nil {
		return nil, err
	}
	if err := e.Store.TouchStory(conv.StoryID); err != nil {
		return nil, err
	}
	return msg, nil
}

// AfterExchange runs the post-generation memory pipeline for a
// conversation: fact extraction over the unscanned tail, then compaction
// once enough messages have piled up past the last summary. It holds the
// story lock so concurrent triggers cannot reprocess the same span.
func (e *Engine) AfterExchange(ctx context.Context, conversationID string) {
	conv, err := e.Store.GetConversation(conversationID)
	if err != nil || conv == nil {
		if err != nil {
			log.Error("after exchange: load conversation", "conversation", conversationID, "err", err)
		}
		return
	}

	unlock := e.locks.lock(conv.StoryID)
	defer unlock()

	facts, err := e.ExtractFacts(ctx, conversationID)
	if err != nil {
		log.Error("after exchange: extraction", "conversation", conversationID, "err", err)
	} else if len(facts) > 0 {
		log.Info("extracted facts", "conversation", conversationID, "count", len(facts))
	}

	due, err := e.ShouldSummarize(conversationID)
	if err != nil {
		log.Error("after exchange: summarize check", "conversation", conversationID, "err", err)
		return
	}
	if !due {
		return
	}

	summary, err := e.Summarize(ctx, conversationID, SummarizeOpts{})
	if err != nil {
		log.Error("after exchange: summarize", "conversation", conversationID, "err", err)
		return
	}
	if summary != nil {
		log.Info("compacted conversation", "conversation", conversationID,
			"messages", summary.OriginalMessageCount, "ratio", summary.CompressionRatio)
	}
}
