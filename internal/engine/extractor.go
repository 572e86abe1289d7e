package engine

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/calebsage/fable/internal/store"
)

// ExtractFacts scans a conversation's narrator messages for durable story
// facts and persists each one. Only messages past the conversation's
// extraction watermark are scanned, so re-running over the same
// conversation does not duplicate facts. Player text is never scanned.
//
// Each fact commits independently: a failed insert is logged and skipped,
// never aborting the rest of the batch. Returns the facts that were
// actually saved. A missing conversation yields a nil result, not an error.
func (e *Engine) ExtractFacts(ctx context.Context, conversationID string) ([]store.MemoryFact, error) {
	conv, err := e.Store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, nil
	}

	msgs, err := e.Store.ConversationMessagesAfter(conversationID, conv.ExtractedThrough)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	var saved []store.MemoryFact
	var watermark int64

	for _, msg := range msgs {
		if msg.CreatedAt > watermark {
			watermark = msg.CreatedAt
		}
		if msg.Role != store.RoleAI {
			continue
		}

		for _, fact := range e.factsFromMessage(conv, msg) {
			if err := e.Store.CreateFact(&fact); err != nil {
				log.Warn("extraction: save fact failed", "title", fact.Title, "err", err)
				continue
			}
			saved = append(saved, fact)
		}
	}

	if err := e.Store.SetExtractedThrough(conversationID, watermark); err != nil {
		// Facts are already committed; a stale watermark only means the
		// consolidation pass has more duplicates to fold later.
		log.Warn("extraction: advance watermark failed", "conversation", conversationID, "err", err)
	}

	return saved, nil
}

// factsFromMessage runs the ruleset over one narrator message.
func (e *Engine) factsFromMessage(conv *store.Conversation, msg store.Message) []store.MemoryFact {
	lower := strings.ToLower(msg.Content)

	var facts []store.MemoryFact
	for _, rule := range e.Rules {
		for _, groups := range rule.Pattern.FindAllStringSubmatch(lower, -1) {
			cand, ok := rule.Build(groups)
			if !ok {
				continue
			}
			facts = append(facts, store.MemoryFact{
				StoryID:              conv.StoryID,
				FactType:             rule.FactType,
				Title:                cand.Title,
				Content:              cand.Content,
				ImportanceScore:      rule.Importance,
				RelevanceTags:        cand.Tags,
				SourceMessageIDs:     []string{msg.ID},
				SourceConversationID: conv.ID,
			})
		}
	}
	return facts
}
