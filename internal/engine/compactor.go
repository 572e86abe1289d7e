package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/calebsage/fable/internal/store"
)

const (
	sceneMaxChars       = 100
	eventMaxChars       = 150
	eventMinChars       = 10
	actionMaxChars      = 100
	maxEventsPerMessage = 3
	summaryDelimiter    = " | "
)

// Scene phrases the compactor lifts from narrator text.
var scenePatterns = []*regexp.Regexp{
	regexp.MustCompile(`you (?:find yourself|are|enter|approach) (?:in|at|near) (.+?)(?:\.|,|\n)`),
	regexp.MustCompile(`the (.+?) (?:surrounds|stretches|looms)`),
	regexp.MustCompile(`(?:before you|ahead) (?:lies|stands|sits) (.+?)(?:\.|,|\n)`),
}

// Notable-event fragments worth carrying into the summary verbatim.
var notableEventPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(suddenly .+?)(?:\.|!|\n)`),
	regexp.MustCompile(`(you (?:discover|find|notice|see|hear) .+?)(?:\.|!|\n)`),
	regexp.MustCompile(`((?:a|an|the) .+? (?:appears|emerges|arrives|attacks|speaks))(?:\.|!|\n)`),
	regexp.MustCompile(`(you feel .+?)(?:\.|!|\n)`),
}

// Leading conversational filler stripped from player actions.
var playerFillerRe = regexp.MustCompile(`^(i |i'll |let me |i want to |i try to )`)

// SummarizeOpts optionally narrows a summary to a contiguous message
// range, identified by its first and last message.
type SummarizeOpts struct {
	StartMessageID string
	EndMessageID   string
}

// ShouldSummarize reports whether a conversation has accumulated enough
// messages past its last summary to be worth compacting. The trigger
// policy lives with the caller; this is just the measurement.
func (e *Engine) ShouldSummarize(conversationID string) (bool, error) {
	last, err := e.Store.LatestSummary(conversationID)
	if err != nil {
		return false, err
	}

	var n int
	if last == nil {
		n, err = e.Store.CountMessages(conversationID)
	} else {
		n, err = e.Store.CountMessagesAfter(conversationID, last.TimeRangeEnd)
	}
	if err != nil {
		return false, err
	}
	return n >= summarizeThreshold, nil
}

// Summarize compacts a conversation's messages (or a contiguous range of
// them) into one persisted summary. An empty range yields (nil, nil) and
// persists nothing. Unlike extraction this is all-or-nothing: any
// persistence failure leaves no partial record behind.
func (e *Engine) Summarize(ctx context.Context, conversationID string, opts SummarizeOpts) (*store.ConversationSummary, error) {
	conv, err := e.Store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, nil
	}

	msgs, err := e.rangeMessages(conversationID, opts)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	text := summaryText(msgs)

	originalLen := 0
	for _, m := range msgs {
		originalLen += len(m.Content)
	}
	ratio := 0.0
	if len(text) > 0 {
		ratio = float64(originalLen) / float64(len(text))
	}

	summary := &store.ConversationSummary{
		ConversationID:       conversationID,
		SummaryText:          text,
		OriginalMessageCount: len(msgs),
		StartMessageID:       msgs[0].ID,
		EndMessageID:         msgs[len(msgs)-1].ID,
		TimeRangeStart:       msgs[0].CreatedAt,
		TimeRangeEnd:         msgs[len(msgs)-1].CreatedAt,
		CompressionRatio:     ratio,
	}
	if err := e.Store.CreateSummary(summary); err != nil {
		return nil, fmt.Errorf("persist summary: %w", err)
	}
	return summary, nil
}

// rangeMessages resolves the message window for a summary. Range bounds
// are resolved through the named messages' creation times, keeping the
// window contiguous in creation order.
func (e *Engine) rangeMessages(conversationID string, opts SummarizeOpts) ([]store.Message, error) {
	if opts.StartMessageID == "" && opts.EndMessageID == "" {
		return e.Store.ConversationMessages(conversationID)
	}

	start, err := e.Store.GetMessage(opts.StartMessageID)
	if err != nil {
		return nil, err
	}
	end, err := e.Store.GetMessage(opts.EndMessageID)
	if err != nil {
		return nil, err
	}
	if start == nil || end == nil {
		return nil, nil
	}
	return e.Store.MessagesInRange(conversationID, start.CreatedAt, end.CreatedAt)
}

// summaryText walks messages chronologically, emitting scene changes,
// notable narrator events, and condensed player actions joined by a fixed
// delimiter.
func summaryText(msgs []store.Message) string {
	var parts []string
	currentScene := ""

	for _, msg := range msgs {
		switch msg.Role {
		case store.RoleAI:
			if scene := extractScene(msg.Content); scene != "" && scene != currentScene {
				parts = append(parts, "Scene: "+scene)
				currentScene = scene
			}
			parts = append(parts, notableEvents(msg.Content)...)
		case store.RolePlayer:
			if action := playerAction(msg.Content); action != "" {
				parts = append(parts, "Player: "+action)
			}
		}
	}

	return strings.Join(parts, summaryDelimiter)
}

// extractScene pulls a scene/location phrase from narrator text, or "".
func extractScene(text string) string {
	lower := strings.ToLower(text)
	for _, re := range scenePatterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			return clip(strings.TrimSpace(m[1]), sceneMaxChars)
		}
	}
	return ""
}

// notableEvents pulls up to three event fragments from narrator text,
// capitalized and length-capped.
func notableEvents(text string) []string {
	lower := strings.ToLower(text)

	var events []string
	for _, re := range notableEventPatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			event := clip(strings.TrimSpace(m[1]), eventMaxChars)
			if len(event) > eventMinChars {
				events = append(events, capitalize(event))
			}
		}
	}

	if len(events) > maxEventsPerMessage {
		events = events[:maxEventsPerMessage]
	}
	return events
}

// playerAction condenses a player message: leading filler stripped,
// length-capped, capitalized.
func playerAction(text string) string {
	cleaned := playerFillerRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), "")
	return capitalize(strings.TrimSpace(clip(cleaned, actionMaxChars)))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
