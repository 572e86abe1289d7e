package narrator

import (
	"fmt"
	"strings"

	"github.com/calebsage/fable/internal/engine"
)

// Response length instruction baked into the base prompt.
const responseWordLimit = 300

// Prompt-side caps. The assembled context is already bounded; these trim
// the rendered sections further so the fixed framing stays dominant.
const (
	promptMemoryCap  = 5
	promptSummaryCap = 2
	promptRecentCap  = 5
	promptSnippetLen = 100
)

var basePrompt = fmt.Sprintf(`You are an AI storyteller crafting immersive narratives. All responses must be stories told from the reader's perspective using 'You' as the protagonist.

For the first prompt:
- Begin with a brief but vivid setting description—time, place, and atmosphere.
- The world can be fantastical or sci-fi with consistent internal logic.
- Keep descriptions concise and action-driven.

For subsequent prompts:
- Acknowledge the player's input and narrate immediate consequences.
- Responses should be short and move the story forward.
- Do not list multiple paths; let the player decide what happens next.
- Use sensory details without over-describing.
- Let actions speak louder than exposition.

Constraints:
- Reinterpret non-story inputs into the narrative to maintain immersion.
- Limit responses to %d words per interaction.
- Maintain consistent world rules and logical cause-and-effect.
- Adapt tone, pacing, and stakes to match the unfolding narrative.`, responseWordLimit)

// SystemPrompt renders the assembled context into the system prompt: the
// fixed storytelling instructions followed by story framing, top memories,
// recent summaries, and the last few exchanges.
func SystemPrompt(c *engine.Context) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	b.WriteString("\n\nSTORY CONTEXT:\n")
	fmt.Fprintf(&b, "- Title: %s\n", c.StorySetup.Title)
	fmt.Fprintf(&b, "- Genre: %s\n", c.StorySetup.Genre)
	fmt.Fprintf(&b, "- Setting: %s\n", c.StorySetup.Setting)
	fmt.Fprintf(&b, "- Current Scene: %s", c.StorySetup.CurrentScene)

	if len(c.ImportantMemories) > 0 {
		b.WriteString("\n\nIMPORTANT STORY ELEMENTS:")
		for i, m := range c.ImportantMemories {
			if i >= promptMemoryCap {
				break
			}
			fmt.Fprintf(&b, "\n- %s: %s", m.Title, m.Content)
		}
	}

	if len(c.ConversationSummaries) > 0 {
		b.WriteString("\n\nRECENT EVENTS:")
		for i, s := range c.ConversationSummaries {
			if i >= promptSummaryCap {
				break
			}
			fmt.Fprintf(&b, "\n- %s", s.Summary)
		}
	}

	if len(c.RecentContext) > 0 {
		b.WriteString("\n\nIMMEDIATE CONTEXT (last few exchanges):")
		recent := c.RecentContext
		if len(recent) > promptRecentCap {
			recent = recent[len(recent)-promptRecentCap:]
		}
		for _, m := range recent {
			label := "Story"
			if m.Role == "player" {
				label = "Player"
			}
			fmt.Fprintf(&b, "\n- %s: %s", label, snippet(m.Content))
		}
	}

	return b.String()
}

// PlayerInput frames the raw player text as the user turn.
func PlayerInput(input string) string {
	return fmt.Sprintf("Player action: %s", input)
}

func snippet(s string) string {
	if len(s) <= promptSnippetLen {
		return s
	}
	return s[:promptSnippetLen] + "..."
}
