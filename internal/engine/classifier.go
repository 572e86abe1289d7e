package engine

import (
	"strings"
	"time"

	"github.com/calebsage/fable/internal/store"
)

// Classification constants. These are cheap structural heuristics, not
// semantic understanding.
const (
	baseImportance    = 1.0
	playerBonus       = 2.0
	actionVerbBonus   = 1.0
	plotKeywordBonus  = 2.0
	longResponseBonus = 0.5
	longResponseChars = 200
	maxImportance     = 10.0
)

// actionVerbs mark deliberate player agency.
var actionVerbs = []string{
	"attack", "cast", "use", "go", "take", "say", "ask", "search", "open",
}

// plotKeywords mark narrative turns in narrator text.
var plotKeywords = []string{
	"suddenly", "appears", "reveals", "discovers", "dies", "transforms",
}

// Classify scores a message's narrative significance on [1, 10]. Player
// messages start ahead because player agency drives the story; narrator
// messages earn their score from plot-turn vocabulary and length.
// Out-of-range results are capped, never rejected.
func Classify(content, role string) float64 {
	score := baseImportance
	lower := strings.ToLower(content)

	switch role {
	case store.RolePlayer:
		score += playerBonus
		if containsAny(lower, actionVerbs) {
			score += actionVerbBonus
		}
	case store.RoleAI:
		if containsAny(lower, plotKeywords) {
			score += plotKeywordBonus
		}
		if len(content) > longResponseChars {
			score += longResponseBonus
		}
	}

	if score > maxImportance {
		score = maxImportance
	}
	return score
}

// TierFor assigns a retention tier from score and age. Score dominates;
// the age branches only matter below 5.0.
//
// Callers classify at creation time with age zero, which makes the medium
// and final long branches unreachable today. The branches are kept for a
// future re-tiering pass over aged messages rather than folded away.
func TierFor(score float64, age time.Duration) string {
	switch {
	case score >= 7.0:
		return "critical"
	case score >= 5.0:
		return "long"
	case age <= 2*time.Hour:
		return "short"
	case age <= 24*time.Hour:
		return "medium"
	default:
		return "long"
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
