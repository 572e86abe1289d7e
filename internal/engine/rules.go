package engine

import (
	"fmt"
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/calebsage/fable/internal/store"
)

// Candidate is a fact proposed by a rule before persistence.
type Candidate struct {
	Title   string
	Content string
	Tags    []string
}

// BuildFunc turns a regex match (full match at index 0, then capture
// groups) into a candidate fact. Returning false rejects the match.
type BuildFunc func(groups []string) (Candidate, bool)

// Rule is one pattern-to-fact mapping. The extractor runs an ordered list
// of rules over lowercased narrator text; the list is a plain value so a
// model-backed ruleset can replace it without touching the pipeline.
type Rule struct {
	FactType   string
	Pattern    *regexp.Regexp
	Importance float64
	Build      BuildFunc
}

var titleCaser = cases.Title(language.English)

// DefaultRuleset returns the structural extraction rules: characters,
// locations, events, and world rules, in that order.
func DefaultRuleset() []Rule {
	rules := []Rule{}

	// Characters: introductions and speech attributions. The first group
	// index holds the name, the second the descriptor (or vice versa).
	charPatterns := []struct {
		expr             string
		nameIdx, descIdx int
	}{
		{`(?:a|an|the) (.+?) (?:named|called) (\w+)`, 2, 1},
		{`(\w+) (?:the|a|an) (.+?) (?:says|speaks|tells|whispers)`, 1, 2},
		{`(?:meet|encounter|see) (?:a|an|the) (.+?) (?:named|called) (\w+)`, 2, 1},
	}
	for _, cp := range charPatterns {
		nameIdx, descIdx := cp.nameIdx, cp.descIdx
		rules = append(rules, Rule{
			FactType:   store.FactCharacter,
			Pattern:    regexp.MustCompile(cp.expr),
			Importance: 6.0,
			Build: func(groups []string) (Candidate, bool) {
				name, desc := groups[nameIdx], groups[descIdx]
				if len(name) <= 2 || !isAlpha(name) {
					return Candidate{}, false
				}
				titled := titleCaser.String(name)
				return Candidate{
					Title:   fmt.Sprintf("%s the %s", titled, desc),
					Content: fmt.Sprintf("Character: %s, a %s. First encountered in conversation.", titled, desc),
					Tags:    []string{"character", name, desc},
				}, true
			},
		})
	}

	// Locations: where the player finds themselves.
	locPatterns := []string{
		`you (?:enter|arrive at|find yourself in) (?:a|an|the) (.+?)(?:\.|,)`,
		`(?:the|a|an) (.+?) (?:stretches|extends|lies) before you`,
		`you are (?:in|at|within) (?:a|an|the) (.+?)(?:\.|,)`,
	}
	for _, expr := range locPatterns {
		rules = append(rules, Rule{
			FactType:   store.FactLocation,
			Pattern:    regexp.MustCompile(expr),
			Importance: 5.0,
			Build: func(groups []string) (Candidate, bool) {
				loc := groups[1]
				if len(loc) <= 5 || len(loc) >= 100 {
					return Candidate{}, false
				}
				return Candidate{
					Title:   "Location: " + titleCaser.String(loc),
					Content: fmt.Sprintf("A location in the story: %s. Visited during the adventure.", loc),
					Tags:    []string{"location", loc},
				}, true
			},
		})
	}

	// Events: outcomes and plot turns that changed the story state.
	eventPatterns := []string{
		`(you (?:defeat|kill|destroy) .+?)(?:\.|!)`,
		`(you (?:find|discover|obtain|gain) .+?)(?:\.|!)`,
		`(you (?:learn|realize|understand) .+?)(?:\.|!)`,
		`(something (?:happens|occurs|changes) .+?)(?:\.|!)`,
		`(suddenly .+?)(?:\.|!)`,
		`((?:a|an|the) .+? (?:appears|emerges|arrives|attacks))(?:\.|!)`,
	}
	for _, expr := range eventPatterns {
		rules = append(rules, Rule{
			FactType:   store.FactEvent,
			Pattern:    regexp.MustCompile(expr),
			Importance: 7.0,
			Build: func(groups []string) (Candidate, bool) {
				event := groups[1]
				if len(event) <= 10 || len(event) >= 200 {
					return Candidate{}, false
				}
				return Candidate{
					Title:   "Event: " + clip(event, 50) + "...",
					Content: "Important event: " + event,
					Tags:    []string{"event", "important"},
				}, true
			},
		})
	}

	// World rules and mechanics.
	rulePatterns := []string{
		`(magic (?:works|functions|operates) .+?)(?:\.|!)`,
		`(the (?:curse|spell|enchantment) .+?)(?:\.|!)`,
		`(you (?:can|cannot|must|should) .+? because .+?)(?:\.|!)`,
		`((?:in this world|here) .+?)(?:\.|!)`,
	}
	for _, expr := range rulePatterns {
		rules = append(rules, Rule{
			FactType:   store.FactRule,
			Pattern:    regexp.MustCompile(expr),
			Importance: 6.5,
			Build: func(groups []string) (Candidate, bool) {
				rule := groups[1]
				if len(rule) <= 15 || len(rule) >= 300 {
					return Candidate{}, false
				}
				return Candidate{
					Title:   "Rule: " + clip(rule, 50) + "...",
					Content: "World rule or mechanic: " + rule,
					Tags:    []string{"rule", "world", "mechanic"},
				}, true
			},
		})
	}

	return rules
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return s != ""
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
