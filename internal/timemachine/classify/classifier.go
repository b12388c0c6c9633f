package classify

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Query length thresholds (characters) that nudge the complexity tier.
const (
	longQueryChars  = 100
	shortQueryChars = 20
)

var typePatterns = map[ResponseType][]string{
	Factual: {
		`\b(when|where|who|what year|how old|born|died)\b`,
		`\b(yes|no)\b questions`,
		`\b(name|date|location)\b`,
	},
	Philosophical: {
		`\b(think|feel|believe|philosophy|moral|ethics|regret)\b`,
		`\b(bhagavad|gita|meaning|purpose|responsibility)\b`,
		`\b(why|should|ought|right|wrong)\b`,
	},
	Narrative: {
		`\b(tell me about|describe|what happened|story|experience)\b`,
		`\b(trinity|los alamos|manhattan project|bomb|war)\b`,
		`\b(relationship|worked with|knew)\b`,
	},
	Personal: {
		`\b(how did you feel|personal|private|family|emotions)\b`,
		`\b(guilt|pride|fear|hope|regret|memory)\b`,
	},
	Scientific: {
		`\b(physics|quantum|nuclear|atoms|science|theory)\b`,
		`\b(explain|how does|mechanism|process)\b`,
	},
	Greeting: {
		`\b(hello|hi|who are you|introduce|meet)\b`,
	},
}

var simplePatterns = []string{
	`\b(when|where|who|what year|how old|born|died)\b`,
	`\b(yes|no)\b`,
	`\b(name|date|location)\b`,
	`^(who|what|when|where)\s+\w+\s*\?*$`,
}

var complexPatterns = []string{
	`\b(why|how|explain|describe|tell me about|what was.*like)\b`,
	`\b(relationship|experience|thoughts|feelings|philosophy)\b`,
	`\b(compare|contrast|difference|similar)\b`,
	`\s+and\s+`,
	`\?.*\?`,
}

// PatternClassifier scores queries against fixed keyword patterns. It is
// stateless after construction and safe for concurrent use.
type PatternClassifier struct {
	types   map[ResponseType][]*regexp.Regexp
	simple  []*regexp.Regexp
	complex []*regexp.Regexp
}

// NewPatternClassifier compiles the built-in pattern sets.
func NewPatternClassifier() *PatternClassifier {
	c := &PatternClassifier{
		types:   make(map[ResponseType][]*regexp.Regexp, len(typePatterns)),
		simple:  compileAll(simplePatterns),
		complex: compileAll(complexPatterns),
	}
	for t, pats := range typePatterns {
		c.types[t] = compileAll(pats)
	}
	return c
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Classify implements Classifier. It never returns an error.
func (c *PatternClassifier) Classify(_ context.Context, text string) (Query, error) {
	t, _ := c.ResponseType(text)
	return Query{Text: text, Type: t, Tier: c.Tier(text)}, nil
}

// ResponseType returns the winning type and the per-type match counts.
// Ties go to the type listed first in Priority; when every score is zero the
// result is DefaultType.
func (c *PatternClassifier) ResponseType(text string) (ResponseType, map[ResponseType]int) {
	lower := strings.ToLower(text)
	scores := make(map[ResponseType]int, len(Priority))
	for _, t := range Priority {
		scores[t] = countMatches(c.types[t], lower)
	}

	best, bestScore := DefaultType, 0
	for _, t := range Priority {
		if scores[t] > bestScore {
			best, bestScore = t, scores[t]
		}
	}
	return best, scores
}

// Tier scores simple-indicator patterns against complex-indicator patterns,
// with a one-point bonus for very long or very short queries.
func (c *PatternClassifier) Tier(text string) Tier {
	lower := strings.ToLower(text)
	simple := countMatches(c.simple, lower)
	complex := countMatches(c.complex, lower)

	switch n := utf8.RuneCountInString(text); {
	case n > longQueryChars:
		complex++
	case n < shortQueryChars:
		simple++
	}

	switch {
	case complex > simple:
		return Complex
	case simple > complex:
		return Simple
	default:
		return Medium
	}
}

func countMatches(patterns []*regexp.Regexp, s string) int {
	total := 0
	for _, re := range patterns {
		total += len(re.FindAllStringIndex(s, -1))
	}
	return total
}

var _ Classifier = (*PatternClassifier)(nil)
