// Package classify assigns a response type and a complexity tier to a raw
// user query.
//
// The two labels are scored independently: the response type drives the
// content guidance given to the model, while the complexity tier only scales
// the numeric length window.
package classify

import (
	"context"
	"strings"
)

// ResponseType is the content category of a query.
type ResponseType string

const (
	Factual       ResponseType = "FACTUAL"
	Philosophical ResponseType = "PHILOSOPHICAL"
	Narrative     ResponseType = "NARRATIVE"
	Personal      ResponseType = "PERSONAL"
	Scientific    ResponseType = "SCIENTIFIC"
	Greeting      ResponseType = "GREETING"
)

// Priority is the fixed tie-break order: when two types score the same, the
// one listed first wins.
var Priority = []ResponseType{Factual, Philosophical, Narrative, Personal, Scientific, Greeting}

// DefaultType is used when no pattern matches at all.
const DefaultType = Narrative

// ParseResponseType maps a label produced by a model or a config file to a
// ResponseType. Matching is case-insensitive and accepts the long-form
// aliases ("simple_fact", "historical", ...).
func ParseResponseType(s string) (ResponseType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "factual", "simple_fact", "fact":
		return Factual, true
	case "philosophical":
		return Philosophical, true
	case "narrative", "historical", "historical_narrative":
		return Narrative, true
	case "personal", "personal_reflection":
		return Personal, true
	case "scientific", "scientific_explanation":
		return Scientific, true
	case "greeting":
		return Greeting, true
	}
	return "", false
}

// Tier is the complexity class of a query.
type Tier string

const (
	Simple  Tier = "simple"
	Medium  Tier = "medium"
	Complex Tier = "complex"
)

// Query is the immutable user text plus the labels derived from it once per
// turn.
type Query struct {
	Text string
	Type ResponseType
	Tier Tier
}

// Classifier labels a query. PatternClassifier is the built-in
// implementation; a model-backed classifier can replace it without touching
// the later pipeline stages.
type Classifier interface {
	Classify(ctx context.Context, text string) (Query, error)
}

// Fallback returns the labels used when a Classifier fails.
func Fallback(text string) Query {
	return Query{Text: text, Type: DefaultType, Tier: Medium}
}
