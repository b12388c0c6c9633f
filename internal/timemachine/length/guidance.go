// Package length decides how long a persona reply should be.
//
// An Optimizer tries its primary strategies in order (normally the
// model-backed Estimator) and falls back to the deterministic Heuristic, so
// a caller always receives a Guidance that satisfies the window invariants.
package length

import (
	"fmt"
	"math"

	"github.com/bdobrica/timemachine/internal/timemachine/classify"
)

// Source identifies the strategy that produced a Guidance.
type Source string

const (
	AIPowered Source = "ai_powered"
	RuleBased Source = "rule_based"
)

// Window bounds shared by every strategy.
const (
	MinFloor    = 100  // smallest allowed minimum
	HardCeiling = 1500 // largest allowed maximum
	MinSpread   = 50   // smallest allowed max − min
)

// Overshoot tolerances: a reply is shortened only once it exceeds the
// window maximum by this factor.
const (
	AITolerance   = 1.5
	RuleTolerance = 1.2
)

// Guidance is the length target handed to the prompt compiler and the
// post-processor.
type Guidance struct {
	Min           int
	Max           int
	DetailLevel   string
	Directive     string
	EstimatedCost float64
	Source        Source

	// ResponseType is the type the window was built for. The estimator may
	// relabel the query; the heuristic always echoes the classifier.
	ResponseType classify.ResponseType
	Tier         classify.Tier

	// Populated by the estimator only.
	Reasoning         string
	ComplexityScore   int
	CostEffectiveness int
	Engagement        string
}

// Validate checks the window invariants.
func (g Guidance) Validate() error {
	switch {
	case g.Min < MinFloor:
		return fmt.Errorf("length: min %d below floor %d", g.Min, MinFloor)
	case g.Max > HardCeiling:
		return fmt.Errorf("length: max %d above ceiling %d", g.Max, HardCeiling)
	case g.Max-g.Min < MinSpread:
		return fmt.Errorf("length: window %d-%d narrower than %d", g.Min, g.Max, MinSpread)
	}
	return nil
}

// Tolerance returns the overshoot factor for the guidance's source.
func (g Guidance) Tolerance() float64 {
	if g.Source == AIPowered {
		return AITolerance
	}
	return RuleTolerance
}

// OvershootLimit is the reply length above which the post-processor runs.
func (g Guidance) OvershootLimit() int {
	return int(math.Floor(float64(g.Max) * g.Tolerance()))
}

// detailLevels and directives describe how each type should be written.
var detailLevels = map[classify.ResponseType]string{
	classify.Factual:       "concise",
	classify.Philosophical: "thoughtful_depth",
	classify.Narrative:     "rich_detail",
	classify.Personal:      "measured_emotion",
	classify.Scientific:    "clear_thorough",
	classify.Greeting:      "brief_characterful",
}

var directives = map[classify.ResponseType]string{
	classify.Factual: "Provide a direct, factual answer. Include only essential details. " +
		"Be precise and avoid unnecessary elaboration.",
	classify.Philosophical: "Explore the deeper implications thoughtfully. Reference relevant literature " +
		"or philosophical concepts. Show moral complexity and introspection.",
	classify.Narrative: "Paint a vivid picture of the events. Include sensory details, emotions, " +
		"and context. Make the historical moment come alive.",
	classify.Personal: "Share genuine emotional insight. Be vulnerable but measured. " +
		"Connect personal experience to broader themes.",
	classify.Scientific: "Explain clearly without oversimplifying. Use appropriate technical terms " +
		"but ensure accessibility. Include the human element of discovery.",
	classify.Greeting: "Be characteristically formal yet warm. Hint at your philosophical nature " +
		"and historical significance briefly.",
}

// DetailLevel returns the detail label for t.
func DetailLevel(t classify.ResponseType) string {
	if d, ok := detailLevels[t]; ok {
		return d
	}
	return detailLevels[classify.DefaultType]
}

// Directive returns the free-text writing directive for t.
func Directive(t classify.ResponseType) string {
	if d, ok := directives[t]; ok {
		return d
	}
	return directives[classify.DefaultType]
}
