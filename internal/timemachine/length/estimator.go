package length

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bdobrica/timemachine/common/runes"
	"github.com/bdobrica/timemachine/internal/timemachine/classify"
	"github.com/bdobrica/timemachine/internal/timemachine/llm"
	"github.com/bdobrica/timemachine/internal/timemachine/memory"
)

// Estimator defaults.
const (
	DefaultContextChars = 500
	summaryExchanges    = 3
	summaryQueryChars   = 100
	aiMinSpread         = 100
	aiFallbackSpread    = 200
)

var requiredFields = []string{"optimal_min_length", "optimal_max_length", "response_type"}

const estimateSchema = `{
  "type": "object",
  "required": ["response_type", "optimal_min_length", "optimal_max_length"],
  "properties": {
    "response_type": {"type": "string"},
    "complexity_score": {"type": ["number", "string"]},
    "information_density_needed": {"type": "string"},
    "optimal_min_length": {"type": ["number", "string"]},
    "optimal_max_length": {"type": ["number", "string"]},
    "reasoning": {"type": "string"},
    "cost_effectiveness_score": {"type": ["number", "string"]},
    "engagement_prediction": {"type": "string"}
  }
}`

var compiledSchema = jsonschema.MustCompileString("estimate.json", estimateSchema)

// EstimatorConfig tunes the prompt sent to the secondary model.
type EstimatorConfig struct {
	// PersonaName is the character the replies are written as.
	PersonaName string
	// ContextChars is how much retrieved context the estimator sees.
	// Defaults to DefaultContextChars.
	ContextChars int
	// Windows are quoted to the model as typical ranges. Defaults to
	// DefaultWindows.
	Windows Windows
}

// Estimator is the model-backed strategy. It asks a secondary Generator for
// a JSON length recommendation and clamps the answer into the window
// invariants.
type Estimator struct {
	gen llm.Generator
	cfg EstimatorConfig
}

// NewEstimator returns an Estimator calling gen.
func NewEstimator(gen llm.Generator, cfg EstimatorConfig) *Estimator {
	if cfg.ContextChars <= 0 {
		cfg.ContextChars = DefaultContextChars
	}
	if cfg.Windows == nil {
		cfg.Windows = DefaultWindows()
	}
	if cfg.PersonaName == "" {
		cfg.PersonaName = "a historical figure"
	}
	return &Estimator{gen: gen, cfg: cfg}
}

// Name implements Strategy.
func (e *Estimator) Name() Source { return AIPowered }

// Guide implements Strategy.
func (e *Estimator) Guide(ctx context.Context, req Request) (Guidance, error) {
	reply, err := e.gen.Generate(ctx, e.Prompt(req))
	if err != nil {
		return Guidance{}, fmt.Errorf("length: estimator call: %w", err)
	}
	est, err := ParseEstimate(reply)
	if err != nil {
		return Guidance{}, err
	}
	return est.guidance(req), nil
}

// Estimate is the decoded estimator payload, before clamping.
type Estimate struct {
	ResponseType      string
	ComplexityScore   int
	DensityNeeded     string
	MinChars          int
	MaxChars          int
	Reasoning         string
	CostEffectiveness int
	Engagement        string
}

// ParseEstimate extracts, validates and decodes the first JSON object in
// reply. Absent optional fields take their defaults.
func ParseEstimate(reply string) (Estimate, error) {
	obj, err := extractObject(reply)
	if err != nil {
		return Estimate{}, err
	}
	for _, f := range requiredFields {
		if _, ok := obj[f]; !ok {
			return Estimate{}, fmt.Errorf("%w: %s", ErrMissingFields, f)
		}
	}
	if err := compiledSchema.Validate(obj); err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", ErrMalformedEstimate, err)
	}

	est := Estimate{
		ResponseType:      stringField(obj, "response_type", ""),
		DensityNeeded:     stringField(obj, "information_density_needed", ""),
		Reasoning:         stringField(obj, "reasoning", "AI-optimized length calculation"),
		Engagement:        stringField(obj, "engagement_prediction", "medium"),
		ComplexityScore:   5,
		CostEffectiveness: 7,
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"optimal_min_length", &est.MinChars},
		{"optimal_max_length", &est.MaxChars},
		{"complexity_score", &est.ComplexityScore},
		{"cost_effectiveness_score", &est.CostEffectiveness},
	}
	for _, f := range ints {
		raw, ok := obj[f.key]
		if !ok {
			continue
		}
		n, err := toInt(raw)
		if err != nil {
			return Estimate{}, fmt.Errorf("%w: %s: %v", ErrMalformedEstimate, f.key, err)
		}
		*f.dst = n
	}
	return est, nil
}

// guidance clamps the estimate into a valid Guidance.
func (est Estimate) guidance(req Request) Guidance {
	typ, ok := classify.ParseResponseType(est.ResponseType)
	if !ok {
		typ = req.Query.Type
	}
	if typ == "" {
		typ = classify.DefaultType
	}
	lo, hi := ClampEstimate(est.MinChars, est.MaxChars)
	return Guidance{
		Min:               lo,
		Max:               hi,
		DetailLevel:       DetailLevel(typ),
		Directive:         Directive(typ),
		EstimatedCost:     float64(hi) * req.costPerChar(),
		Source:            AIPowered,
		ResponseType:      typ,
		Tier:              req.Query.Tier,
		Reasoning:         est.Reasoning,
		ComplexityScore:   clampInt(est.ComplexityScore, 1, 10),
		CostEffectiveness: clampInt(est.CostEffectiveness, 1, 10),
		Engagement:        est.Engagement,
	}
}

// ClampEstimate forces a model-proposed window into
// MinFloor ≤ min, max ≤ HardCeiling, max − min ≥ MinSpread.
func ClampEstimate(rawMin, rawMax int) (int, int) {
	lo := clampInt(rawMin, MinFloor, HardCeiling)
	hi := max(lo+aiMinSpread, min(HardCeiling, rawMax))
	hi = min(hi, HardCeiling)
	if hi-lo < MinSpread {
		hi = lo + aiFallbackSpread
		if hi > HardCeiling {
			hi = HardCeiling
			lo = HardCeiling - aiFallbackSpread
		}
	}
	return lo, hi
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func stringField(obj map[string]interface{}, key, def string) string {
	if s, ok := obj[key].(string); ok && s != "" {
		return s
	}
	return def
}

func toInt(v interface{}) (int, error) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		var err error
		if f, err = x.Float64(); err != nil {
			return 0, err
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(x), 64); err != nil {
			return 0, err
		}
	case float64:
		f = x
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	// Keep far-out values inside int range before truncating.
	f = math.Max(math.Min(f, 1e9), -1e9)
	return int(f), nil
}

// Prompt renders the estimation request for req.
func (e *Estimator) Prompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a response length optimizer for an AI system simulating %s.\n", e.cfg.PersonaName)
	sb.WriteString("Your task is to determine the optimal response length that maximizes information density while minimizing cost.\n\n")

	sb.WriteString("COST CONSIDERATIONS:\n")
	if cpc := req.costPerChar(); cpc > 0 {
		fmt.Fprintf(&sb, "- Speech synthesis: $%g per character\n", cpc)
	}
	sb.WriteString("- User engagement drops significantly after 1000 characters\n")
	sb.WriteString("- Very short responses (<200 chars) feel unsatisfying\n")
	sb.WriteString("- Very long responses (>1500 chars) are expensive and lose user attention\n\n")

	sb.WriteString("CONTEXT ANALYSIS:\n")
	fmt.Fprintf(&sb, "User Query: %q\n", req.Query.Text)
	ctxText := req.Context
	if runes.Len(ctxText) > e.cfg.ContextChars {
		ctxText = runes.Truncate(ctxText, e.cfg.ContextChars) + "..."
	}
	fmt.Fprintf(&sb, "Available Context: %q\n", ctxText)
	fmt.Fprintf(&sb, "Conversation History: %s\n\n", SummarizeHistory(req.History))

	sb.WriteString("RESPONSE TYPE CLASSIFICATION:\nClassify the query as one of:\n")
	for i, t := range classify.Priority {
		w := e.cfg.Windows.Lookup(t)
		fmt.Fprintf(&sb, "%d. %s (typical: %d-%d chars)\n", i+1, t, w.Min, w.Max)
	}

	sb.WriteString("\nINFORMATION DENSITY FACTORS:\n")
	sb.WriteString("- How much context is available to draw from?\n")
	sb.WriteString("- How complex is the question?\n")
	sb.WriteString("- What level of detail would satisfy the user?\n")
	sb.WriteString("- Is this a follow-up question that can be shorter?\n\n")

	sb.WriteString("Respond with a single JSON object in this format:\n")
	sb.WriteString(`{
    "response_type": "PHILOSOPHICAL",
    "complexity_score": 8,
    "information_density_needed": "high",
    "optimal_min_length": 400,
    "optimal_max_length": 650,
    "reasoning": "A complex moral question that needs depth but should stay engaging.",
    "cost_effectiveness_score": 9,
    "engagement_prediction": "high"
}`)
	sb.WriteString("\n")
	return sb.String()
}

// SummarizeHistory condenses the last few exchanges into one line for the
// estimator prompt.
func SummarizeHistory(history []memory.Exchange) string {
	if len(history) == 0 {
		return "New conversation"
	}
	if len(history) > summaryExchanges {
		history = history[len(history)-summaryExchanges:]
	}
	parts := make([]string, 0, len(history))
	for _, ex := range history {
		parts = append(parts, "User asked about: "+runes.Truncate(ex.UserText, summaryQueryChars))
	}
	return strings.Join(parts, "; ")
}

var _ Strategy = (*Estimator)(nil)
