package length

import (
	"context"
	"math"
	"testing"

	"github.com/bdobrica/timemachine/internal/timemachine/classify"
	"github.com/bdobrica/timemachine/internal/timemachine/memory"
)

type fakeBudget struct {
	remaining float64
	cpc       float64
}

func (f fakeBudget) RemainingCost() float64 { return f.remaining }
func (f fakeBudget) CostPerChar() float64   { return f.cpc }

func freshBudget() fakeBudget { return fakeBudget{remaining: 0.8, cpc: 0.000016} }

func historyOf(n int) []memory.Exchange {
	out := make([]memory.Exchange, n)
	for i := range out {
		out[i] = memory.NewExchange("q", "a", classify.Factual, 0, string(RuleBased))
	}
	return out
}

func TestHeuristic_Examples(t *testing.T) {
	h := NewHeuristic(nil)

	cases := []struct {
		name     string
		query    classify.Query
		wantMin  int
		wantMax  int
		wantType classify.ResponseType
	}{
		{"simple factual", classify.Query{Type: classify.Factual, Tier: classify.Simple}, 105, 245, classify.Factual},
		{"medium philosophical", classify.Query{Type: classify.Philosophical, Tier: classify.Medium}, 400, 700, classify.Philosophical},
		{"complex philosophical", classify.Query{Type: classify.Philosophical, Tier: classify.Complex}, 400, 840, classify.Philosophical},
		{"complex narrative", classify.Query{Type: classify.Narrative, Tier: classify.Complex}, 500, 1080, classify.Narrative},
		{"untyped", classify.Query{Tier: classify.Medium}, 500, 900, classify.Narrative},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := h.Compute(Request{Query: tc.query, Budget: freshBudget()})
			if g.Min != tc.wantMin || g.Max != tc.wantMax {
				t.Errorf("window: got %d-%d, want %d-%d", g.Min, g.Max, tc.wantMin, tc.wantMax)
			}
			if g.ResponseType != tc.wantType {
				t.Errorf("type: got %s, want %s", g.ResponseType, tc.wantType)
			}
			if g.Source != RuleBased {
				t.Errorf("source: got %s", g.Source)
			}
		})
	}
}

func TestHeuristic_FatigueDiscount(t *testing.T) {
	h := NewHeuristic(nil)
	q := classify.Query{Type: classify.Narrative, Tier: classify.Medium}

	three := h.Compute(Request{Query: q, History: historyOf(3), Budget: freshBudget()})
	four := h.Compute(Request{Query: q, History: historyOf(4), Budget: freshBudget()})

	if three.Max != 900 {
		t.Errorf("3 exchanges: got max %d, want 900", three.Max)
	}
	if four.Min != 450 || four.Max != 810 {
		t.Errorf("4 exchanges: got %d-%d, want 450-810", four.Min, four.Max)
	}
}

func TestHeuristic_BudgetDiscount(t *testing.T) {
	h := NewHeuristic(nil)
	q := classify.Query{Type: classify.Narrative, Tier: classify.Medium}

	// 900 chars cost 0.0144, more than half of 0.02.
	tight := fakeBudget{remaining: 0.02, cpc: 0.000016}
	g := h.Compute(Request{Query: q, Budget: tight})
	if g.Min != 350 || g.Max != 630 {
		t.Errorf("tight budget: got %d-%d, want 350-630", g.Min, g.Max)
	}
	if want := 630 * 0.000016; math.Abs(g.EstimatedCost-want) > 1e-12 {
		t.Errorf("EstimatedCost: got %g, want %g", g.EstimatedCost, want)
	}
}

func TestHeuristic_InvariantsHoldEverywhere(t *testing.T) {
	budgets := []BudgetView{
		nil,
		freshBudget(),
		fakeBudget{remaining: 0, cpc: 0.000016},
	}
	windowSets := []Windows{
		DefaultWindows(),
		DefaultWindows().Scale(0.3),
		DefaultWindows().Scale(2.5),
		{classify.Factual: {Min: 1, Max: 2}},
	}
	tiers := []classify.Tier{classify.Simple, classify.Medium, classify.Complex}

	for _, ws := range windowSets {
		h := NewHeuristic(ws)
		for _, typ := range classify.Priority {
			for _, tier := range tiers {
				for _, hist := range []int{0, 3, 4, 5} {
					for _, b := range budgets {
						req := Request{
							Query:   classify.Query{Type: typ, Tier: tier},
							History: historyOf(hist),
							Budget:  b,
						}
						g, err := h.Guide(context.Background(), req)
						if err != nil {
							t.Fatalf("Guide: %v", err)
						}
						if g.Min < 100 || g.Min > g.Max-50 || g.Max-50 > 1150 || g.Max > 1200 {
							t.Errorf("%s/%s hist=%d: window %d-%d violates invariants", typ, tier, hist, g.Min, g.Max)
						}
						if err := g.Validate(); err != nil {
							t.Errorf("%s/%s: %v", typ, tier, err)
						}
					}
				}
			}
		}
	}
}

func TestGuidance_OvershootLimit(t *testing.T) {
	ai := Guidance{Max: 600, Source: AIPowered}
	rule := Guidance{Max: 600, Source: RuleBased}
	if got := ai.OvershootLimit(); got != 900 {
		t.Errorf("ai: got %d, want 900", got)
	}
	if got := rule.OvershootLimit(); got != 720 {
		t.Errorf("rule: got %d, want 720", got)
	}
}

func TestWindows_ScaleAndValidate(t *testing.T) {
	w := DefaultWindows().Scale(0.7)
	if got := w[classify.Narrative]; got.Min != 350 || got.Max != 630 {
		t.Errorf("scaled narrative: got %+v", got)
	}
	if err := w.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	bad := Windows{classify.Factual: {Min: 300, Max: 200}}
	if err := bad.Validate(); err == nil {
		t.Error("inverted window should not validate")
	}
	for _, key := range []classify.ResponseType{"factual", "POETRY"} {
		if err := (Windows{key: {Min: 150, Max: 350}}).Validate(); err == nil {
			t.Errorf("window keyed %q should not validate", key)
		}
	}
}

func TestDirectiveFallsBackToNarrative(t *testing.T) {
	if Directive("POETRY") != Directive(classify.Narrative) {
		t.Error("unknown type should use the narrative directive")
	}
	if DetailLevel(classify.Factual) != "concise" {
		t.Errorf("DetailLevel(FACTUAL): got %q", DetailLevel(classify.Factual))
	}
}
