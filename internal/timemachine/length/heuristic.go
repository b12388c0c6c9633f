package length

import (
	"context"
	"math"

	"github.com/bdobrica/timemachine/internal/timemachine/classify"
)

// Heuristic scaling factors.
const (
	simpleFactor  = 0.7 // simple queries shrink the whole window
	complexFactor = 1.2 // complex queries stretch the maximum only
	fatigueFactor = 0.9 // applied once the history holds more than fatigueAfter exchanges
	budgetFactor  = 0.7 // applied when the reply would eat over budgetShare of what is left
	fatigueAfter  = 3
	budgetShare   = 0.5

	// HeuristicCeiling is the largest maximum the heuristic ever emits.
	HeuristicCeiling = 1200
)

// Heuristic is the deterministic strategy. It never fails and is safe for
// concurrent use.
type Heuristic struct {
	windows Windows
}

// NewHeuristic returns a Heuristic over w. A nil map uses DefaultWindows.
func NewHeuristic(w Windows) *Heuristic {
	if w == nil {
		w = DefaultWindows()
	}
	return &Heuristic{windows: w}
}

// Name implements Strategy.
func (h *Heuristic) Name() Source { return RuleBased }

// Guide implements Strategy. The error is always nil.
func (h *Heuristic) Guide(_ context.Context, req Request) (Guidance, error) {
	return h.Compute(req), nil
}

// Compute derives the window for req from the per-type table.
func (h *Heuristic) Compute(req Request) Guidance {
	typ := req.Query.Type
	if typ == "" {
		typ = classify.DefaultType
	}
	base := h.windows.Lookup(typ)
	lo, hi := float64(base.Min), float64(base.Max)

	switch req.Query.Tier {
	case classify.Simple:
		lo *= simpleFactor
		hi *= simpleFactor
	case classify.Complex:
		hi *= complexFactor
	}

	if len(req.History) > fatigueAfter {
		lo *= fatigueFactor
		hi *= fatigueFactor
	}

	cpc := req.costPerChar()
	if req.Budget != nil && hi*cpc > req.Budget.RemainingCost()*budgetShare {
		lo *= budgetFactor
		hi *= budgetFactor
	}

	minChars, maxChars := clampHeuristic(int(math.Round(lo)), int(math.Round(hi)))
	return Guidance{
		Min:           minChars,
		Max:           maxChars,
		DetailLevel:   DetailLevel(typ),
		Directive:     Directive(typ),
		EstimatedCost: float64(maxChars) * cpc,
		Source:        RuleBased,
		ResponseType:  typ,
		Tier:          req.Query.Tier,
	}
}

// clampHeuristic enforces MinFloor ≤ min ≤ max−MinSpread and
// max ≤ HeuristicCeiling.
func clampHeuristic(minChars, maxChars int) (int, int) {
	minChars = max(minChars, MinFloor)
	minChars = min(minChars, HeuristicCeiling-MinSpread)
	maxChars = min(maxChars, HeuristicCeiling)
	if maxChars < minChars+MinSpread {
		maxChars = minChars + MinSpread
	}
	return minChars, maxChars
}

var _ Strategy = (*Heuristic)(nil)
