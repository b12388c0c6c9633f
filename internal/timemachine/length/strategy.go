package length

import (
	"context"

	"github.com/bdobrica/timemachine/internal/timemachine/classify"
	"github.com/bdobrica/timemachine/internal/timemachine/memory"
)

// BudgetView is the read-only slice of the usage tracker the optimizer
// needs. *usage.Tracker satisfies it.
type BudgetView interface {
	RemainingCost() float64
	CostPerChar() float64
}

// Request is everything a strategy may look at for one turn.
type Request struct {
	Query   classify.Query
	Context string
	History []memory.Exchange
	Budget  BudgetView // may be nil
}

func (r Request) costPerChar() float64 {
	if r.Budget == nil {
		return 0
	}
	return r.Budget.CostPerChar()
}

// Strategy produces a length Guidance for one request.
type Strategy interface {
	Name() Source
	Guide(ctx context.Context, req Request) (Guidance, error)
}
