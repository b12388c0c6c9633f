package length

import (
	"context"
	"time"

	"github.com/bdobrica/timemachine/internal/timemachine/observability"
)

// DefaultEstimateTimeout bounds each primary strategy call.
const DefaultEstimateTimeout = 15 * time.Second

// Optimizer runs its primary strategies in order and falls back to the
// Heuristic when every one of them fails or returns an invalid window.
type Optimizer struct {
	primary  []Strategy
	fallback *Heuristic
	timeout  time.Duration
}

// NewOptimizer returns an Optimizer. A nil fallback uses the default
// windows; timeout ≤ 0 uses DefaultEstimateTimeout.
func NewOptimizer(fallback *Heuristic, timeout time.Duration, primary ...Strategy) *Optimizer {
	if fallback == nil {
		fallback = NewHeuristic(nil)
	}
	if timeout <= 0 {
		timeout = DefaultEstimateTimeout
	}
	return &Optimizer{primary: primary, fallback: fallback, timeout: timeout}
}

// Optimize returns a Guidance for req. It never fails: call errors,
// timeouts, malformed estimates and invalid windows all fall through to the
// next strategy and finally to the heuristic.
func (o *Optimizer) Optimize(ctx context.Context, req Request) Guidance {
	log := observability.WithTrace(ctx)
	for _, s := range o.primary {
		g, err := o.try(ctx, s, req)
		if err == nil {
			if err = g.Validate(); err == nil {
				return g
			}
		}
		log.Warn("length: strategy failed, falling back",
			"strategy", s.Name(), "err", err)
	}
	return o.fallback.Compute(req)
}

func (o *Optimizer) try(ctx context.Context, s Strategy, req Request) (Guidance, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return s.Guide(ctx, req)
}
