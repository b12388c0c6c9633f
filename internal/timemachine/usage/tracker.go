package usage

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/bdobrica/timemachine/common/runes"
	"github.com/bdobrica/timemachine/internal/timemachine/observability"
)

// Tracker accumulates emitted characters against one Budget.
//
// The running total only changes through RecordEmission (an atomic add),
// Reset and Restore, so a Tracker may be shared by concurrent turns without
// losing updates. Every query method is a pure function of the current
// total.
type Tracker struct {
	tenant     string
	budget     Budget
	thresholds Thresholds
	persister  Persister
	now        func() time.Time

	used  atomic.Int64
	alert atomic.Int32
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithPersister saves the running total after every emission.
func WithPersister(p Persister) Option {
	return func(t *Tracker) { t.persister = p }
}

// WithThresholds overrides the alert thresholds.
func WithThresholds(th Thresholds) Option {
	return func(t *Tracker) { t.thresholds = th }
}

// WithClock injects the time source used to compute the period key.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns a Tracker for tenant with zero usage.
func NewTracker(tenant string, b Budget, opts ...Option) *Tracker {
	if tenant == "" {
		tenant = DefaultTenant
	}
	t := &Tracker{
		tenant:     tenant,
		budget:     b,
		thresholds: DefaultThresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tenant returns the tenant the tracker accounts for.
func (t *Tracker) Tenant() string { return t.tenant }

// Budget returns the configured allowance.
func (t *Tracker) Budget() Budget { return t.budget }

// CostPerChar returns the configured synthesis price of one character.
func (t *Tracker) CostPerChar() float64 { return t.budget.CostPerChar }

// Used returns the characters emitted in the current period.
func (t *Tracker) Used() int64 { return t.used.Load() }

// RecordEmission adds n characters to the period total and returns the new
// total. Negative n is ignored so the total never decreases.
func (t *Tracker) RecordEmission(ctx context.Context, n int) int64 {
	if n < 0 {
		n = 0
	}
	total := t.used.Add(int64(n))
	t.raiseAlert(ctx, total)

	if t.persister != nil {
		if err := t.persister.SaveUsage(ctx, t.tenant, Period(t.now()), total); err != nil {
			observability.WithTrace(ctx).Warn("usage: persist failed",
				"tenant", t.tenant, "err", err)
		}
	}
	return total
}

// RemainingChars returns the characters left in the period, never negative.
func (t *Tracker) RemainingChars() int64 {
	if rem := t.budget.MaxDailyChars - t.used.Load(); rem > 0 {
		return rem
	}
	return 0
}

// RemainingCost returns the spend left in the period. It is the smaller of
// the character allowance priced per character and the cost ceiling minus
// the spend so far (when a ceiling is set). Never negative.
func (t *Tracker) RemainingCost() float64 {
	used := t.used.Load()
	rem := float64(t.budget.MaxDailyChars-used) * t.budget.CostPerChar
	if t.budget.MaxDailyCost > 0 {
		rem = math.Min(rem, t.budget.MaxDailyCost-float64(used)*t.budget.CostPerChar)
	}
	return math.Max(rem, 0)
}

// CostEstimate prices text at the configured per-character rate.
func (t *Tracker) CostEstimate(text string) float64 {
	return t.CostOf(runes.Len(text))
}

// CostOf prices n characters.
func (t *Tracker) CostOf(n int) float64 {
	return float64(n) * t.budget.CostPerChar
}

// ShouldSynthesize reports whether text may be sent to speech synthesis:
// its projected cost must fit the remaining budget and it must not exceed
// SynthesisCharLimit characters.
func (t *Tracker) ShouldSynthesize(text string) bool {
	n := runes.Len(text)
	if n > SynthesisCharLimit {
		return false
	}
	return t.CostOf(n) <= t.RemainingCost()
}

// AlertLevel reports the alert level implied by the current total.
func (t *Tracker) AlertLevel() Level {
	return t.thresholds.levelFor(t.fraction(t.used.Load()))
}

// Reset zeroes the period total. It is called at period rollover. The
// stored total is zeroed too, so a schedule finer than the period key does
// not resurrect the old count on restart.
func (t *Tracker) Reset(ctx context.Context) {
	t.used.Store(0)
	t.alert.Store(int32(AlertNone))
	if t.persister != nil {
		if err := t.persister.ResetUsage(ctx, t.tenant, Period(t.now())); err != nil {
			observability.WithTrace(ctx).Warn("usage: persist reset failed",
				"tenant", t.tenant, "err", err)
		}
	}
}

// Restore sets the period total to a previously persisted value.
func (t *Tracker) Restore(chars int64) {
	if chars < 0 {
		chars = 0
	}
	t.used.Store(chars)
	t.alert.Store(int32(t.thresholds.levelFor(t.fraction(chars))))
}

func (t *Tracker) fraction(used int64) float64 {
	if t.budget.MaxDailyChars <= 0 {
		return 1
	}
	return float64(used) / float64(t.budget.MaxDailyChars)
}

// raiseAlert logs each upward level transition once per period.
func (t *Tracker) raiseAlert(ctx context.Context, total int64) {
	level := t.thresholds.levelFor(t.fraction(total))
	for {
		prev := Level(t.alert.Load())
		if level <= prev {
			return
		}
		if t.alert.CompareAndSwap(int32(prev), int32(level)) {
			observability.WithTrace(ctx).Warn("usage: budget alert",
				"tenant", t.tenant,
				"level", level.String(),
				"used", total,
				"max", t.budget.MaxDailyChars,
				"remaining_cost", t.RemainingCost(),
			)
			return
		}
	}
}
