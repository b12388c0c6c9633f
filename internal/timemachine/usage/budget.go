// Package usage tracks how many characters a persona has emitted in the
// current budget period and decides whether speech synthesis may run.
package usage

import (
	"context"
	"fmt"
	"time"
)

// SynthesisCharLimit is the longest text ever sent to speech synthesis,
// regardless of the remaining budget.
const SynthesisCharLimit = 1200

// DefaultTenant names the budget used when tenants are not partitioned.
const DefaultTenant = "default"

// Budget describes the period allowance.
type Budget struct {
	MaxDailyChars int64   // character ceiling per period
	MaxDailyCost  float64 // optional cost ceiling per period; 0 disables it
	CostPerChar   float64 // synthesis price of one character
}

// DefaultBudget returns the built-in allowance: 50 000 characters or $0.80
// per day at $0.000016 per character.
func DefaultBudget() Budget {
	return Budget{
		MaxDailyChars: 50_000,
		MaxDailyCost:  0.80,
		CostPerChar:   0.000016,
	}
}

// Validate reports a budget that cannot gate anything.
func (b Budget) Validate() error {
	if b.MaxDailyChars <= 0 {
		return fmt.Errorf("usage: max daily chars must be positive, got %d", b.MaxDailyChars)
	}
	if b.CostPerChar <= 0 {
		return fmt.Errorf("usage: cost per char must be positive, got %g", b.CostPerChar)
	}
	if b.MaxDailyCost < 0 {
		return fmt.Errorf("usage: max daily cost must not be negative, got %g", b.MaxDailyCost)
	}
	return nil
}

// Period returns the budget period key for t: its UTC calendar date.
func Period(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// Persister stores the running period total so that a restart within a
// period resumes from the recorded usage.
type Persister interface {
	LoadUsage(ctx context.Context, tenant, period string) (int64, error)
	SaveUsage(ctx context.Context, tenant, period string, chars int64) error
	// ResetUsage zeroes the stored total for a period reset before the
	// period key changes.
	ResetUsage(ctx context.Context, tenant, period string) error
}
