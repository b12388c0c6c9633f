package usage

import (
	"context"
	"sort"
	"sync"

	"github.com/bdobrica/timemachine/internal/timemachine/observability"
)

// Ledger hands out Trackers. In shared mode every tenant maps onto a single
// DefaultTenant tracker; in partitioned mode each tenant gets its own.
//
// Ledger is safe for concurrent use.
type Ledger struct {
	mu          sync.Mutex
	budget      Budget
	partitioned bool
	persister   Persister
	opts        []Option
	trackers    map[string]*Tracker
}

// NewLedger returns a Ledger allocating budget b per tracker.
func NewLedger(b Budget, partitioned bool, persister Persister, opts ...Option) *Ledger {
	if persister != nil {
		opts = append(opts, WithPersister(persister))
	}
	return &Ledger{
		budget:      b,
		partitioned: partitioned,
		persister:   persister,
		opts:        opts,
		trackers:    make(map[string]*Tracker),
	}
}

// Partitioned reports whether tenants have independent budgets.
func (l *Ledger) Partitioned() bool { return l.partitioned }

// For returns the tracker charged for tenant, creating it on first use and
// restoring any persisted total for the current period.
func (l *Ledger) For(ctx context.Context, tenant string) *Tracker {
	if !l.partitioned || tenant == "" {
		tenant = DefaultTenant
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.trackers[tenant]; ok {
		return t
	}
	t := NewTracker(tenant, l.budget, l.opts...)
	if l.persister != nil {
		used, err := l.persister.LoadUsage(ctx, tenant, Period(t.now()))
		if err != nil {
			observability.WithTrace(ctx).Warn("usage: restore failed",
				"tenant", tenant, "err", err)
		} else {
			t.Restore(used)
		}
	}
	l.trackers[tenant] = t
	return t
}

// ResetAll zeroes every tracker. It is wired to the period rollover.
func (l *Ledger) ResetAll(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.trackers {
		t.Reset(ctx)
	}
}

// Snapshot is a point-in-time view of one tracker.
type Snapshot struct {
	Tenant        string
	Used          int64
	MaxChars      int64
	RemainingCost float64
	Level         Level
}

// Snapshot returns every tracker's state, sorted by tenant.
func (l *Ledger) Snapshot() []Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Snapshot, 0, len(l.trackers))
	for name, t := range l.trackers {
		out = append(out, Snapshot{
			Tenant:        name,
			Used:          t.Used(),
			MaxChars:      t.budget.MaxDailyChars,
			RemainingCost: t.RemainingCost(),
			Level:         t.AlertLevel(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tenant < out[j].Tenant })
	return out
}
