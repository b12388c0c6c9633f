package usage

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTracker_RecordEmissionIsMonotonic(t *testing.T) {
	tr := NewTracker("", DefaultBudget())
	ctx := context.Background()

	if got := tr.RecordEmission(ctx, 300); got != 300 {
		t.Errorf("after first emission: got %d, want 300", got)
	}
	if got := tr.RecordEmission(ctx, -50); got != 300 {
		t.Errorf("negative emission changed total: got %d", got)
	}
	tr.RecordEmission(ctx, 200)
	if tr.Used() != 500 {
		t.Errorf("Used: got %d, want 500", tr.Used())
	}
	if tr.Tenant() != DefaultTenant {
		t.Errorf("Tenant: got %q", tr.Tenant())
	}
}

func TestTracker_CostEstimate(t *testing.T) {
	tr := NewTracker("t", DefaultBudget())
	if got := tr.CostEstimate(strings.Repeat("a", 1000)); !approx(got, 0.016) {
		t.Errorf("CostEstimate: got %g, want 0.016", got)
	}
	// Characters, not bytes.
	if got := tr.CostEstimate("éé"); !approx(got, 2*0.000016) {
		t.Errorf("CostEstimate(multibyte): got %g", got)
	}
}

func TestTracker_RemainingCostUsesCeiling(t *testing.T) {
	b := Budget{MaxDailyChars: 50_000, MaxDailyCost: 0.5, CostPerChar: 0.000016}
	tr := NewTracker("t", b)
	// Char allowance is worth 0.80, the ceiling caps it at 0.50.
	if got := tr.RemainingCost(); !approx(got, 0.5) {
		t.Errorf("RemainingCost: got %g, want 0.5", got)
	}

	b.MaxDailyCost = 0
	tr = NewTracker("t", b)
	if got := tr.RemainingCost(); !approx(got, 0.8) {
		t.Errorf("RemainingCost without ceiling: got %g, want 0.8", got)
	}
}

func TestTracker_ShouldSynthesize(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker("t", DefaultBudget())

	if !tr.ShouldSynthesize(strings.Repeat("a", 1200)) {
		t.Error("1200 chars with a fresh budget should synthesize")
	}
	if tr.ShouldSynthesize(strings.Repeat("a", 1201)) {
		t.Error("1201 chars must never synthesize")
	}

	tr.RecordEmission(ctx, 49_900)
	if tr.ShouldSynthesize(strings.Repeat("a", 200)) {
		t.Error("text costing more than the remaining budget should not synthesize")
	}
	if !tr.ShouldSynthesize(strings.Repeat("a", 50)) {
		t.Error("text fitting the remaining budget should synthesize")
	}
}

func TestTracker_ShouldSynthesizeRejectsLongTextRegardlessOfBudget(t *testing.T) {
	b := Budget{MaxDailyChars: 1 << 40, CostPerChar: 1e-12}
	tr := NewTracker("t", b)
	for _, n := range []int{1201, 1500, 5000} {
		if tr.ShouldSynthesize(strings.Repeat("x", n)) {
			t.Errorf("ShouldSynthesize(%d chars) = true, want false", n)
		}
	}
}

func TestTracker_AlertLevels(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker("t", Budget{MaxDailyChars: 1000, CostPerChar: 0.001})

	steps := []struct {
		add  int
		want Level
	}{
		{500, AlertNone},
		{200, AlertWarning},
		{200, AlertCritical},
		{50, AlertEmergency},
	}
	for _, s := range steps {
		tr.RecordEmission(ctx, s.add)
		if got := tr.AlertLevel(); got != s.want {
			t.Errorf("after %d chars: got %s, want %s", tr.Used(), got, s.want)
		}
	}

	tr.Reset(ctx)
	if tr.Used() != 0 || tr.AlertLevel() != AlertNone {
		t.Errorf("after Reset: used=%d level=%s", tr.Used(), tr.AlertLevel())
	}
}

func TestTracker_ConcurrentEmissions(t *testing.T) {
	tr := NewTracker("t", DefaultBudget())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordEmission(ctx, 7)
		}()
	}
	wg.Wait()
	if tr.Used() != 700 {
		t.Errorf("Used: got %d, want 700 (lost updates)", tr.Used())
	}
}

type memPersister struct {
	mu      sync.Mutex
	rows    map[string]int64
	loadErr error
	saveErr error
}

func newMemPersister() *memPersister { return &memPersister{rows: map[string]int64{}} }

func (m *memPersister) LoadUsage(_ context.Context, tenant, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return 0, m.loadErr
	}
	return m.rows[tenant+"/"+period], nil
}

func (m *memPersister) SaveUsage(_ context.Context, tenant, period string, chars int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rows[tenant+"/"+period] = chars
	return nil
}

func (m *memPersister) ResetUsage(_ context.Context, tenant, period string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[tenant+"/"+period] = 0
	return nil
}

func TestTracker_PersistsEveryEmission(t *testing.T) {
	p := newMemPersister()
	day := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	tr := NewTracker("alice", DefaultBudget(), WithPersister(p), WithClock(func() time.Time { return day }))

	tr.RecordEmission(context.Background(), 120)
	tr.RecordEmission(context.Background(), 30)

	if got := p.rows["alice/2026-03-01"]; got != 150 {
		t.Errorf("persisted total: got %d, want 150", got)
	}
}

func TestTracker_ResetClearsPersistedTotal(t *testing.T) {
	p := newMemPersister()
	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := WithClock(func() time.Time { return day })
	ctx := context.Background()

	tr := NewTracker("alice", DefaultBudget(), WithPersister(p), clock)
	tr.RecordEmission(ctx, 400)
	tr.Reset(ctx)

	if got := p.rows["alice/2026-03-01"]; got != 0 {
		t.Errorf("persisted total after Reset: got %d, want 0", got)
	}
	l := NewLedger(DefaultBudget(), true, p, clock)
	if got := l.For(ctx, "alice").Used(); got != 0 {
		t.Errorf("restored after same-day reset: got %d, want 0", got)
	}
}

func TestTracker_PersistFailureKeepsCounting(t *testing.T) {
	p := newMemPersister()
	p.saveErr = errors.New("disk full")
	tr := NewTracker("t", DefaultBudget(), WithPersister(p))

	if got := tr.RecordEmission(context.Background(), 10); got != 10 {
		t.Errorf("RecordEmission: got %d, want 10", got)
	}
}

func TestBudget_Validate(t *testing.T) {
	if err := DefaultBudget().Validate(); err != nil {
		t.Errorf("default budget invalid: %v", err)
	}
	bad := []Budget{
		{MaxDailyChars: 0, CostPerChar: 1},
		{MaxDailyChars: 1, CostPerChar: 0},
		{MaxDailyChars: 1, CostPerChar: 1, MaxDailyCost: -1},
	}
	for _, b := range bad {
		if err := b.Validate(); err == nil {
			t.Errorf("Validate(%+v): expected error", b)
		}
	}
}

func TestPeriod_UsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	ts := time.Date(2026, 5, 2, 5, 0, 0, 0, loc) // 2026-05-01 19:00 UTC
	if got := Period(ts); got != "2026-05-01" {
		t.Errorf("Period: got %q, want 2026-05-01", got)
	}
}
