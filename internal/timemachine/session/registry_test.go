package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/timemachine/internal/timemachine/session"
	"github.com/bdobrica/timemachine/internal/timemachine/usage"
)

func TestRegistry_OneSessionPerConversation(t *testing.T) {
	f := newFixture("I was born in 1904.")
	ledger := usage.NewLedger(usage.DefaultBudget(), true, nil)
	r := session.NewRegistry(f.deps, ledger, 2)
	ctx := context.Background()

	a := r.Get(ctx, "alice", session.Key("!room:x", "@alice:x"))
	if again := r.Get(ctx, "alice", session.Key("!room:x", "@alice:x")); again != a {
		t.Error("same conversation returned a different session")
	}
	b := r.Get(ctx, "bob", session.Key("!room:x", "@bob:x"))
	if a == b || a.History() == b.History() {
		t.Error("conversations must not share history")
	}
	if a.Budget() == b.Budget() {
		t.Error("partitioned tenants must not share a tracker")
	}
	if a.History().Depth() != 2 {
		t.Errorf("depth: got %d, want 2", a.History().Depth())
	}

	for i := 0; i < 3; i++ {
		a.Respond(ctx, "When were you born?")
	}
	if a.History().Len() != 2 || b.History().Len() != 0 {
		t.Errorf("history lengths: a=%d b=%d", a.History().Len(), b.History().Len())
	}

	r.Forget(session.Key("!room:x", "@alice:x"))
	if r.Len() != 1 {
		t.Errorf("sessions after Forget: got %d, want 1", r.Len())
	}
}

func TestRegistry_SharedBudget(t *testing.T) {
	f := newFixture("I was born in 1904.")
	ledger := usage.NewLedger(usage.DefaultBudget(), false, nil)
	r := session.NewRegistry(f.deps, ledger, 5)
	ctx := context.Background()

	a := r.Get(ctx, "alice", "c1")
	b := r.Get(ctx, "bob", "c2")
	if a.Budget() != b.Budget() {
		t.Fatal("shared mode should charge every conversation to one tracker")
	}

	var wg sync.WaitGroup
	for _, s := range []*session.Session{a, b, a, b} {
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			s.Respond(ctx, "When were you born?")
		}(s)
	}
	wg.Wait()
	if got := a.Budget().Used(); got != 4*int64(len("I was born in 1904.")) {
		t.Errorf("shared usage: got %d, want %d", got, 4*len("I was born in 1904."))
	}
}

// gatedPersister blocks LoadUsage for one tenant until released.
type gatedPersister struct {
	tenant  string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPersister) LoadUsage(_ context.Context, tenant, _ string) (int64, error) {
	if tenant == g.tenant {
		close(g.entered)
		<-g.release
	}
	return 0, nil
}

func (g *gatedPersister) SaveUsage(context.Context, string, string, int64) error { return nil }

func (g *gatedPersister) ResetUsage(context.Context, string, string) error { return nil }

func TestRegistry_SlowRestoreDoesNotBlockOtherConversations(t *testing.T) {
	f := newFixture("I was born in 1904.")
	p := &gatedPersister{tenant: "slow", entered: make(chan struct{}), release: make(chan struct{})}
	r := session.NewRegistry(f.deps, usage.NewLedger(usage.DefaultBudget(), true, p), 5)
	ctx := context.Background()

	fast := r.Get(ctx, "fast", "c1")

	created := make(chan *session.Session, 1)
	go func() { created <- r.Get(ctx, "slow", "c2") }()
	<-p.entered

	got := make(chan *session.Session, 1)
	go func() { got <- r.Get(ctx, "fast", "c1") }()
	select {
	case s := <-got:
		if s != fast {
			t.Error("existing conversation returned a different session")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lookup blocked behind another tenant's restore")
	}

	close(p.release)
	slow := <-created
	if again := r.Get(ctx, "slow", "c2"); again != slow {
		t.Error("restored conversation returned a different session")
	}
	if r.Len() != 2 {
		t.Errorf("sessions: got %d, want 2", r.Len())
	}
}
