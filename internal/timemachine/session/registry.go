package session

import (
	"context"
	"sync"

	"github.com/bdobrica/timemachine/internal/timemachine/memory"
	"github.com/bdobrica/timemachine/internal/timemachine/usage"
)

// Registry keeps one Session per conversation. Sessions share Deps; each
// owns its history and is charged to its tenant's tracker in the Ledger.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	deps     Deps
	ledger   *usage.Ledger
	depth    int
	sessions map[string]*Session
}

// NewRegistry returns a Registry whose sessions keep depth exchanges.
func NewRegistry(deps Deps, ledger *usage.Ledger, depth int) *Registry {
	return &Registry{
		deps:     deps,
		ledger:   ledger,
		depth:    depth,
		sessions: make(map[string]*Session),
	}
}

// Key identifies the conversation of sender in room.
func Key(room, sender string) string { return room + "|" + sender }

// Get returns the session for conversation, creating it on first use and
// charging it to tenant. The tracker is resolved outside the registry lock,
// since restoring it may read the store.
func (r *Registry) Get(ctx context.Context, tenant, conversation string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[conversation]
	r.mu.Unlock()
	if ok {
		return s
	}

	var tracker *usage.Tracker
	if r.ledger != nil {
		tracker = r.ledger.For(ctx, tenant)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[conversation]; ok {
		return s
	}
	s = New(conversation, r.deps, memory.NewHistory(r.depth), tracker)
	r.sessions[conversation] = s
	return s
}

// Forget drops a conversation's session and its history.
func (r *Registry) Forget(conversation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conversation)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
