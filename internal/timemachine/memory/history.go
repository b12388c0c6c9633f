// Package memory keeps the short conversation history a persona session
// feeds back into its prompts.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/timemachine/common/runes"
	"github.com/bdobrica/timemachine/internal/timemachine/classify"
)

// DefaultDepth is the number of exchanges a History retains when no depth is
// configured.
const DefaultDepth = 5

// Exchange is one completed user/assistant turn.
type Exchange struct {
	ID            string                // unique exchange ID (UUID)
	UserText      string                // what the user asked
	AssistantText string                // the final, post-processed reply
	Timestamp     time.Time             // when the reply was produced
	LengthChars   int                   // characters in AssistantText
	ResponseType  classify.ResponseType // label assigned to the query
	EstimatedCost float64               // projected synthesis cost of the reply
	Source        string                // which length strategy produced the window
}

// NewExchange fills in the ID, timestamp and length of an exchange.
func NewExchange(user, assistant string, typ classify.ResponseType, cost float64, source string) Exchange {
	return Exchange{
		ID:            uuid.New().String(),
		UserText:      user,
		AssistantText: assistant,
		Timestamp:     time.Now().UTC(),
		LengthChars:   runes.Len(assistant),
		ResponseType:  typ,
		EstimatedCost: cost,
		Source:        source,
	}
}

// History is a fixed-capacity, chronologically ordered list of exchanges.
// Once full, recording a new exchange evicts the oldest one.
//
// History is safe for concurrent use, although a session normally owns its
// history exclusively.
type History struct {
	mu        sync.RWMutex
	depth     int
	exchanges []Exchange
}

// NewHistory returns an empty History retaining at most depth exchanges.
// depth ≤ 0 falls back to DefaultDepth.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &History{depth: depth, exchanges: make([]Exchange, 0, depth)}
}

// Depth reports the retention capacity.
func (h *History) Depth() int { return h.depth }

// Record appends ex, evicting the oldest exchanges beyond the depth.
func (h *History) Record(ex Exchange) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.exchanges = append(h.exchanges, ex)
	if over := len(h.exchanges) - h.depth; over > 0 {
		// Copy down so the backing array does not grow without bound.
		n := copy(h.exchanges, h.exchanges[over:])
		h.exchanges = h.exchanges[:n]
	}
}

// Len returns the number of exchanges currently held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.exchanges)
}

// All returns a copy of every retained exchange, oldest first.
func (h *History) All() []Exchange {
	return h.Recent(h.depth)
}

// Recent returns a copy of the last n exchanges, oldest first.
func (h *History) Recent(n int) []Exchange {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	start := len(h.exchanges) - n
	if start < 0 {
		start = 0
	}
	out := make([]Exchange, len(h.exchanges)-start)
	copy(out, h.exchanges[start:])
	return out
}

// Clear drops every exchange.
func (h *History) Clear() {
	h.mu.Lock()
	h.exchanges = h.exchanges[:0]
	h.mu.Unlock()
}
