// Package retrieval fetches knowledge snippets for a query and assembles
// them into a bounded context block for the prompt.
package retrieval

import (
	"context"
	"strings"

	"github.com/bdobrica/timemachine/common/runes"
	"github.com/bdobrica/timemachine/internal/timemachine/observability"
)

// NoInformationSentinel stands in for the context block when nothing
// relevant was found. Downstream stages treat it as ordinary context.
const NoInformationSentinel = "I don't have specific information about that topic in my knowledge base."

// Assembly defaults.
const (
	DefaultMaxChars = 3000
	DefaultTopK     = 5
	// MinPartialChars is the shortest prefix of a snippet worth including.
	MinPartialChars = 100

	separator       = "\n\n"
	truncatedMarker = "..."
)

// Snippet is one search hit. Lower Score means closer.
type Snippet struct {
	ID       string
	Text     string
	Metadata map[string]string
	Score    float64
}

// KnowledgeStore returns the k snippets nearest to query, closest first.
type KnowledgeStore interface {
	Search(ctx context.Context, query string, k int) ([]Snippet, error)
}

// Bundle is the assembled context for one turn.
type Bundle struct {
	Text      string
	Snippets  []Snippet // snippets that contributed, in order
	Truncated bool      // the last snippet was cut
	Sentinel  bool      // Text is NoInformationSentinel
}

// Retriever searches a KnowledgeStore and assembles the result.
type Retriever struct {
	store    KnowledgeStore
	maxChars int
	topK     int
}

// NewRetriever returns a Retriever. Non-positive limits take their
// defaults. A nil store always yields the sentinel.
func NewRetriever(store KnowledgeStore, maxChars, topK int) *Retriever {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: store, maxChars: maxChars, topK: topK}
}

// Retrieve never fails: a store error degrades to the sentinel.
func (r *Retriever) Retrieve(ctx context.Context, query string) Bundle {
	if r.store == nil {
		return sentinelBundle()
	}
	snippets, err := r.store.Search(ctx, query, r.topK)
	if err != nil {
		observability.WithTrace(ctx).Warn("retrieval: search failed, using sentinel", "err", err)
		return sentinelBundle()
	}
	return Assemble(snippets, r.maxChars)
}

// Assemble joins snippets in order with blank lines, never exceeding
// maxChars characters in total. A snippet that does not fit whole is cut,
// with a trailing marker, when at least MinPartialChars of it fit; either
// way assembly stops there. No usable snippet yields the sentinel.
func Assemble(snippets []Snippet, maxChars int) Bundle {
	var (
		sb   strings.Builder
		used int
		b    Bundle
	)
	for _, s := range snippets {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		sep := 0
		if used > 0 {
			sep = runes.Len(separator)
		}
		n := runes.Len(text)
		if used+sep+n <= maxChars {
			if sep > 0 {
				sb.WriteString(separator)
			}
			sb.WriteString(text)
			used += sep + n
			b.Snippets = append(b.Snippets, s)
			continue
		}

		room := maxChars - used - sep - runes.Len(truncatedMarker)
		if room >= MinPartialChars {
			if sep > 0 {
				sb.WriteString(separator)
			}
			sb.WriteString(runes.Truncate(text, room))
			sb.WriteString(truncatedMarker)
			b.Snippets = append(b.Snippets, s)
			b.Truncated = true
		}
		break
	}

	if len(b.Snippets) == 0 {
		return sentinelBundle()
	}
	b.Text = sb.String()
	return b
}

func sentinelBundle() Bundle {
	return Bundle{Text: NoInformationSentinel, Sentinel: true}
}
