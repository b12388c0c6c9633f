package retrieval_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bdobrica/timemachine/common/runes"
	"github.com/bdobrica/timemachine/internal/timemachine/retrieval"
)

type fakeKnowledge struct {
	snippets []retrieval.Snippet
	err      error
	gotK     int
}

func (f *fakeKnowledge) Search(_ context.Context, _ string, k int) ([]retrieval.Snippet, error) {
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.snippets) {
		return f.snippets[:k], nil
	}
	return f.snippets, nil
}

func snippet(id string, n int, fill string) retrieval.Snippet {
	return retrieval.Snippet{ID: id, Text: strings.Repeat(fill, n)}
}

func TestAssemble_FitsWhole(t *testing.T) {
	b := retrieval.Assemble([]retrieval.Snippet{
		{ID: "a", Text: "Los Alamos was chosen in 1942."},
		{ID: "b", Text: "  The Trinity test took place in July 1945.  "},
	}, 3000)

	want := "Los Alamos was chosen in 1942.\n\nThe Trinity test took place in July 1945."
	if b.Text != want {
		t.Errorf("text: got %q, want %q", b.Text, want)
	}
	if b.Truncated || b.Sentinel {
		t.Errorf("flags: truncated=%v sentinel=%v", b.Truncated, b.Sentinel)
	}
	if len(b.Snippets) != 2 {
		t.Errorf("snippets: got %d, want 2", len(b.Snippets))
	}
}

func TestAssemble_PartialLastSnippetHitsCapExactly(t *testing.T) {
	b := retrieval.Assemble([]retrieval.Snippet{
		snippet("a", 1400, "a"),
		snippet("b", 1400, "b"),
		snippet("c", 1400, "c"),
	}, 3000)

	if got := runes.Len(b.Text); got != 3000 {
		t.Errorf("length: got %d, want 3000", got)
	}
	if !b.Truncated {
		t.Error("expected Truncated")
	}
	if !strings.HasSuffix(b.Text, "c...") {
		t.Errorf("expected the third snippet cut with a marker, got suffix %q", b.Text[len(b.Text)-10:])
	}
	if len(b.Snippets) != 3 {
		t.Errorf("snippets: got %d, want 3", len(b.Snippets))
	}
}

func TestAssemble_TooLittleRoomSkipsPartial(t *testing.T) {
	b := retrieval.Assemble([]retrieval.Snippet{
		snippet("a", 2900, "a"),
		snippet("b", 500, "b"),
	}, 3000)

	if strings.Contains(b.Text, "b") {
		t.Error("second snippet should be skipped when fewer than 100 characters fit")
	}
	if b.Truncated {
		t.Error("nothing was cut")
	}
	if runes.Len(b.Text) != 2900 {
		t.Errorf("length: got %d, want 2900", runes.Len(b.Text))
	}
}

func TestAssemble_StopsAfterFirstOverflow(t *testing.T) {
	b := retrieval.Assemble([]retrieval.Snippet{
		snippet("a", 100, "a"),
		snippet("big", 5000, "b"),
		snippet("small", 10, "c"),
	}, 1000)
	if strings.Contains(b.Text, "c") {
		t.Error("assembly must stop at the first snippet that does not fit whole")
	}
}

func TestAssemble_MultiByteCountsCharacters(t *testing.T) {
	b := retrieval.Assemble([]retrieval.Snippet{
		snippet("a", 150, "é"),
		snippet("b", 150, "ü"),
	}, 200)
	if got := runes.Len(b.Text); got > 200 {
		t.Errorf("length: got %d characters, want ≤ 200", got)
	}
}

func TestAssemble_Sentinel(t *testing.T) {
	tests := []struct {
		name     string
		snippets []retrieval.Snippet
		max      int
	}{
		{"no snippets", nil, 3000},
		{"blank snippets", []retrieval.Snippet{{Text: "   "}, {Text: ""}}, 3000},
		{"first too big for any partial", []retrieval.Snippet{snippet("a", 500, "a")}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := retrieval.Assemble(tt.snippets, tt.max)
			if !b.Sentinel || b.Text != retrieval.NoInformationSentinel {
				t.Errorf("got %+v, want sentinel", b)
			}
		})
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	in := []retrieval.Snippet{snippet("a", 700, "a"), snippet("b", 900, "b"), snippet("c", 2000, "c")}
	first := retrieval.Assemble(in, 2000)
	for i := 0; i < 10; i++ {
		if got := retrieval.Assemble(in, 2000); got.Text != first.Text {
			t.Fatal("same input produced different output")
		}
	}
}

func TestRetriever_StoreErrorYieldsSentinel(t *testing.T) {
	r := retrieval.NewRetriever(&fakeKnowledge{err: errors.New("index offline")}, 0, 0)
	b := r.Retrieve(context.Background(), "anything")
	if !b.Sentinel {
		t.Errorf("got %+v, want sentinel", b)
	}
}

func TestRetriever_NilStoreYieldsSentinel(t *testing.T) {
	b := retrieval.NewRetriever(nil, 0, 0).Retrieve(context.Background(), "anything")
	if !b.Sentinel {
		t.Errorf("got %+v, want sentinel", b)
	}
}

func TestRetriever_Defaults(t *testing.T) {
	fk := &fakeKnowledge{snippets: []retrieval.Snippet{{ID: "x", Text: "Oak Ridge enriched uranium."}}}
	b := retrieval.NewRetriever(fk, -1, 0).Retrieve(context.Background(), "uranium")
	if fk.gotK != retrieval.DefaultTopK {
		t.Errorf("top k: got %d, want %d", fk.gotK, retrieval.DefaultTopK)
	}
	if b.Text != "Oak Ridge enriched uranium." {
		t.Errorf("text: got %q", b.Text)
	}
}
