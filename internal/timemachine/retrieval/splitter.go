package retrieval

import (
	"strings"

	"github.com/bdobrica/timemachine/common/runes"
)

// Splitter defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators split on paragraphs, then lines, then sentences, then
// words.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts documents into overlapping chunks of at most Size
// characters, preferring the coarsest separator that keeps pieces small.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewSplitter returns a Splitter with the default separators. Invalid sizes
// fall back to the defaults; the overlap is kept below the size.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = min(DefaultChunkOverlap, size/5)
	}
	return &Splitter{Size: size, Overlap: overlap, Separators: DefaultSeparators}
}

// Split returns the chunks of text in document order.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.split(text, s.Separators)
}

func (s *Splitter) split(text string, seps []string) []string {
	sep, rest := "", []string(nil)
	for i, c := range seps {
		if strings.Contains(text, c) {
			sep, rest = c, seps[i+1:]
			break
		}
	}
	if sep == "" {
		return s.window(text)
	}

	var out, small []string
	for _, p := range strings.Split(text, sep) {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if runes.Len(p) <= s.Size {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			out = append(out, s.merge(small, sep)...)
			small = nil
		}
		out = append(out, s.split(p, rest)...)
	}
	if len(small) > 0 {
		out = append(out, s.merge(small, sep)...)
	}
	return out
}

// merge packs pieces into chunks of at most Size characters, carrying up to
// Overlap characters of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := runes.Len(sep)
	var (
		chunks []string
		cur    []string
		total  int
	)
	flush := func() {
		if c := strings.TrimSpace(strings.Join(cur, sep)); c != "" {
			chunks = append(chunks, c)
		}
	}
	for _, p := range pieces {
		n := runes.Len(p)
		if len(cur) > 0 && total+sepLen+n > s.Size {
			flush()
			for len(cur) > 0 && (total > s.Overlap || total+sepLen+n > s.Size) {
				total -= runes.Len(cur[0])
				if len(cur) > 1 {
					total -= sepLen
				}
				cur = cur[1:]
			}
		}
		if len(cur) > 0 {
			total += sepLen
		}
		cur = append(cur, p)
		total += n
	}
	if len(cur) > 0 {
		flush()
	}
	return chunks
}

// window hard-splits text with no usable separator into overlapping runs.
func (s *Splitter) window(text string) []string {
	r := []rune(text)
	step := s.Size - s.Overlap
	var out []string
	for start := 0; start < len(r); start += step {
		end := min(start+s.Size, len(r))
		out = append(out, string(r[start:end]))
		if end == len(r) {
			break
		}
	}
	return out
}
