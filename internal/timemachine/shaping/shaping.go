// Package shaping shortens model replies that overshoot their length budget.
//
// Shorten applies three stages in order and stops as soon as the text fits:
// filler removal, compound-sentence simplification, then truncation at a
// sentence (or, failing that, word) boundary with an ellipsis. All lengths
// are in characters.
package shaping

import (
	"regexp"
	"strings"

	"github.com/bdobrica/timemachine/common/runes"
)

// Ellipsis marks text that was cut.
const Ellipsis = "..."

// compoundMinChars is the sentence length above which "A and B" is cut to "A".
const compoundMinChars = 100

// Shorten returns text unchanged when it already fits maxChars; otherwise it
// returns a non-empty rewrite of at most maxChars characters. maxChars ≤ 0
// disables shortening.
func Shorten(text string, maxChars int) string {
	if maxChars <= 0 || runes.Len(text) <= maxChars {
		return text
	}

	stages := []func(string) string{StripRedundancy, SimplifySentences}
	s := text
	for _, stage := range stages {
		next := stage(s)
		if strings.TrimSpace(next) == "" {
			continue
		}
		s = next
		if runes.Len(s) <= maxChars {
			return s
		}
	}
	return TruncateAtBoundary(s, maxChars)
}

var (
	fillerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(as I have mentioned|as I mentioned|as I said|you see|you know)\b,?`),
		regexp.MustCompile(`(?i)\bwell,\s`),
		regexp.MustCompile(`(?i)\b(it is important to note that|it should be noted that|needless to say,?)\s*`),
		regexp.MustCompile(`(?i)\b(I would say that|I believe that|I think that)\s*`),
		regexp.MustCompile(`(?i)\b(in other words|to be honest|if you will),?\s*`),
	}
	spaceRun        = regexp.MustCompile(`\s+`)
	spaceBeforePunc = regexp.MustCompile(`\s+([,.;:!?])`)
	doubleComma     = regexp.MustCompile(`,\s*,`)
	danglingComma   = regexp.MustCompile(`,+([.!?;:])`)
)

// StripRedundancy removes hedges and meta-commentary, then collapses
// whitespace. The result is never longer than the input.
func StripRedundancy(text string) string {
	for _, re := range fillerPatterns {
		text = re.ReplaceAllString(text, "")
	}
	text = spaceRun.ReplaceAllString(text, " ")
	text = spaceBeforePunc.ReplaceAllString(text, "$1")
	text = doubleComma.ReplaceAllString(text, ",")
	text = danglingComma.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// SimplifySentences keeps only the clause before " and " in every sentence
// longer than 100 characters. The result is never longer than the input.
func SimplifySentences(text string) string {
	sentences := Sentences(text)
	for i, s := range sentences {
		if runes.Len(s) <= compoundMinChars {
			continue
		}
		idx := strings.Index(s, " and ")
		if idx <= 0 {
			continue
		}
		head := strings.TrimRight(s[:idx], " ,;:")
		if head == "" {
			continue
		}
		sentences[i] = head + terminator(s)
	}
	return strings.Join(sentences, " ")
}

// TruncateAtBoundary joins whole sentences while they fit in maxChars−3
// characters and appends an ellipsis. If not even the first sentence fits,
// it cuts at the last word boundary instead, and as a last resort inside a
// single oversized word. The result is at most maxChars characters.
func TruncateAtBoundary(text string, maxChars int) string {
	if runes.Len(text) <= maxChars {
		return text
	}
	budget := maxChars - runes.Len(Ellipsis)
	if budget <= 0 {
		return runes.Truncate(text, maxChars)
	}

	var sb strings.Builder
	used := 0
	for _, s := range Sentences(text) {
		n := runes.Len(s)
		if used > 0 {
			n++ // joining space
		}
		if used+n > budget {
			break
		}
		if used > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
		used += n
	}
	if used > 0 {
		return strings.TrimRight(sb.String(), ". ") + Ellipsis
	}

	cut := runes.TruncateWords(text, budget)
	if cut == "" {
		cut = runes.Truncate(strings.TrimSpace(text), budget)
	}
	return strings.TrimRight(cut, " ,;:.") + Ellipsis
}

var sentenceEnd = regexp.MustCompile(`[.!?]+["')\]]*(\s+|$)`)

// Sentences splits text after terminal punctuation followed by whitespace.
// Trailing text without punctuation forms a final sentence. Each sentence is
// trimmed; empty ones are dropped.
func Sentences(text string) []string {
	var out []string
	prev := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[prev:loc[1]]); s != "" {
			out = append(out, s)
		}
		prev = loc[1]
	}
	if s := strings.TrimSpace(text[prev:]); s != "" {
		out = append(out, s)
	}
	return out
}

// terminator returns the closing punctuation of s, or "." when it has none.
func terminator(s string) string {
	end := len(s)
	start := end
	for start > 0 && strings.ContainsRune(".!?", rune(s[start-1])) {
		start--
	}
	if start == end {
		return "."
	}
	return s[start:end]
}
