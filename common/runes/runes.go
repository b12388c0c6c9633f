// Package runes measures and cuts text in characters rather than bytes.
//
// Every length in the response-shaping pipeline (guidance windows, context
// caps, budget counters) is expressed in characters, so all components go
// through these helpers instead of len().
package runes

import (
	"strings"
	"unicode/utf8"
)

// Len returns the number of characters in s.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate returns the longest prefix of s that holds at most n characters.
// It never splits a multi-byte character. n ≤ 0 yields "".
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// TruncateWords returns a prefix of s with at most n characters that ends on
// a word boundary. The last, possibly partial, word of the cut is dropped.
// When no whole word fits, it returns "".
func TruncateWords(s string, n int) string {
	if Len(s) <= n {
		return strings.TrimSpace(s)
	}
	cut := Truncate(s, n)
	// A cut that lands exactly on whitespace keeps every word intact.
	next, _ := utf8.DecodeRuneInString(s[len(cut):])
	if next == ' ' || next == '\n' || next == '\t' {
		return strings.TrimSpace(cut)
	}
	words := strings.Fields(cut)
	if len(words) <= 1 {
		return ""
	}
	return strings.Join(words[:len(words)-1], " ")
}
