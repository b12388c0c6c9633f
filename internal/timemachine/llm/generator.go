// Package llm defines the text-generation boundary of the time machine and an
// OpenAI-compatible implementation of it.
//
// Both the persona reply and the secondary length estimate go through the
// same single-prompt Generator interface; neither call streams or returns
// partial results.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrEmptyReply is returned when the model answers with no text.
	ErrEmptyReply = errors.New("llm: empty reply")
	// ErrRateLimit is returned when the provider keeps answering 429 after
	// every retry.
	ErrRateLimit = errors.New("llm: rate limited")
)

// Generator turns one prompt into one reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
