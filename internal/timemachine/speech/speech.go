// Package speech turns final replies into audio files.
package speech

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrDisabled is returned by Disabled and by callers that skip synthesis.
var ErrDisabled = errors.New("speech: synthesis disabled")

// Synthesizer writes audio for text and returns the path it wrote. The
// hint is a suggested path; implementations may change the extension.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outputPathHint string) (string, error)
}

// Disabled always fails with ErrDisabled.
type Disabled struct{}

// Synthesize returns ErrDisabled.
func (Disabled) Synthesize(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}

// OutputPath returns the path hint for a turn's audio inside dir.
func OutputPath(dir, turnID, format string) string {
	if format == "" {
		format = "mp3"
	}
	return filepath.Join(dir, turnID+"."+strings.TrimPrefix(format, "."))
}

var _ Synthesizer = Disabled{}
