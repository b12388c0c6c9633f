// Package observability configures structured logging for the time machine.
//
// Every log line emitted during a turn carries the turn's trace ID, and
// provider errors are passed through redaction before they reach a handler.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bdobrica/timemachine/common/redact"
	"github.com/bdobrica/timemachine/common/trace"
)

// ParseLevel maps a level name to a slog.Level. Unknown names report false
// and yield slog.LevelInfo.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// Setup configures the global slog logger according to the provided level and
// format strings (e.g. level="info", format="json"). Output goes to stderr so
// that the CLI can keep stdout for replies.
func Setup(level, format string) {
	slog.SetDefault(New(os.Stderr, level, format))
}

// New builds a logger writing to w without touching the global default.
func New(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithTrace returns a child logger that always includes the trace_id from ctx.
func WithTrace(ctx context.Context) *slog.Logger {
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return slog.Default()
	}
	return slog.With("trace_id", traceID)
}

// SafeError renders err for logging with every secret value replaced.
func SafeError(err error, secrets ...string) string {
	return redact.Error(err, secrets...)
}
