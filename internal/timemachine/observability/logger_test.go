package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/bdobrica/timemachine/common/trace"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tc := range cases {
		got, ok := ParseLevel(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseLevel(%q): got (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "json")
	logger.Debug("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestWithTrace_AttachesTraceID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "text"))
	defer slog.SetDefault(prev)

	ctx := trace.WithTraceID(context.Background(), "turn_abc")
	WithTrace(ctx).Info("turn complete")

	if !strings.Contains(buf.String(), "trace_id=turn_abc") {
		t.Errorf("log line missing trace_id: %q", buf.String())
	}
}

func TestSafeError_RedactsSecret(t *testing.T) {
	err := errors.New("401 for key sk-secret-123")
	got := SafeError(err, "sk-secret-123")
	if strings.Contains(got, "sk-secret-123") {
		t.Errorf("secret leaked: %q", got)
	}
}
