package trace

import (
	"context"
	"strings"
	"testing"
)

func TestNewID_Unique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Fatalf("NewID returned the same id twice: %s", a)
	}
	if !strings.HasPrefix(a, "turn_") {
		t.Errorf("NewID = %q, want turn_ prefix", a)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "turn_abc")
	if got := FromContext(ctx); got != "turn_abc" {
		t.Errorf("FromContext = %q, want turn_abc", got)
	}
	if got := FromContext(context.Background()); got != "" {
		t.Errorf("FromContext on bare context = %q, want empty", got)
	}
}
