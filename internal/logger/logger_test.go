package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestInit(t *testing.T) {
	l := Init("simserver", slog.LevelInfo)
	if l == nil {
		t.Fatal("expected a logger")
	}
}

func TestSessionIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := SessionID(ctx); got != "" {
		t.Errorf("empty context: got %q", got)
	}

	ctx = WithSessionID(ctx, "abc-123")
	if got := SessionID(ctx); got != "abc-123" {
		t.Errorf("got %q, want abc-123", got)
	}

	attrs := WithSession(ctx)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attr, got %d", len(attrs))
	}
}

func TestWithSession_Empty(t *testing.T) {
	if attrs := WithSession(context.Background()); attrs != nil {
		t.Errorf("expected nil attrs, got %v", attrs)
	}
}
