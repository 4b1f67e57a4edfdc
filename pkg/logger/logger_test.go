package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "WARN", "json")
	log.Info("hidden")
	log.Warn("shown", "stage", "reconcile")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1:\n%s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["stage"] != "reconcile" {
		t.Fatalf("record = %v", rec)
	}
}

func TestFromContext_AddsCycleID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "text"))
	defer slog.SetDefault(prev)

	ctx := WithCycleID(context.Background(), "abc-123")
	if CycleID(ctx) != "abc-123" {
		t.Fatalf("CycleID = %q", CycleID(ctx))
	}
	FromContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), "cycle_id=abc-123") {
		t.Fatalf("cycle id missing: %s", buf.String())
	}

	buf.Reset()
	FromContext(context.Background()).Info("bare")
	if strings.Contains(buf.String(), "cycle_id") {
		t.Fatalf("unexpected cycle id: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"Warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
