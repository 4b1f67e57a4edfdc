package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRun_WorstStatusWins(t *testing.T) {
	c := NewChecker()
	c.Register("ok", func(context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} })
	c.Register("sink", Degraded(func() string { return "circuit open" }))

	if got := c.Run(context.Background()).Status; got != StatusDegraded {
		t.Fatalf("status = %s, want degraded", got)
	}

	c.Register("redis", Pinger(func(context.Context) error { return errors.New("refused") }))
	rep := c.Run(context.Background())
	if rep.Status != StatusDown {
		t.Fatalf("status = %s, want down", rep.Status)
	}
	if rep.Components["redis"].Message != "refused" {
		t.Fatalf("redis component = %+v", rep.Components["redis"])
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("sink", Degraded(func() string { return "circuit open" }))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded should be ready, got %d", rec.Code)
	}

	c.Register("db", Pinger(func(context.Context) error { return errors.New("down") }))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("down should be unready, got %d", rec.Code)
	}
}

func TestDirWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "manifests")
	if got := DirWritable(dir)(context.Background()); got.Status != StatusUp {
		t.Fatalf("status = %+v", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("probe file left behind: %v", entries)
	}

	blocker := filepath.Join(t.TempDir(), "file")
	os.WriteFile(blocker, nil, 0o644)
	if got := DirWritable(filepath.Join(blocker, "sub"))(context.Background()); got.Status != StatusDown {
		t.Fatalf("expected down, got %+v", got)
	}
}

func TestStale(t *testing.T) {
	var last time.Time
	check := Stale(func() time.Time { return last }, time.Minute)
	if got := check(context.Background()).Status; got != StatusUp {
		t.Fatalf("before first cycle: %s", got)
	}
	last = time.Now().Add(-2 * time.Minute)
	if got := check(context.Background()).Status; got != StatusDegraded {
		t.Fatalf("stale: %s", got)
	}
	last = time.Now()
	if got := check(context.Background()).Status; got != StatusUp {
		t.Fatalf("fresh: %s", got)
	}
}
