package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/redis"
)

func exerciseLedger(t *testing.T, l Ledger) {
	t.Helper()
	ctx := context.Background()

	seen, err := l.Seen(ctx, "1", "2024-01-01T00:00:00Z")
	if err != nil || seen {
		t.Fatalf("fresh ledger: seen=%v err=%v", seen, err)
	}
	if err := l.Mark(ctx, "1", "2024-01-01T00:00:00Z"); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if seen, _ := l.Seen(ctx, "1", "2024-01-01T00:00:00Z"); !seen {
		t.Fatal("marked version should be seen")
	}
	if seen, _ := l.Seen(ctx, "1", "2024-02-01T00:00:00Z"); seen {
		t.Fatal("a new version must not be seen")
	}
	if err := l.Mark(ctx, "1", "2024-02-01T00:00:00Z"); err != nil {
		t.Fatalf("re-Mark: %v", err)
	}
	if seen, _ := l.Seen(ctx, "1", "2024-02-01T00:00:00Z"); !seen {
		t.Fatal("updated version should be seen")
	}
	if err := l.Mark(ctx, "2", ""); err != nil {
		t.Fatalf("Mark empty version: %v", err)
	}
	if seen, _ := l.Seen(ctx, "2", ""); seen {
		t.Fatal("empty version is never seen")
	}
	if err := l.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if seen, _ := l.Seen(ctx, "1", "2024-02-01T00:00:00Z"); seen {
		t.Fatal("reset ledger should be empty")
	}
}

func TestSQLiteLedger(t *testing.T) {
	l, err := OpenSQLite(filepath.Join(t.TempDir(), "state", "ledger.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer l.Close()
	exerciseLedger(t, l)
}

func TestSQLiteLedger_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := l.Mark(ctx, "42", "v1"); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	l.Close()

	l, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	if seen, err := l.Seen(ctx, "42", "v1"); err != nil || !seen {
		t.Fatalf("after reopen: seen=%v err=%v", seen, err)
	}
}

func TestRedisLedger(t *testing.T) {
	client, err := redis.NewClient(config.RedisConfig{Addr: "localhost:6379", PoolSize: 2})
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	l := NewRedis(client, "drivesync:ledger-test:", 0)
	defer l.Close()
	exerciseLedger(t, l)
}

func TestOpen_Backends(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()

	cfg.Ledger.Backend = "none"
	l, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open none: %v", err)
	}
	if _, ok := l.(Nop); !ok {
		t.Fatalf("got %T, want Nop", l)
	}

	cfg.Ledger.Backend = "sqlite"
	l, err = Open(cfg)
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	l.Close()

	cfg.Ledger.Backend = "etcd"
	if _, err := Open(cfg); !errors.Is(err, apperrors.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
