package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS processed (
	id           TEXT PRIMARY KEY,
	version      TEXT NOT NULL,
	processed_at TEXT NOT NULL
);
`

// SQLite keeps the ledger in a single-file database under the state
// directory.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Seen(ctx context.Context, id, version string) (bool, error) {
	if version == "" {
		return false, nil
	}
	var stored string
	err := s.db.QueryRowContext(ctx, "SELECT version FROM processed WHERE id = ?", id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ledger for %s: %w", id, err)
	}
	return stored == version, nil
}

func (s *SQLite) Mark(ctx context.Context, id, version string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed (id, version, processed_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, processed_at = excluded.processed_at`,
		id, version, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("marking %s in ledger: %w", id, err)
	}
	return nil
}

func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM processed"); err != nil {
		return fmt.Errorf("clearing ledger: %w", err)
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
