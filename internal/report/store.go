package report

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/postgres"
)

// Recorder persists finished reports.
type Recorder interface {
	Save(ctx context.Context, r *Report) error
}

type NopRecorder struct{}

func (NopRecorder) Save(context.Context, *Report) error { return nil }

const schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id          UUID PRIMARY KEY,
	stage       TEXT NOT NULL,
	status      TEXT NOT NULL,
	manifest    TEXT NOT NULL DEFAULT '',
	listed      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_run_entries (
	run_id        UUID NOT NULL REFERENCES sync_runs(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	item_id       TEXT NOT NULL,
	name          TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	sink_key      TEXT NOT NULL DEFAULT '',
	local_written BOOLEAN NOT NULL DEFAULT FALSE,
	error         TEXT NOT NULL DEFAULT '',
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, position)
);
`

// Store writes reports to PostgreSQL.
type Store struct {
	client *postgres.Client
}

func NewStore(client *postgres.Client) *Store {
	return &Store{client: client}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating report schema: %w", err)
	}
	return nil
}

// Save inserts the report and its entries in one transaction.
func (s *Store) Save(ctx context.Context, r *Report) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_runs (id, stage, status, manifest, listed, skipped, error, started_at, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.ID, r.Stage, string(r.Status), r.Manifest, r.Listed, r.Skipped, r.Error, r.StartedAt, r.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting run %s: %w", r.ID, err)
		}
		if len(r.Entries) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sync_run_entries (run_id, position, item_id, name, outcome, sink_key, local_written, error, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
		if err != nil {
			return fmt.Errorf("preparing entry insert: %w", err)
		}
		defer stmt.Close()
		for i, e := range r.Entries {
			if _, err := stmt.ExecContext(ctx,
				r.ID, i, e.ID, e.Name, string(e.Outcome), e.Key, e.LocalWritten, e.Error, e.Duration.Milliseconds(),
			); err != nil {
				return fmt.Errorf("inserting entry %s of run %s: %w", e.ID, r.ID, err)
			}
		}
		return nil
	})
}
