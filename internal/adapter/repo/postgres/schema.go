package postgres

import (
	"context"
	"fmt"
)

// schema creates the tables the core owns. The resumes and jobs tables
// belong to the ingestion pipeline; the core only reads them and issues no
// DDL against them. worker_results carries fork_id as a plain column, not a
// foreign key: result rows outlive their ledger entries, which the sweeper
// deletes on the retention schedule.
const schema = `
CREATE TABLE IF NOT EXISTS fork_ledger (
	fork_id        TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	resume_id      TEXT NOT NULL,
	job_id         TEXT NOT NULL,
	state          TEXT NOT NULL,
	strategy       TEXT NOT NULL DEFAULT '',
	data_url       TEXT NOT NULL DEFAULT '',
	error_message  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	started_at     TIMESTAMPTZ,
	completed_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_fork_ledger_state_created ON fork_ledger (state, created_at);

CREATE TABLE IF NOT EXISTS worker_results (
	id                  TEXT PRIMARY KEY,
	fork_id             TEXT NOT NULL,
	kind                TEXT NOT NULL,
	resume_id           TEXT NOT NULL,
	job_id              TEXT NOT NULL,
	score               DOUBLE PRECISION NOT NULL,
	processing_time_ms  BIGINT NOT NULL,
	detail              JSONB NOT NULL DEFAULT '{}',
	created_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_worker_results_pair ON worker_results (resume_id, job_id);

CREATE TABLE IF NOT EXISTS composite_scores (
	resume_id                 TEXT NOT NULL,
	job_id                    TEXT NOT NULL,
	skill                     DOUBLE PRECISION NOT NULL,
	semantic                  DOUBLE PRECISION NOT NULL,
	experience                DOUBLE PRECISION NOT NULL,
	education                 DOUBLE PRECISION NOT NULL,
	certification             DOUBLE PRECISION NOT NULL,
	composite                 DOUBLE PRECISION NOT NULL,
	agents_completed          INT NOT NULL,
	total_processing_time_ms  BIGINT NOT NULL,
	profile_tag               TEXT NOT NULL,
	created_at                TIMESTAMPTZ NOT NULL,
	UNIQUE (resume_id, job_id)
);
CREATE INDEX IF NOT EXISTS idx_composite_scores_composite ON composite_scores (composite DESC);
`

// EnsureSchema creates the result-store tables if they do not exist.
// Idempotent; called once at startup.
func EnsureSchema(ctx context.Context, pool PgxPool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("op=schema.ensure: %w", err)
	}
	return nil
}
