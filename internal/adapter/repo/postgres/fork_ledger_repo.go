package postgres

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// ForkLedgerRepo persists fork lifecycle records. State transitions are
// guarded in SQL so concurrent writers can never move a fork backwards.
type ForkLedgerRepo struct{ Pool PgxPool }

// NewForkLedgerRepo constructs a ForkLedgerRepo with the given pool.
func NewForkLedgerRepo(p PgxPool) *ForkLedgerRepo { return &ForkLedgerRepo{Pool: p} }

// Create inserts a new ledger entry in state pending.
func (r *ForkLedgerRepo) Create(ctx domain.Context, f domain.Fork) error {
	tracer := otel.Tracer("repo.fork_ledger")
	ctx, span := tracer.Start(ctx, "fork_ledger.Create")
	defer span.End()
	q := `INSERT INTO fork_ledger (fork_id, kind, resume_id, job_id, state, strategy, data_url, error_message, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.Pool.Exec(ctx, q, f.ID, f.Kind, f.ResumeID, f.JobID, domain.ForkPending, "", "", "", time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=fork_ledger.create: %w", err)
	}
	return nil
}

// MarkActive transitions pending -> active and records the provisioning
// strategy and data_url.
func (r *ForkLedgerRepo) MarkActive(ctx domain.Context, forkID, strategy, dataURL string, at time.Time) error {
	tracer := otel.Tracer("repo.fork_ledger")
	ctx, span := tracer.Start(ctx, "fork_ledger.MarkActive")
	defer span.End()
	q := `UPDATE fork_ledger SET state=$2, strategy=$3, data_url=$4, started_at=$5 WHERE fork_id=$1 AND state=$6`
	tag, err := r.Pool.Exec(ctx, q, forkID, domain.ForkActive, strategy, dataURL, at.UTC(), domain.ForkPending)
	if err != nil {
		return fmt.Errorf("op=fork_ledger.mark_active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=fork_ledger.mark_active: %w: fork %s not pending", domain.ErrConflict, forkID)
	}
	return nil
}

// MarkTerminal transitions a non-terminal fork to completed or failed.
// Calling it on an already-terminal fork is a no-op, which makes Release
// idempotent.
func (r *ForkLedgerRepo) MarkTerminal(ctx domain.Context, forkID string, state domain.ForkState, errMsg string, at time.Time) error {
	tracer := otel.Tracer("repo.fork_ledger")
	ctx, span := tracer.Start(ctx, "fork_ledger.MarkTerminal")
	defer span.End()
	if !state.Terminal() {
		return fmt.Errorf("op=fork_ledger.mark_terminal: %w: %s is not terminal", domain.ErrInvalidArgument, state)
	}
	q := `UPDATE fork_ledger SET state=$2, error_message=$3, completed_at=$4 WHERE fork_id=$1 AND state IN ($5,$6)`
	_, err := r.Pool.Exec(ctx, q, forkID, state, errMsg, at.UTC(), domain.ForkPending, domain.ForkActive)
	if err != nil {
		return fmt.Errorf("op=fork_ledger.mark_terminal: %w", err)
	}
	return nil
}

// Get loads a ledger entry by fork id.
func (r *ForkLedgerRepo) Get(ctx domain.Context, forkID string) (domain.Fork, error) {
	tracer := otel.Tracer("repo.fork_ledger")
	ctx, span := tracer.Start(ctx, "fork_ledger.Get")
	defer span.End()
	q := `SELECT fork_id, kind, resume_id, job_id, state, strategy, data_url, COALESCE(error_message,''), created_at, started_at, completed_at FROM fork_ledger WHERE fork_id=$1`
	row := r.Pool.QueryRow(ctx, q, forkID)
	var f domain.Fork
	if err := row.Scan(&f.ID, &f.Kind, &f.ResumeID, &f.JobID, &f.State, &f.Strategy, &f.DataURL, &f.ErrorMessage, &f.CreatedAt, &f.StartedAt, &f.CompletedAt); err != nil {
		return domain.Fork{}, fmt.Errorf("op=fork_ledger.get: %w", err)
	}
	return f, nil
}

// DeleteTerminalBefore removes terminal ledger entries created before cutoff.
// Used by the sweeper; WorkerResult rows are retained independently.
func (r *ForkLedgerRepo) DeleteTerminalBefore(ctx domain.Context, cutoff time.Time) (int64, error) {
	tracer := otel.Tracer("repo.fork_ledger")
	ctx, span := tracer.Start(ctx, "fork_ledger.DeleteTerminalBefore")
	defer span.End()
	q := `DELETE FROM fork_ledger WHERE state IN ($1,$2) AND created_at < $3`
	tag, err := r.Pool.Exec(ctx, q, domain.ForkCompleted, domain.ForkFailed, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("op=fork_ledger.sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}
