package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// WorkerResultRepo appends per-dimension worker results. Rows are
// append-only, keyed by fork id for audit.
type WorkerResultRepo struct{ Pool PgxPool }

// NewWorkerResultRepo constructs a WorkerResultRepo with the given pool.
func NewWorkerResultRepo(p PgxPool) *WorkerResultRepo { return &WorkerResultRepo{Pool: p} }

// Append inserts a worker result and returns its id.
func (r *WorkerResultRepo) Append(ctx domain.Context, res domain.WorkerResult) (string, error) {
	tracer := otel.Tracer("repo.worker_results")
	ctx, span := tracer.Start(ctx, "worker_results.Append")
	defer span.End()
	id := res.ID
	if id == "" {
		id = uuid.New().String()
	}
	detail, err := json.Marshal(res.Detail)
	if err != nil {
		return "", fmt.Errorf("op=worker_result.append: %w", err)
	}
	q := `INSERT INTO worker_results (id, fork_id, kind, resume_id, job_id, score, processing_time_ms, detail, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = r.Pool.Exec(ctx, q, id, res.ForkID, res.Kind, res.ResumeID, res.JobID, res.Score, res.ProcessingTimeMS, detail, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=worker_result.append: %w", err)
	}
	return id, nil
}

// CompositeRepo persists composite scores, one row per (resume, job) pair.
type CompositeRepo struct{ Pool PgxPool }

// NewCompositeRepo constructs a CompositeRepo with the given pool.
func NewCompositeRepo(p PgxPool) *CompositeRepo { return &CompositeRepo{Pool: p} }

// Upsert inserts or replaces the composite for (resume_id, job_id).
func (r *CompositeRepo) Upsert(ctx domain.Context, c domain.CompositeScore) error {
	tracer := otel.Tracer("repo.composite_scores")
	ctx, span := tracer.Start(ctx, "composite_scores.Upsert")
	defer span.End()
	q := `INSERT INTO composite_scores (resume_id, job_id, skill, semantic, experience, education, certification, composite, agents_completed, total_processing_time_ms, profile_tag, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	ON CONFLICT (resume_id, job_id)
	DO UPDATE SET skill=EXCLUDED.skill, semantic=EXCLUDED.semantic, experience=EXCLUDED.experience, education=EXCLUDED.education, certification=EXCLUDED.certification, composite=EXCLUDED.composite, agents_completed=EXCLUDED.agents_completed, total_processing_time_ms=EXCLUDED.total_processing_time_ms, profile_tag=EXCLUDED.profile_tag, created_at=EXCLUDED.created_at`
	_, err := r.Pool.Exec(ctx, q, c.ResumeID, c.JobID, c.Skill, c.Semantic, c.Experience, c.Education, c.Certification, c.Composite, c.AgentsCompleted, c.TotalProcessingMS, c.ProfileTag, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=composite.upsert: %w", err)
	}
	return nil
}

// Get loads the composite for (resume_id, job_id).
func (r *CompositeRepo) Get(ctx domain.Context, resumeID, jobID string) (domain.CompositeScore, error) {
	tracer := otel.Tracer("repo.composite_scores")
	ctx, span := tracer.Start(ctx, "composite_scores.Get")
	defer span.End()
	q := `SELECT resume_id, job_id, skill, semantic, experience, education, certification, composite, agents_completed, total_processing_time_ms, profile_tag, created_at FROM composite_scores WHERE resume_id=$1 AND job_id=$2`
	row := r.Pool.QueryRow(ctx, q, resumeID, jobID)
	var c domain.CompositeScore
	if err := row.Scan(&c.ResumeID, &c.JobID, &c.Skill, &c.Semantic, &c.Experience, &c.Education, &c.Certification, &c.Composite, &c.AgentsCompleted, &c.TotalProcessingMS, &c.ProfileTag, &c.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.CompositeScore{}, fmt.Errorf("op=composite.get: %w", domain.ErrNotFound)
		}
		return domain.CompositeScore{}, fmt.Errorf("op=composite.get: %w", err)
	}
	return c, nil
}
