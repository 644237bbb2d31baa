package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// ResumeRepo loads resumes from the primary store. The core never writes
// this table.
type ResumeRepo struct{ Pool PgxPool }

// NewResumeRepo constructs a ResumeRepo with the given pool.
func NewResumeRepo(p PgxPool) *ResumeRepo { return &ResumeRepo{Pool: p} }

// Get loads a resume by id.
func (r *ResumeRepo) Get(ctx domain.Context, id string) (domain.Resume, error) {
	tracer := otel.Tracer("repo.resumes")
	ctx, span := tracer.Start(ctx, "resumes.Get")
	defer span.End()
	q := `SELECT id, body, skills, years_experience, education, certifications, embedding, created_at FROM resumes WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var res domain.Resume
	if err := row.Scan(&res.ID, &res.Body, &res.Skills, &res.YearsExperience, &res.Education, &res.Certifications, &res.Embedding, &res.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Resume{}, fmt.Errorf("op=resume.get: %w", domain.ErrNotFound)
		}
		return domain.Resume{}, fmt.Errorf("op=resume.get: %w", err)
	}
	return res, nil
}
