package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// SessionOpener opens one dedicated pgx connection per data_url. Workers
// never share a session; each fork's data_url gets its own connection.
type SessionOpener struct{}

// NewSessionOpener constructs a SessionOpener.
func NewSessionOpener() *SessionOpener { return &SessionOpener{} }

// Open dials the data_url and returns a session-scoped data context.
func (o *SessionOpener) Open(ctx domain.Context, dataURL string) (domain.DataContext, error) {
	tracer := otel.Tracer("repo.datacontext")
	ctx, span := tracer.Start(ctx, "datacontext.Open")
	defer span.End()
	conn, err := pgx.Connect(ctx, dataURL)
	if err != nil {
		return nil, fmt.Errorf("op=datacontext.open: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Session is one worker's connection against a fork's data_url. It reads
// resumes and jobs only; result writes go through the coordinator.
type Session struct{ conn *pgx.Conn }

// Ping verifies the session with a trivial round-trip.
func (s *Session) Ping(ctx domain.Context) error {
	if err := s.conn.Ping(ctx); err != nil {
		return fmt.Errorf("op=datacontext.ping: %w", err)
	}
	return nil
}

// GetResume loads a resume through this session.
func (s *Session) GetResume(ctx domain.Context, id string) (domain.Resume, error) {
	q := `SELECT id, body, skills, years_experience, education, certifications, embedding, created_at FROM resumes WHERE id=$1`
	row := s.conn.QueryRow(ctx, q, id)
	var r domain.Resume
	if err := row.Scan(&r.ID, &r.Body, &r.Skills, &r.YearsExperience, &r.Education, &r.Certifications, &r.Embedding, &r.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Resume{}, fmt.Errorf("op=datacontext.get_resume: %w", domain.ErrNotFound)
		}
		return domain.Resume{}, fmt.Errorf("op=datacontext.get_resume: %w", err)
	}
	return r, nil
}

// GetJob loads a job through this session.
func (s *Session) GetJob(ctx domain.Context, id string) (domain.Job, error) {
	q := `SELECT id, title, description, required_years, embedding, created_at FROM jobs WHERE id=$1`
	row := s.conn.QueryRow(ctx, q, id)
	var j domain.Job
	if err := row.Scan(&j.ID, &j.Title, &j.Description, &j.RequiredYears, &j.Embedding, &j.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Job{}, fmt.Errorf("op=datacontext.get_job: %w", domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=datacontext.get_job: %w", err)
	}
	return j, nil
}

// Close releases the connection. Safe to call once per session.
func (s *Session) Close(ctx domain.Context) error {
	if err := s.conn.Close(ctx); err != nil {
		return fmt.Errorf("op=datacontext.close: %w", err)
	}
	return nil
}
