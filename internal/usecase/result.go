package usecase

import (
	"fmt"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// ResultService serves previously persisted composite scores.
type ResultService struct {
	Composites domain.CompositeRepository
}

// NewResultService constructs a ResultService.
func NewResultService(composites domain.CompositeRepository) ResultService {
	return ResultService{Composites: composites}
}

// StoredScore is a persisted composite at the API boundary, scores as
// normalized fractions [0,1].
type StoredScore struct {
	ResumeID         string
	JobID            string
	Composite        float64
	Skill            float64
	Semantic         float64
	Experience       float64
	Education        float64
	Certification    float64
	ProfileTag       string
	AgentsCompleted  int
	ProcessingTimeMS int64
}

// Get loads the stored composite for a pair. Returns domain.ErrNotFound when
// the pair has never been scored.
func (s ResultService) Get(ctx domain.Context, resumeID, jobID string) (StoredScore, error) {
	if resumeID == "" || jobID == "" {
		return StoredScore{}, fmt.Errorf("op=result.get: %w: resume_id and job_id required", domain.ErrInvalidArgument)
	}
	c, err := s.Composites.Get(ctx, resumeID, jobID)
	if err != nil {
		return StoredScore{}, fmt.Errorf("op=result.get: %w", err)
	}
	return StoredScore{
		ResumeID:         c.ResumeID,
		JobID:            c.JobID,
		Composite:        round2(c.Composite / 100),
		Skill:            round2(c.Skill / 100),
		Semantic:         round2(c.Semantic / 100),
		Experience:       round2(c.Experience / 100),
		Education:        round2(c.Education / 100),
		Certification:    round2(c.Certification / 100),
		ProfileTag:       c.ProfileTag,
		AgentsCompleted:  c.AgentsCompleted,
		ProcessingTimeMS: c.TotalProcessingMS,
	}, nil
}
