package scorer

import (
	"context"
	"fmt"
	"math"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// Input carries the loaded resume and job a scorer works on. SkillHint is an
// optional skill pre-score on the 0-100 scale for the semantic scorer; nil
// means not supplied.
type Input struct {
	Resume    domain.Resume
	Job       domain.Job
	SkillHint *float64
}

// Output is a validated dimension score plus its detail payload.
type Output struct {
	Score  float64 // [0,100], finite
	Detail map[string]any
}

// Scorer computes one dimension score from a (resume, job) pair.
type Scorer interface {
	Kind() domain.DimensionKind
	Score(ctx context.Context, in Input) (Output, error)
}

// Registry maps each dimension to its scorer implementation.
type Registry map[domain.DimensionKind]Scorer

// NewRegistry builds the full scorer set over one catalog.
func NewRegistry(cat Catalog) Registry {
	return Registry{
		domain.DimensionSkill:         NewSkillScorer(cat),
		domain.DimensionSemantic:      NewSemanticScorer(cat),
		domain.DimensionExperience:    NewExperienceScorer(),
		domain.DimensionEducation:     NewEducationScorer(),
		domain.DimensionCertification: NewCertificationScorer(cat),
	}
}

// Get returns the scorer for kind.
func (r Registry) Get(kind domain.DimensionKind) (Scorer, error) {
	s, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("op=scorer.get: %w: unknown dimension %q", domain.ErrInvalidArgument, kind)
	}
	return s, nil
}

// validated guards the scorer contract: score finite and in [0,100].
func validated(kind domain.DimensionKind, out Output) (Output, error) {
	if math.IsNaN(out.Score) || math.IsInf(out.Score, 0) || out.Score < 0 || out.Score > 100 {
		return Output{}, fmt.Errorf("op=scorer.%s: %w: score %v out of range", kind, domain.ErrInvalidScore, out.Score)
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// round2 rounds to two decimals, the precision scores are stored with.
func round2(v float64) float64 { return math.Round(v*100) / 100 }
