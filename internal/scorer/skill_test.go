package scorer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
	"github.com/fairyhunter13/resume-scorer/internal/scorer"
)

func skillScore(t *testing.T, resume domain.Resume, job domain.Job) scorer.Output {
	t.Helper()
	s := scorer.NewSkillScorer(scorer.DefaultCatalog())
	out, err := s.Score(context.Background(), scorer.Input{Resume: resume, Job: job})
	require.NoError(t, err)
	require.GreaterOrEqual(t, out.Score, 0.0)
	require.LessOrEqual(t, out.Score, 100.0)
	return out
}

func TestSkillScorer_PerfectMatch(t *testing.T) {
	t.Parallel()
	out := skillScore(t,
		domain.Resume{Skills: []string{"Python", "Django"}},
		domain.Job{Description: "Python, Django, 5+ years"},
	)
	assert.InDelta(t, 100.0, out.Score, 0.01)
	assert.Equal(t, []string{"django", "python"}, out.Detail["matched"])
	assert.Empty(t, out.Detail["missing"])
}

func TestSkillScorer_NoResumeSkills(t *testing.T) {
	t.Parallel()
	out := skillScore(t,
		domain.Resume{Body: "I enjoy gardening"},
		domain.Job{Description: "Python required"},
	)
	assert.Equal(t, 0.0, out.Score)
}

func TestSkillScorer_NoOverlapZero(t *testing.T) {
	t.Parallel()
	out := skillScore(t,
		domain.Resume{Skills: []string{"Linux"}},
		domain.Job{Description: "CISSP certification required"},
	)
	assert.Equal(t, 0.0, out.Score)
}

func TestSkillScorer_MissingPenalty(t *testing.T) {
	t.Parallel()
	// Resume covers python but the job also wants kubernetes and terraform.
	out := skillScore(t,
		domain.Resume{Skills: []string{"Python"}},
		domain.Job{Description: "Python plus Kubernetes and Terraform"},
	)
	// avg 1.0 minus 0.1 * 2/3 missing
	assert.InDelta(t, 93.33, out.Score, 0.01)
	assert.ElementsMatch(t, []string{"kubernetes", "terraform"}, out.Detail["missing"])
}

func TestSkillScorer_RepeatMentionBonusCapped(t *testing.T) {
	t.Parallel()
	out := skillScore(t,
		domain.Resume{Skills: []string{"Python"}},
		domain.Job{Description: "python python python python python python python"},
	)
	// weight capped at 1.45, clamped to 1.0 before scaling
	assert.InDelta(t, 100.0, out.Score, 0.01)
}

func TestSkillScorer_BodyCatalogExtraction(t *testing.T) {
	t.Parallel()
	out := skillScore(t,
		domain.Resume{Body: "Shipped services in Go with PostgreSQL and Docker."},
		domain.Job{Description: "Looking for Go and Docker experience"},
	)
	assert.Greater(t, out.Score, 0.0)
}

func TestSkillScorer_SupersetMonotonicity(t *testing.T) {
	t.Parallel()
	job := domain.Job{Description: "Python, Django and AWS on Kubernetes"}
	small := skillScore(t, domain.Resume{Skills: []string{"Python"}}, job)
	large := skillScore(t, domain.Resume{Skills: []string{"Python", "Django", "AWS", "Kubernetes"}}, job)
	assert.GreaterOrEqual(t, large.Score, small.Score)
}
