package scorer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
	"github.com/fairyhunter13/resume-scorer/internal/scorer"
)

func semScore(t *testing.T, in scorer.Input) (scorer.Output, error) {
	t.Helper()
	return scorer.NewSemanticScorer(scorer.DefaultCatalog()).Score(context.Background(), in)
}

func f64ptr(v float64) *float64 { return &v }

func TestSemanticScorer_IdenticalEmbeddingsFallback(t *testing.T) {
	t.Parallel()
	e := []float32{0.6, 0.8}
	out, err := semScore(t, scorer.Input{
		Resume: domain.Resume{Embedding: e},
		Job:    domain.Job{Embedding: e},
	})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, out.Score, 0.01)
	assert.Equal(t, true, out.Detail["fallback"])
}

func TestSemanticScorer_OrthogonalEmbeddingsFallback(t *testing.T) {
	t.Parallel()
	out, err := semScore(t, scorer.Input{
		Resume: domain.Resume{Embedding: []float32{1, 0}},
		Job:    domain.Job{Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, out.Score, 0.01)
}

func TestSemanticScorer_InvalidEmbeddings(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		resume []float32
		job    []float32
	}{
		{"empty resume", nil, []float32{1}},
		{"dimension mismatch", []float32{1, 0}, []float32{1}},
		{"zero norm", []float32{0, 0}, []float32{1, 0}},
		{"nan component", []float32{float32(nan()), 1}, []float32{1, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := semScore(t, scorer.Input{
				Resume: domain.Resume{Embedding: tc.resume},
				Job:    domain.Job{Embedding: tc.job},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestSemanticScorer_TechJobWithStrongSkills(t *testing.T) {
	t.Parallel()
	e := []float32{0.6, 0.8}
	out, err := semScore(t, scorer.Input{
		Resume: domain.Resume{
			Body:      "Python developer. Shipped Django apps.",
			Skills:    []string{"Python", "Django"},
			Education: []string{"BS Computer Science"},
			Embedding: e,
		},
		Job:       domain.Job{Title: "Senior Python Developer", Description: "Python, Django, 5+ years", Embedding: e},
		SkillHint: f64ptr(100),
	})
	require.NoError(t, err)
	// s_e=1.0, all five indicators fire so s_d=1.0, s_a=1.0
	assert.InDelta(t, 100.0, out.Score, 0.01)
	assert.Equal(t, 5, out.Detail["indicators_found"])
}

func TestSemanticScorer_TechJobMisleadingOverlap(t *testing.T) {
	t.Parallel()
	out, err := semScore(t, scorer.Input{
		Resume: domain.Resume{
			Body:      "Warehouse operations and logistics.",
			Embedding: []float32{1, 0},
		},
		Job:       domain.Job{Title: "Security Engineer", Description: "CISSP certification required", Embedding: []float32{0, 1}},
		SkillHint: f64ptr(0),
	})
	require.NoError(t, err)
	// s_e=0.5, no indicators so s_d=0.3, low skill on tech job so s_a=0.2
	assert.InDelta(t, 35.0, out.Score, 0.01)
	assert.Equal(t, false, out.Detail["fallback"] == true)
}

func TestSemanticScorer_NonTechJob(t *testing.T) {
	t.Parallel()
	e := []float32{1, 0}
	out, err := semScore(t, scorer.Input{
		Resume:    domain.Resume{Body: "Experienced florist.", Embedding: e},
		Job:       domain.Job{Title: "Florist", Description: "Arrange flowers beautifully", Embedding: e},
		SkillHint: f64ptr(60),
	})
	require.NoError(t, err)
	// s_e=1.0, non-tech s_d=0.6, mid skill so s_a=s_e=1.0
	assert.InDelta(t, 100*(0.4+0.3*0.6+0.3), out.Score, 0.01)
}
