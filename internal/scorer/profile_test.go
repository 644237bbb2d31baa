package scorer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
	"github.com/fairyhunter13/resume-scorer/internal/scorer"
)

func TestSelectProfile_Rules(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		title string
		desc  string
		tag   string
	}{
		{"senior title", "Senior Python Developer", "Python, Django, 5+ years", scorer.ProfileSenior},
		{"lead title", "Tech Lead", "whatever", scorer.ProfileSenior},
		{"principal title", "Principal Engineer", "whatever", scorer.ProfileSenior},
		{"security title", "Security Engineer", "CISSP certification required", scorer.ProfileSecurity},
		{"certified in desc", "Cloud Engineer", "Must be certified in AWS", scorer.ProfileSecurity},
		{"compliance title", "Compliance Officer", "Audit things", scorer.ProfileSecurity},
		{"ml title", "Machine Learning Engineer", "Build models", scorer.ProfileDataML},
		{"data in desc", "Backend Engineer", "Heavy data pipelines", scorer.ProfileDataML},
		{"pytorch in desc", "Engineer", "PyTorch experience", scorer.ProfileDataML},
		{"html does not trigger ml", "Frontend Engineer", "Write html and css", scorer.ProfileDefault},
		{"default", "Account Manager", "Manage accounts", scorer.ProfileDefault},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tag, _ := scorer.SelectProfile(tc.title, tc.desc)
			assert.Equal(t, tc.tag, tag)
		})
	}
}

func TestSelectProfile_FirstRuleWins(t *testing.T) {
	t.Parallel()
	// Title matches both senior and security; senior is checked first.
	tag, _ := scorer.SelectProfile("Senior Security Engineer", "certified professionals only")
	assert.Equal(t, scorer.ProfileSenior, tag)
}

func TestSelectProfile_WeightsSumToOne(t *testing.T) {
	t.Parallel()
	titles := []string{"Senior Dev", "Security Engineer", "ML Engineer", "Gardener"}
	for _, title := range titles {
		_, w := scorer.SelectProfile(title, "")
		var sum float64
		for _, kind := range domain.Dimensions() {
			sum += w[kind]
		}
		assert.InDelta(t, 1.0, sum, 0.001, title)
		assert.Len(t, w, 5, title)
	}
}

func TestSelectProfile_Deterministic(t *testing.T) {
	t.Parallel()
	tag1, w1 := scorer.SelectProfile("Senior Python Developer", "Python, Django")
	tag2, w2 := scorer.SelectProfile("Senior Python Developer", "Python, Django")
	assert.Equal(t, tag1, tag2)
	assert.Equal(t, w1, w2)
}

func TestSelectProfile_SeniorWeights(t *testing.T) {
	t.Parallel()
	_, w := scorer.SelectProfile("Senior Python Developer", "")
	assert.Equal(t, 0.30, w[domain.DimensionSkill])
	assert.Equal(t, 0.15, w[domain.DimensionSemantic])
	assert.Equal(t, 0.35, w[domain.DimensionExperience])
	assert.Equal(t, 0.15, w[domain.DimensionEducation])
	assert.Equal(t, 0.05, w[domain.DimensionCertification])
}

func TestSelectProfile_DataMLWeights(t *testing.T) {
	t.Parallel()
	tag, w := scorer.SelectProfile("Machine Learning Engineer", "Build models")
	assert.Equal(t, scorer.ProfileDataML, tag)
	assert.Equal(t, 0.40, w[domain.DimensionSkill])
	assert.Equal(t, 0.25, w[domain.DimensionSemantic])
	assert.Equal(t, 0.15, w[domain.DimensionExperience])
	assert.Equal(t, 0.15, w[domain.DimensionEducation])
	assert.Equal(t, 0.05, w[domain.DimensionCertification])
}

func TestNewRegistry_CoversAllDimensions(t *testing.T) {
	t.Parallel()
	reg := scorer.NewRegistry(scorer.DefaultCatalog())
	for _, kind := range domain.Dimensions() {
		s, err := reg.Get(kind)
		assert.NoError(t, err)
		assert.Equal(t, kind, s.Kind())
	}
	_, err := reg.Get(domain.DimensionKind("nope"))
	assert.Error(t, err)
}
