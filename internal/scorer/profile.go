package scorer

import (
	"strings"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// Profile tags for the four weighting schemes.
const (
	ProfileSenior   = "Senior/Leadership"
	ProfileSecurity = "Security/Compliance"
	ProfileDataML   = "Data/ML"
	ProfileDefault  = "Default"
)

// Weights is a normalized weight vector over the five dimensions.
// Invariant: values sum to 1.0.
type Weights map[domain.DimensionKind]float64

var profileWeights = map[string]Weights{
	ProfileSenior: {
		domain.DimensionSkill:         0.30,
		domain.DimensionSemantic:      0.15,
		domain.DimensionExperience:    0.35,
		domain.DimensionEducation:     0.15,
		domain.DimensionCertification: 0.05,
	},
	ProfileSecurity: {
		domain.DimensionSkill:         0.30,
		domain.DimensionSemantic:      0.20,
		domain.DimensionExperience:    0.20,
		domain.DimensionEducation:     0.15,
		domain.DimensionCertification: 0.15,
	},
	ProfileDataML: {
		domain.DimensionSkill:         0.40,
		domain.DimensionSemantic:      0.25,
		domain.DimensionExperience:    0.15,
		domain.DimensionEducation:     0.15,
		domain.DimensionCertification: 0.05,
	},
	ProfileDefault: {
		domain.DimensionSkill:         0.25,
		domain.DimensionSemantic:      0.15,
		domain.DimensionExperience:    0.10,
		domain.DimensionEducation:     0.30,
		domain.DimensionCertification: 0.20,
	},
}

var (
	seniorTitleTerms   = []string{"senior", "lead", "principal"}
	securityDescTerms  = []string{"certification", "certified"}
	securityTitleTerms = []string{"security", "compliance"}
	dataMLTerms        = []string{"data", "machine learning", "ml", "tensorflow", "pytorch"}
)

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		// Short terms ("ml") match under word boundaries so "html" does not
		// classify a job as Data/ML.
		if len(t) <= 2 {
			if containsToken(text, t) {
				return true
			}
			continue
		}
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// SelectProfile classifies a job into one of four weight profiles. Pure
// function; rules are checked top to bottom and the first to fire wins.
func SelectProfile(title, description string) (string, Weights) {
	lt := strings.ToLower(title)
	ld := strings.ToLower(description)

	var tag string
	switch {
	case containsAny(lt, seniorTitleTerms):
		tag = ProfileSenior
	case containsAny(ld, securityDescTerms) || containsAny(lt, securityTitleTerms):
		tag = ProfileSecurity
	case containsAny(lt+" "+ld, dataMLTerms):
		tag = ProfileDataML
	default:
		tag = ProfileDefault
	}
	return tag, profileWeights[tag]
}
