package scorer

import (
	"context"
	"strings"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// degreeTier orders recognized education levels.
type degreeTier int

const (
	tierNone degreeTier = iota
	tierHighSchool
	tierAssociate
	tierBachelor
	tierMaster
	tierDoctorate
)

var tierLabels = map[degreeTier]string{
	tierNone:       "None",
	tierHighSchool: "High School",
	tierAssociate:  "Associate",
	tierBachelor:   "Bachelor",
	tierMaster:     "Master",
	tierDoctorate:  "Doctorate",
}

// tierKeywords are checked highest tier first; the first tier with any
// keyword present wins.
var tierKeywords = []struct {
	tier     degreeTier
	keywords []string
}{
	// The dotted forms need their trailing-period variants too: "." never
	// delimits a token, so "B.S." matches "b.s." but not "b.s".
	{tierDoctorate, []string{"phd", "ph.d", "ph.d.", "doctorate", "doctoral", "dphil"}},
	{tierMaster, []string{"master", "masters", "msc", "m.s", "m.s.", "m.sc", "mba", "m.b.a", "m.b.a.", "m.eng", "m.eng.", "meng"}},
	{tierBachelor, []string{"bachelor", "bachelors", "bsc", "b.s", "b.s.", "b.sc", "bs", "b.a", "b.a.", "ba", "b.eng", "b.eng.", "beng", "undergraduate degree"}},
	{tierAssociate, []string{"associate"}},
	{tierHighSchool, []string{"high school", "secondary school", "ged"}},
}

// highestTier returns the highest degree tier whose keyword appears in text.
func highestTier(text string) degreeTier {
	if strings.TrimSpace(text) == "" {
		return tierNone
	}
	for _, entry := range tierKeywords {
		for _, kw := range entry.keywords {
			if containsToken(text, kw) {
				return entry.tier
			}
		}
	}
	return tierNone
}

// EducationScorer compares the candidate's highest degree tier against the
// tier the job description asks for.
type EducationScorer struct{}

// NewEducationScorer constructs an EducationScorer.
func NewEducationScorer() *EducationScorer { return &EducationScorer{} }

// Kind implements Scorer.
func (s *EducationScorer) Kind() domain.DimensionKind { return domain.DimensionEducation }

// Score implements Scorer per the education dimension contract.
func (s *EducationScorer) Score(_ context.Context, in Input) (Output, error) {
	eduText := strings.Join(in.Resume.Education, "\n")
	if strings.TrimSpace(eduText) == "" {
		eduText = in.Resume.Body
	}
	candidate := highestTier(eduText)
	required := highestTier(in.Job.Description)

	var score float64
	switch {
	case required == tierNone:
		score = 100
	case candidate >= required:
		score = 100
	case candidate > tierNone:
		score = 100 * float64(candidate) / float64(required)
	default:
		score = 0
	}

	detail := map[string]any{
		"candidate_tier":  tierLabels[candidate],
		"required_tier":   tierLabels[required],
		"requirement_met": required == tierNone || candidate >= required,
	}
	return validated(domain.DimensionEducation, Output{Score: round2(score), Detail: detail})
}
