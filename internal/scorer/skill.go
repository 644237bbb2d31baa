package scorer

import (
	"context"
	"sort"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

const (
	maxMatchesPerSkill = 5
	perMatchBonus      = 0.15
	maxSkillWeight     = 1.5
	missingPenaltyRate = 0.1
	detailSkillLimit   = 10
)

// SkillScorer matches resume skill tokens against the job description under
// word boundaries and penalizes job-required skills the resume lacks.
type SkillScorer struct{ cat Catalog }

// NewSkillScorer constructs a SkillScorer over the given catalog.
func NewSkillScorer(cat Catalog) *SkillScorer { return &SkillScorer{cat: cat} }

// Kind implements Scorer.
func (s *SkillScorer) Kind() domain.DimensionKind { return domain.DimensionSkill }

// resumeSkills is the union of the declared skill tokens and catalog matches
// in the resume body, case-normalized and deduplicated.
func (s *SkillScorer) resumeSkills(body string, declared []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(tok string) {
		tok = normalizeToken(tok)
		if tok == "" {
			return
		}
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	for _, sk := range declared {
		add(sk)
	}
	for _, sk := range matchCatalog(body, s.cat.Skills) {
		add(sk)
	}
	return out
}

// Score implements Scorer per the skill dimension contract.
func (s *SkillScorer) Score(_ context.Context, in Input) (Output, error) {
	resumeSet := s.resumeSkills(in.Resume.Body, in.Resume.Skills)
	jobSet := matchCatalog(in.Job.Description, s.cat.Skills)

	detail := map[string]any{
		"resume_skill_count": len(resumeSet),
		"job_skill_count":    len(jobSet),
	}
	if len(resumeSet) == 0 {
		detail["matched"] = []string{}
		detail["missing"] = jobSet
		detail["matched_count"] = 0
		detail["missing_count"] = len(jobSet)
		return validated(domain.DimensionSkill, Output{Score: 0, Detail: detail})
	}

	var matched []string
	var weightSum float64
	for _, sk := range resumeSet {
		n := countToken(in.Job.Description, sk)
		if n == 0 {
			continue
		}
		if n > maxMatchesPerSkill {
			n = maxMatchesPerSkill
		}
		bonus := float64(n - 1)
		if bonus > 3 {
			bonus = 3
		}
		w := 1.0 + perMatchBonus*bonus
		if w > maxSkillWeight {
			w = maxSkillWeight
		}
		weightSum += w
		matched = append(matched, sk)
	}
	avg := 0.0
	if len(matched) > 0 {
		avg = weightSum / float64(len(matched))
	}

	have := make(map[string]struct{}, len(resumeSet))
	for _, sk := range resumeSet {
		have[sk] = struct{}{}
	}
	missing := []string{}
	for _, sk := range jobSet {
		if _, ok := have[sk]; !ok {
			missing = append(missing, sk)
		}
	}
	penalty := 0.0
	if len(jobSet) > 0 {
		penalty = missingPenaltyRate * float64(len(missing)) / float64(len(jobSet))
	}

	detail["matched_count"] = len(matched)
	detail["missing_count"] = len(missing)
	sort.Strings(matched)
	if len(matched) > detailSkillLimit {
		matched = matched[:detailSkillLimit]
	}
	detail["matched"] = matched
	detail["missing"] = missing

	score := clamp01(avg-penalty) * 100
	return validated(domain.DimensionSkill, Output{Score: round2(score), Detail: detail})
}
