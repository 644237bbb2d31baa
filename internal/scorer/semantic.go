package scorer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

const (
	semanticEmbedWeight     = 0.4
	semanticDomainWeight    = 0.3
	semanticAlignmentWeight = 0.3

	nonTechDomainScore   = 0.6
	techDomainBase       = 0.3
	techDomainSpan       = 0.7
	domainIndicatorCount = 5

	misleadingOverlapScore = 0.2
	lowSkillThreshold      = 40
	highSkillThreshold     = 70
)

// SemanticScorer blends embedding similarity with domain relevance and
// skill/semantic alignment. Without a skill hint it falls back to the raw
// embedding score.
type SemanticScorer struct{ cat Catalog }

// NewSemanticScorer constructs a SemanticScorer over the catalog.
func NewSemanticScorer(cat Catalog) *SemanticScorer { return &SemanticScorer{cat: cat} }

// Kind implements Scorer.
func (s *SemanticScorer) Kind() domain.DimensionKind { return domain.DimensionSemantic }

// cosine computes cosine similarity between two equal-length vectors.
func cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty embedding", domain.ErrInvalidArgument)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: embedding dimensions differ (%d vs %d)", domain.ErrInvalidArgument, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			return 0, fmt.Errorf("%w: non-finite embedding component", domain.ErrInvalidArgument)
		}
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("%w: zero-norm embedding", domain.ErrInvalidArgument)
	}
	c := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Guard float drift outside [-1, 1].
	return math.Max(-1, math.Min(1, c)), nil
}

// jobIsTech reports whether any tech indicator occurs in title or description.
func (s *SemanticScorer) jobIsTech(job domain.Job) bool {
	text := job.Title + "\n" + job.Description
	for _, ind := range s.cat.TechIndicators {
		if containsToken(text, ind) {
			return true
		}
	}
	return false
}

// domainRelevance counts the five boolean relevance indicators.
func (s *SemanticScorer) domainRelevance(in Input, skillHint float64) (float64, int) {
	resumeText := in.Resume.Body + "\n" + strings.Join(in.Resume.Skills, "\n") + "\n" + strings.Join(in.Resume.Education, "\n")
	found := 0

	// (a) tech keywords in resume text
	for _, ind := range s.cat.TechIndicators {
		if containsToken(resumeText, ind) {
			found++
			break
		}
	}
	// (b) resume skills appearing in the job description
	for _, sk := range in.Resume.Skills {
		if containsToken(in.Job.Description, normalizeToken(sk)) {
			found++
			break
		}
	}
	// (c) job title tokens present in the resume
	for _, tok := range strings.Fields(strings.ToLower(in.Job.Title)) {
		if len(tok) <= 2 {
			continue
		}
		if containsToken(resumeText, tok) {
			found++
			break
		}
	}
	// (d) relevant-field education
	eduText := strings.Join(in.Resume.Education, "\n")
	for _, field := range s.cat.RelevantFields {
		if containsToken(eduText, field) {
			found++
			break
		}
	}
	// (e) skill score at or above 50
	if skillHint >= 50 {
		found++
	}

	rel := techDomainBase + techDomainSpan*float64(found)/domainIndicatorCount
	return clamp01(rel), found
}

// Score implements Scorer per the semantic dimension contract.
func (s *SemanticScorer) Score(_ context.Context, in Input) (Output, error) {
	c, err := cosine(in.Resume.Embedding, in.Job.Embedding)
	if err != nil {
		return Output{}, fmt.Errorf("op=scorer.semantic: %w", err)
	}
	embedScore := (c + 1) / 2

	detail := map[string]any{
		"cosine":      round2(c),
		"embed_score": round2(embedScore),
	}

	if in.SkillHint == nil {
		// No skill context supplied; embedding similarity stands alone.
		detail["fallback"] = true
		return validated(domain.DimensionSemantic, Output{Score: round2(embedScore * 100), Detail: detail})
	}
	skillHint := *in.SkillHint

	isTech := s.jobIsTech(in.Job)
	domainScore := nonTechDomainScore
	indicators := 0
	if isTech {
		domainScore, indicators = s.domainRelevance(in, skillHint)
	}

	var alignment float64
	switch {
	case isTech && skillHint < lowSkillThreshold:
		alignment = misleadingOverlapScore
	case skillHint > highSkillThreshold:
		alignment = skillHint / 100
	default:
		alignment = embedScore
	}

	score := 100 * (semanticEmbedWeight*embedScore + semanticDomainWeight*domainScore + semanticAlignmentWeight*alignment)
	detail["domain_score"] = round2(domainScore)
	detail["alignment_score"] = round2(alignment)
	detail["tech_job"] = isTech
	detail["indicators_found"] = indicators
	return validated(domain.DimensionSemantic, Output{Score: round2(clamp01(score/100) * 100), Detail: detail})
}
