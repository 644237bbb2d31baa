package scorer

import (
	"context"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

const (
	certBonusScore   = 50 // certs held but none required
	certNeutralScore = 30 // none held, none required
)

// CertificationScorer measures coverage of the certifications the job
// description names.
type CertificationScorer struct{ cat Catalog }

// NewCertificationScorer constructs a CertificationScorer over the catalog.
func NewCertificationScorer(cat Catalog) *CertificationScorer {
	return &CertificationScorer{cat: cat}
}

// Kind implements Scorer.
func (s *CertificationScorer) Kind() domain.DimensionKind { return domain.DimensionCertification }

// resumeCerts is the union of declared certifications and catalog matches in
// the resume body, normalized.
func (s *CertificationScorer) resumeCerts(r domain.Resume) map[string]struct{} {
	set := make(map[string]struct{})
	for _, c := range r.Certifications {
		if tok := normalizeToken(c); tok != "" {
			set[tok] = struct{}{}
		}
	}
	for _, c := range matchCatalog(r.Body, s.cat.Certifications) {
		set[c] = struct{}{}
	}
	return set
}

// Score implements Scorer per the certification dimension contract.
func (s *CertificationScorer) Score(_ context.Context, in Input) (Output, error) {
	jobCerts := matchCatalog(in.Job.Description, s.cat.Certifications)
	held := s.resumeCerts(in.Resume)

	detail := map[string]any{
		"required_count": len(jobCerts),
		"held_count":     len(held),
	}

	if len(jobCerts) == 0 {
		score := float64(certNeutralScore)
		if len(held) > 0 {
			score = certBonusScore
		}
		detail["matched"] = []string{}
		detail["missing"] = []string{}
		return validated(domain.DimensionCertification, Output{Score: score, Detail: detail})
	}

	matched := []string{}
	missing := []string{}
	for _, c := range jobCerts {
		if _, ok := held[c]; ok {
			matched = append(matched, c)
		} else {
			missing = append(missing, c)
		}
	}
	detail["matched"] = matched
	detail["missing"] = missing

	score := 0.0
	if len(held) > 0 {
		score = 100 * float64(len(matched)) / float64(len(jobCerts))
	}
	return validated(domain.DimensionCertification, Output{Score: round2(score), Detail: detail})
}
