package scorer

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// Employment spans longer than this are treated as parse noise.
const maxSpanYears = 80

var (
	explicitYearsRe = regexp.MustCompile(`(?i)\b(\d{1,2})\+?\s*years?\s+(?:of\s+)?experience\b`)
	yearRangeRe     = regexp.MustCompile(`\b((?:19|20)\d{2})\s*[-\x{2013}\x{2014}]\s*((?:19|20)\d{2}|[Pp]resent)\b`)
	monthRangeRe    = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+((?:19|20)\d{2})\s*[-\x{2013}\x{2014}]\s*(?:(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+((?:19|20)\d{2})|present)\b`)
	numericRangeRe  = regexp.MustCompile(`\b(0?[1-9]|1[0-2])/((?:19|20)\d{2})\s*[-\x{2013}\x{2014}]\s*(?:(0?[1-9]|1[0-2])/((?:19|20)\d{2})|[Pp]resent)\b`)
)

var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// ExperienceScorer compares derived candidate years against the job's stated
// requirement.
type ExperienceScorer struct {
	// now is injected for deterministic "Present" resolution in tests.
	now func() time.Time
}

// NewExperienceScorer constructs an ExperienceScorer.
func NewExperienceScorer() *ExperienceScorer { return &ExperienceScorer{now: time.Now} }

// Kind implements Scorer.
func (s *ExperienceScorer) Kind() domain.DimensionKind { return domain.DimensionExperience }

// candidateYears derives total experience. The structured field wins when
// set; otherwise an explicit statement in the body, then summed employment
// date ranges.
func (s *ExperienceScorer) candidateYears(r domain.Resume) (float64, string) {
	if r.YearsExperience > 0 {
		return float64(r.YearsExperience), "structured"
	}
	if m := explicitYearsRe.FindStringSubmatch(r.Body); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			return float64(y), "stated"
		}
	}
	if total := s.sumDateRanges(r.Body); total > 0 {
		return total, "date_ranges"
	}
	return 0, "none"
}

// sumDateRanges sums unambiguous employment ranges in years. Each span must
// run forward in time and is clipped to [0, 80).
func (s *ExperienceScorer) sumDateRanges(body string) float64 {
	nowYear := s.now().Year()
	nowMonth := int(s.now().Month())
	var total float64
	add := func(startY, startM, endY, endM int) {
		months := (endY-startY)*12 + (endM - startM)
		if months < 0 {
			return
		}
		years := float64(months) / 12.0
		if years >= maxSpanYears {
			return
		}
		total += years
	}

	for _, m := range monthRangeRe.FindAllStringSubmatch(body, -1) {
		startM := monthIndex[strings.ToLower(m[1])]
		startY, _ := strconv.Atoi(m[2])
		endY, endM := nowYear, nowMonth
		if m[3] != "" && m[4] != "" {
			endM = monthIndex[strings.ToLower(m[3])]
			endY, _ = strconv.Atoi(m[4])
		}
		add(startY, startM, endY, endM)
	}
	for _, m := range numericRangeRe.FindAllStringSubmatch(body, -1) {
		startM, _ := strconv.Atoi(m[1])
		startY, _ := strconv.Atoi(m[2])
		endY, endM := nowYear, nowMonth
		if m[3] != "" && m[4] != "" {
			endM, _ = strconv.Atoi(m[3])
			endY, _ = strconv.Atoi(m[4])
		}
		add(startY, startM, endY, endM)
	}
	if total > 0 {
		return total
	}
	// Bare YYYY-YYYY ranges only count when nothing finer matched, so a
	// "Jan 2019 - Mar 2021" line is not double-counted via its years.
	for _, m := range yearRangeRe.FindAllStringSubmatch(body, -1) {
		startY, _ := strconv.Atoi(m[1])
		endY := nowYear
		if !strings.EqualFold(m[2], "present") {
			endY, _ = strconv.Atoi(m[2])
		}
		add(startY, 1, endY, 1)
	}
	return total
}

// Score implements Scorer per the experience dimension contract.
func (s *ExperienceScorer) Score(_ context.Context, in Input) (Output, error) {
	candidate, source := s.candidateYears(in.Resume)
	required := float64(in.Job.RequiredYears)

	var score float64
	switch {
	case required <= 0:
		score = 100
	case candidate >= required:
		score = 100
	case candidate > 0:
		score = 100 * candidate / required
	default:
		score = 0
	}

	detail := map[string]any{
		"candidate_years": round2(candidate),
		"required_years":  in.Job.RequiredYears,
		"requirement_met": required <= 0 || candidate >= required,
		"source":          source,
	}
	return validated(domain.DimensionExperience, Output{Score: round2(score), Detail: detail})
}
