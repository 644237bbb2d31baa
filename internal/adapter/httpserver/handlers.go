package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/resume-scorer/internal/config"
	"github.com/fairyhunter13/resume-scorer/internal/domain"
	"github.com/fairyhunter13/resume-scorer/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Scores     usecase.ScoreService
	Results    usecase.ResultService
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, scores usecase.ScoreService, results usecase.ResultService, dbCheck, redisCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Scores: scores, Results: results, DBCheck: dbCheck, RedisCheck: redisCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

type scoreRequest struct {
	ResumeID string `json:"resume_id" validate:"required,max=100"`
	JobID    string `json:"job_id" validate:"required,max=100"`
}

type dimensionJSON struct {
	Dimension        string         `json:"dimension"`
	Score            float64        `json:"score"`
	Weight           float64        `json:"weight"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	Detail           map[string]any `json:"detail,omitempty"`
}

// scoreResponse carries the six [0,1] scores in "scores" and the weight
// vector plus its profile tag in "weights". Failed dimensions surface in the
// breakdown with detail {status:"failed", error}.
type scoreResponse struct {
	ResumeID         string             `json:"resume_id"`
	JobID            string             `json:"job_id"`
	Scores           map[string]float64 `json:"scores"`
	Weights          map[string]any     `json:"weights"`
	AgentsCompleted  int                `json:"agents_completed"`
	ProcessingTimeMS int64              `json:"processing_time_ms"`
	Persisted        bool               `json:"persisted"`
	Breakdown        []dimensionJSON    `json:"breakdown"`
}

type storedScoreResponse struct {
	ResumeID         string             `json:"resume_id"`
	JobID            string             `json:"job_id"`
	OverallScore     float64            `json:"overall_score"`
	ProfileTag       string             `json:"profile_tag"`
	AgentsCompleted  int                `json:"agents_completed"`
	ProcessingTimeMS int64              `json:"processing_time_ms"`
	Scores           map[string]float64 `json:"scores"`
}

// ScoreHandler handles POST /v1/score: run the full scoring pipeline for one
// (resume, job) pair and return the composite with its breakdown.
func (s *Server) ScoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a := r.Header.Get("Accept"); a != "" && a != "*/*" && !strings.Contains(a, "application/json") {
			writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]any{"accept": a}}})
			return
		}
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json body", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		res, err := s.Scores.Score(r.Context(), req.ResumeID, req.JobID)
		if err != nil {
			LoggerFrom(r).Warn("scoring failed",
				"resume_id", req.ResumeID,
				"job_id", req.JobID,
				"error", err)
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toScoreResponse(res))
	}
}

// GetScoreHandler handles GET /v1/scores/{resumeID}/{jobID}: return the
// stored composite for a previously scored pair.
func (s *Server) GetScoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resumeID := chi.URLParam(r, "resumeID")
		jobID := chi.URLParam(r, "jobID")

		stored, err := s.Results.Get(r.Context(), resumeID, jobID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, storedScoreResponse{
			ResumeID:         stored.ResumeID,
			JobID:            stored.JobID,
			OverallScore:     stored.Composite,
			ProfileTag:       stored.ProfileTag,
			AgentsCompleted:  stored.AgentsCompleted,
			ProcessingTimeMS: stored.ProcessingTimeMS,
			Scores: map[string]float64{
				"composite":                           stored.Composite,
				string(domain.DimensionSkill):         stored.Skill,
				string(domain.DimensionSemantic):      stored.Semantic,
				string(domain.DimensionExperience):    stored.Experience,
				string(domain.DimensionEducation):     stored.Education,
				string(domain.DimensionCertification): stored.Certification,
			},
		})
	}
}

// HealthzHandler reports process liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler reports dependency readiness.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name string `json:"name"`
		OK   bool   `json:"ok"`
		Err  string `json:"error,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		checks := []struct {
			name string
			fn   func(ctx context.Context) error
		}{
			{"db", s.DBCheck},
			{"redis", s.RedisCheck},
		}
		out := make([]check, 0, len(checks))
		allOK := true
		for _, c := range checks {
			if c.fn == nil {
				continue
			}
			res := check{Name: c.name, OK: true}
			if err := c.fn(r.Context()); err != nil {
				res.OK = false
				res.Err = err.Error()
				allOK = false
			}
			out = append(out, res)
		}
		status := http.StatusOK
		if !allOK {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{"ready": allOK, "checks": out})
	}
}

func toScoreResponse(res usecase.ScoreResult) scoreResponse {
	weights := make(map[string]any, len(res.Weights)+1)
	for kind, w := range res.Weights {
		weights[string(kind)] = w
	}
	weights["profile_tag"] = res.ProfileTag

	scores := make(map[string]float64, len(res.Breakdown)+1)
	scores["composite"] = res.Composite

	out := scoreResponse{
		ResumeID:         res.ResumeID,
		JobID:            res.JobID,
		Scores:           scores,
		Weights:          weights,
		AgentsCompleted:  res.AgentsCompleted,
		ProcessingTimeMS: res.ProcessingTimeMS,
		Persisted:        res.Persisted,
	}
	for _, d := range res.Breakdown {
		scores[string(d.Kind)] = d.Score
		detail := d.Detail
		if d.Status == "failed" {
			detail = map[string]any{"status": "failed", "error": d.Error}
		}
		out.Breakdown = append(out.Breakdown, dimensionJSON{
			Dimension:        string(d.Kind),
			Score:            d.Score,
			Weight:           res.Weights[d.Kind],
			ProcessingTimeMS: d.ProcessingTimeMS,
			Detail:           detail,
		})
	}
	return out
}
