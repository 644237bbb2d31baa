// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-scorer/internal/adapter/observability"
	"github.com/fairyhunter13/resume-scorer/internal/domain"
	"github.com/fairyhunter13/resume-scorer/internal/scorer"
)

// DefaultWorkerTimeout bounds each scoring worker independently.
const DefaultWorkerTimeout = 120 * time.Second

// DefaultAcquireTimeout bounds the fork acquisition phase. Without it,
// requests holding partial fork sets at the active cap can deadlock each
// other; held forks are rolled back when the deadline fires.
const DefaultAcquireTimeout = 30 * time.Second

// ScoreService coordinates one scoring request: it fans the (resume, job)
// pair out to the five dimension workers, each on its own fork, fuses the
// results into a composite, and persists everything.
type ScoreService struct {
	Resumes    domain.ResumeRepository
	Jobs       domain.JobRepository
	Forks      domain.ForkManager
	Opener     domain.DataContextOpener
	Results    domain.WorkerResultRepository
	Composites domain.CompositeRepository
	Events     domain.EventPublisher
	Registry   scorer.Registry

	WorkerTimeout  time.Duration
	AcquireTimeout time.Duration
	// SkillHint makes the coordinator pre-compute the skill score on the
	// already-loaded pair and hand it to the semantic worker. Off by default;
	// the semantic worker then uses its embedding-only fallback.
	SkillHint bool
}

// NewScoreService constructs a ScoreService with its dependencies.
func NewScoreService(
	resumes domain.ResumeRepository,
	jobs domain.JobRepository,
	forks domain.ForkManager,
	opener domain.DataContextOpener,
	results domain.WorkerResultRepository,
	composites domain.CompositeRepository,
	events domain.EventPublisher,
	registry scorer.Registry,
) ScoreService {
	return ScoreService{
		Resumes:        resumes,
		Jobs:           jobs,
		Forks:          forks,
		Opener:         opener,
		Results:        results,
		Composites:     composites,
		Events:         events,
		Registry:       registry,
		WorkerTimeout:  DefaultWorkerTimeout,
		AcquireTimeout: DefaultAcquireTimeout,
	}
}

// DimensionResult is one worker's outcome at the API boundary. Score is the
// normalized fraction [0,1] with two decimals.
type DimensionResult struct {
	Kind             domain.DimensionKind
	Score            float64
	Status           string // "completed" | "failed"
	Error            string
	ProcessingTimeMS int64
	Detail           map[string]any
}

// ScoreResult is the full response for one scoring request.
type ScoreResult struct {
	ResumeID         string
	JobID            string
	Composite        float64 // [0,1], two decimals
	ProfileTag       string
	Weights          scorer.Weights
	AgentsCompleted  int
	ProcessingTimeMS int64
	// Persisted is false when the composite upsert failed after retry and
	// the result reflects in-memory values only.
	Persisted bool
	Breakdown []DimensionResult
}

// workerOutcome is the internal per-worker record before fusion.
type workerOutcome struct {
	kind     domain.DimensionKind
	forkID   string
	score    float64 // [0,100]
	detail   map[string]any
	duration time.Duration
	err      error
}

// Score runs the full pipeline for one (resume, job) pair. Worker failures
// degrade the composite and persistence failures flag the result unpersisted;
// only missing inputs and fork exhaustion surface as errors.
func (s ScoreService) Score(ctx domain.Context, resumeID, jobID string) (ScoreResult, error) {
	tracer := otel.Tracer("usecase.score")
	ctx, span := tracer.Start(ctx, "score.Score")
	defer span.End()

	if resumeID == "" || jobID == "" {
		return ScoreResult{}, fmt.Errorf("op=score: %w: resume_id and job_id required", domain.ErrInvalidArgument)
	}
	start := time.Now()

	resume, err := s.Resumes.Get(ctx, resumeID)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("op=score: %w", err)
	}
	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("op=score: %w", err)
	}

	profileTag, weights := scorer.SelectProfile(job.Title, job.Description)

	forks, err := s.acquireAll(ctx, resumeID, jobID)
	if err != nil {
		return ScoreResult{}, err
	}

	// Once dispatched, the request runs to completion even if the caller
	// goes away; only the per-worker deadlines bound the work from here on.
	ctx = context.WithoutCancel(ctx)

	var hint *float64
	if s.SkillHint {
		hint = s.precomputeSkill(ctx, resume, job)
	}

	outcomes := s.runWorkers(ctx, forks, resumeID, jobID, hint)
	s.settleForks(ctx, outcomes)
	s.appendResults(ctx, resumeID, jobID, outcomes)

	composite := fuse(resumeID, jobID, profileTag, weights, outcomes, time.Since(start))
	persisted := true
	if err := s.persistComposite(ctx, composite); err != nil {
		persisted = false
		slog.Error("composite persistence failed, returning in-memory result",
			slog.String("resume_id", resumeID),
			slog.String("job_id", jobID),
			slog.Any("error", err))
	}
	if persisted {
		s.publish(ctx, composite)
	}

	observability.ObserveComposite(composite.Composite/100, composite.AgentsCompleted)
	return buildResult(composite, weights, outcomes, persisted), nil
}

// acquireAll obtains one fork per dimension under the acquisition deadline.
// If any acquisition fails or the deadline fires, the forks already held are
// released as failed and the error surfaces.
func (s ScoreService) acquireAll(ctx domain.Context, resumeID, jobID string) (map[domain.DimensionKind]domain.Fork, error) {
	timeout := s.AcquireTimeout
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	forks := make(map[domain.DimensionKind]domain.Fork, len(domain.Dimensions()))
	for _, kind := range domain.Dimensions() {
		f, err := s.Forks.Acquire(actx, kind, resumeID, jobID)
		if err != nil {
			for _, held := range forks {
				if relErr := s.Forks.Release(ctx, held.ID, domain.ForkFailed, "sibling fork unavailable"); relErr != nil {
					slog.Error("fork rollback failed", slog.String("fork_id", held.ID), slog.Any("error", relErr))
				}
			}
			return nil, fmt.Errorf("op=score: %w", err)
		}
		forks[kind] = f
	}
	return forks, nil
}

// precomputeSkill runs the skill scorer inline on the already-loaded pair to
// produce the semantic worker's hint. Best effort.
func (s ScoreService) precomputeSkill(ctx domain.Context, resume domain.Resume, job domain.Job) *float64 {
	sk, err := s.Registry.Get(domain.DimensionSkill)
	if err != nil {
		return nil
	}
	out, err := sk.Score(ctx, scorer.Input{Resume: resume, Job: job})
	if err != nil {
		slog.Warn("skill hint computation failed", slog.Any("error", err))
		return nil
	}
	return &out.Score
}

// runWorkers executes the five dimension workers in parallel, each against
// its own fork with an independent timeout. One worker's failure or timeout
// never cancels its siblings.
func (s ScoreService) runWorkers(ctx domain.Context, forks map[domain.DimensionKind]domain.Fork, resumeID, jobID string, hint *float64) []workerOutcome {
	timeout := s.WorkerTimeout
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}

	outcomes := make([]workerOutcome, len(domain.Dimensions()))
	var wg sync.WaitGroup
	for i, kind := range domain.Dimensions() {
		wg.Add(1)
		go func(i int, kind domain.DimensionKind, f domain.Fork) {
			defer wg.Done()
			wctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			begin := time.Now()
			score, detail, err := s.runOne(wctx, kind, f, resumeID, jobID, hint)
			dur := time.Since(begin)
			observability.ObserveWorker(string(kind), dur, err)
			outcomes[i] = workerOutcome{
				kind:     kind,
				forkID:   f.ID,
				score:    score,
				detail:   detail,
				duration: dur,
				err:      err,
			}
		}(i, kind, forks[kind])
	}
	wg.Wait()
	return outcomes
}

// runOne is the body of a single worker: open the fork's data context, ping
// it, read the pair through it, and score. The session closes on every path.
func (s ScoreService) runOne(ctx domain.Context, kind domain.DimensionKind, f domain.Fork, resumeID, jobID string, hint *float64) (float64, map[string]any, error) {
	sc, err := s.Registry.Get(kind)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrWorkerFailed, err)
	}

	sess, err := s.Opener.Open(ctx, f.DataURL)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: open data context: %v", domain.ErrWorkerFailed, err)
	}
	defer func() {
		if cerr := sess.Close(ctx); cerr != nil {
			slog.Warn("data context close failed", slog.String("fork_id", f.ID), slog.Any("error", cerr))
		}
	}()

	if err := sess.Ping(ctx); err != nil {
		return 0, nil, fmt.Errorf("%w: ping data context: %v", domain.ErrWorkerFailed, err)
	}
	resume, err := sess.GetResume(ctx, resumeID)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read resume: %v", domain.ErrWorkerFailed, err)
	}
	job, err := sess.GetJob(ctx, jobID)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read job: %v", domain.ErrWorkerFailed, err)
	}

	in := scorer.Input{Resume: resume, Job: job}
	if kind == domain.DimensionSemantic {
		in.SkillHint = hint
	}
	out, err := sc.Score(ctx, in)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrWorkerFailed, err)
	}
	if ctx.Err() != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrWorkerFailed, ctx.Err())
	}
	return out.Score, out.Detail, nil
}

// settleForks releases every fork with its worker's outcome.
func (s ScoreService) settleForks(ctx domain.Context, outcomes []workerOutcome) {
	for _, o := range outcomes {
		state := domain.ForkCompleted
		errMsg := ""
		if o.err != nil {
			state = domain.ForkFailed
			errMsg = o.err.Error()
		}
		if err := s.Forks.Release(ctx, o.forkID, state, errMsg); err != nil {
			slog.Error("fork release failed", slog.String("fork_id", o.forkID), slog.Any("error", err))
		}
	}
}

// appendResults persists one worker result row per completed worker.
func (s ScoreService) appendResults(ctx domain.Context, resumeID, jobID string, outcomes []workerOutcome) {
	for _, o := range outcomes {
		if o.err != nil {
			continue
		}
		_, err := s.Results.Append(ctx, domain.WorkerResult{
			ForkID:           o.forkID,
			Kind:             o.kind,
			ResumeID:         resumeID,
			JobID:            jobID,
			Score:            o.score,
			ProcessingTimeMS: o.duration.Milliseconds(),
			Detail:           o.detail,
		})
		if err != nil {
			slog.Error("worker result append failed",
				slog.String("fork_id", o.forkID),
				slog.String("kind", string(o.kind)),
				slog.Any("error", err))
		}
	}
}

// fuse folds the worker outcomes into the composite record. Failed workers
// contribute zero and are excluded from agents_completed.
func fuse(resumeID, jobID, profileTag string, weights scorer.Weights, outcomes []workerOutcome, elapsed time.Duration) domain.CompositeScore {
	c := domain.CompositeScore{
		ResumeID:          resumeID,
		JobID:             jobID,
		ProfileTag:        profileTag,
		TotalProcessingMS: elapsed.Milliseconds(),
		CreatedAt:         time.Now().UTC(),
	}
	var composite float64
	for _, o := range outcomes {
		score := o.score
		if o.err != nil {
			score = 0
			slog.Warn("worker degraded to zero",
				slog.String("resume_id", resumeID),
				slog.String("job_id", jobID),
				slog.String("kind", string(o.kind)),
				slog.Any("error", o.err))
		} else {
			c.AgentsCompleted++
		}
		switch o.kind {
		case domain.DimensionSkill:
			c.Skill = score
		case domain.DimensionSemantic:
			c.Semantic = score
		case domain.DimensionExperience:
			c.Experience = score
		case domain.DimensionEducation:
			c.Education = score
		case domain.DimensionCertification:
			c.Certification = score
		}
		composite += score * weights[o.kind]
	}
	c.Composite = round2(composite)
	return c
}

// persistComposite upserts with a short retry so one transient failure does
// not discard five finished workers.
func (s ScoreService) persistComposite(ctx domain.Context, c domain.CompositeScore) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 100 * time.Millisecond
	op := func() error { return s.Composites.Upsert(ctx, c) }
	if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.WithContext(expo, ctx), 1)); err != nil {
		return fmt.Errorf("op=score: %w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// publish emits the score.completed event. Best effort.
func (s ScoreService) publish(ctx domain.Context, c domain.CompositeScore) {
	if s.Events == nil {
		return
	}
	ev := domain.ScoreCompletedEvent{
		ResumeID:        c.ResumeID,
		JobID:           c.JobID,
		Composite:       c.Composite,
		ProfileTag:      c.ProfileTag,
		AgentsCompleted: c.AgentsCompleted,
		CompletedAt:     time.Now().UTC(),
	}
	if err := s.Events.PublishScoreCompleted(ctx, ev); err != nil {
		slog.Warn("score event publish failed",
			slog.String("resume_id", c.ResumeID),
			slog.String("job_id", c.JobID),
			slog.Any("error", err))
	}
}

func buildResult(c domain.CompositeScore, weights scorer.Weights, outcomes []workerOutcome, persisted bool) ScoreResult {
	res := ScoreResult{
		ResumeID:         c.ResumeID,
		JobID:            c.JobID,
		Composite:        round2(c.Composite / 100),
		ProfileTag:       c.ProfileTag,
		Weights:          weights,
		AgentsCompleted:  c.AgentsCompleted,
		ProcessingTimeMS: c.TotalProcessingMS,
		Persisted:        persisted,
	}
	for _, o := range outcomes {
		dr := DimensionResult{
			Kind:             o.kind,
			Score:            round2(o.score / 100),
			Status:           "completed",
			ProcessingTimeMS: o.duration.Milliseconds(),
			Detail:           o.detail,
		}
		if o.err != nil {
			dr.Status = "failed"
			dr.Score = 0
			dr.Error = o.err.Error()
			dr.Detail = nil
		}
		res.Breakdown = append(res.Breakdown, dr)
	}
	return res
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
