package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrNoFork          = errors.New("no fork available")
	ErrWorkerFailed    = errors.New("worker failed")
	ErrInvalidScore    = errors.New("invalid score")
	ErrPersistence     = errors.New("persistence failure")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
)

// DimensionKind identifies one of the five scoring dimensions.
type DimensionKind string

// The closed set of scoring dimensions.
const (
	DimensionSkill         DimensionKind = "skill"
	DimensionSemantic      DimensionKind = "semantic"
	DimensionExperience    DimensionKind = "experience"
	DimensionEducation     DimensionKind = "education"
	DimensionCertification DimensionKind = "certification"
)

// Dimensions returns all dimension kinds in canonical order.
func Dimensions() []DimensionKind {
	return []DimensionKind{
		DimensionSkill,
		DimensionSemantic,
		DimensionExperience,
		DimensionEducation,
		DimensionCertification,
	}
}

// Valid reports whether k is a known dimension.
func (k DimensionKind) Valid() bool {
	switch k {
	case DimensionSkill, DimensionSemantic, DimensionExperience, DimensionEducation, DimensionCertification:
		return true
	}
	return false
}

// Resume is the candidate record read from the primary store.
// The core never writes resumes.
type Resume struct {
	ID              string
	Body            string
	Skills          []string
	YearsExperience int
	Education       []string
	Certifications  []string
	Embedding       []float32
	CreatedAt       time.Time
}

// Job is the job-description record read from the primary store.
// The core never writes jobs.
type Job struct {
	ID            string
	Title         string
	Description   string
	RequiredYears int
	Embedding     []float32
	CreatedAt     time.Time
}

// ForkState is the lifecycle state of a fork ledger entry.
type ForkState string

// Fork lifecycle: pending -> active -> (completed | failed), never backwards.
const (
	ForkPending   ForkState = "pending"
	ForkActive    ForkState = "active"
	ForkCompleted ForkState = "completed"
	ForkFailed    ForkState = "failed"
)

// Terminal reports whether the state is final.
func (s ForkState) Terminal() bool { return s == ForkCompleted || s == ForkFailed }

// CanTransitionTo enforces the forward-only state machine.
func (s ForkState) CanTransitionTo(next ForkState) bool {
	switch s {
	case ForkPending:
		return next == ForkActive || next == ForkFailed
	case ForkActive:
		return next == ForkCompleted || next == ForkFailed
	}
	return false
}

// Fork is a provisioned data context plus its ledger record.
type Fork struct {
	ID           string
	Kind         DimensionKind
	ResumeID     string
	JobID        string
	State        ForkState
	Strategy     string
	DataURL      string
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// WorkerResult is one dimension score produced through one fork.
// Rows are append-only, keyed by fork id for audit.
type WorkerResult struct {
	ID               string
	ForkID           string
	Kind             DimensionKind
	ResumeID         string
	JobID            string
	Score            float64 // [0,100]
	ProcessingTimeMS int64
	Detail           map[string]any
	CreatedAt        time.Time
}

// CompositeScore is the fused score for a (resume, job) pair.
// One row per pair; repeated scoring upserts.
type CompositeScore struct {
	ResumeID          string
	JobID             string
	Skill             float64
	Semantic          float64
	Experience        float64
	Education         float64
	Certification     float64
	Composite         float64 // [0,100], two decimals
	AgentsCompleted   int
	TotalProcessingMS int64
	ProfileTag        string
	CreatedAt         time.Time
}

// Dimension returns the stored score for kind on the 0-100 scale.
func (c CompositeScore) Dimension(kind DimensionKind) float64 {
	switch kind {
	case DimensionSkill:
		return c.Skill
	case DimensionSemantic:
		return c.Semantic
	case DimensionExperience:
		return c.Experience
	case DimensionEducation:
		return c.Education
	case DimensionCertification:
		return c.Certification
	}
	return 0
}

// Repositories (ports)

type ResumeRepository interface {
	Get(ctx Context, id string) (Resume, error)
}

type JobRepository interface {
	Get(ctx Context, id string) (Job, error)
}

// ForkLedger records fork lifecycle transitions. Implementations must keep
// transitions forward-only per ForkState.CanTransitionTo.
type ForkLedger interface {
	Create(ctx Context, f Fork) error
	MarkActive(ctx Context, forkID, strategy, dataURL string, at time.Time) error
	MarkTerminal(ctx Context, forkID string, state ForkState, errMsg string, at time.Time) error
	Get(ctx Context, forkID string) (Fork, error)
	DeleteTerminalBefore(ctx Context, cutoff time.Time) (int64, error)
}

type WorkerResultRepository interface {
	Append(ctx Context, r WorkerResult) (string, error)
}

type CompositeRepository interface {
	Upsert(ctx Context, c CompositeScore) error
	Get(ctx Context, resumeID, jobID string) (CompositeScore, error)
}

// ForkManager provisions isolated data contexts for workers (port).

type ForkManager interface {
	// Acquire creates a ledger entry and provisions a data context for kind.
	// Blocks FIFO while the active-fork cap is saturated.
	Acquire(ctx Context, kind DimensionKind, resumeID, jobID string) (Fork, error)
	// Release transitions active -> completed|failed. Idempotent.
	Release(ctx Context, forkID string, outcome ForkState, errMsg string) error
}

// DataContext is one worker's session against a fork's data_url.
// Workers open exactly one, ping it, read, and close on all exit paths.
type DataContext interface {
	Ping(ctx Context) error
	GetResume(ctx Context, id string) (Resume, error)
	GetJob(ctx Context, id string) (Job, error)
	Close(ctx Context) error
}

// DataContextOpener opens a session against an opaque data_url.
type DataContextOpener interface {
	Open(ctx Context, dataURL string) (DataContext, error)
}

// ScoreCompletedEvent is published after a composite is persisted.
type ScoreCompletedEvent struct {
	ResumeID        string
	JobID           string
	Composite       float64 // [0,100]
	ProfileTag      string
	AgentsCompleted int
	CompletedAt     time.Time
}

// EventPublisher (port); publishing is best-effort.
type EventPublisher interface {
	PublishScoreCompleted(ctx Context, ev ScoreCompletedEvent) error
}

// Context is an alias to allow decoupling from std context in domain.
// Adapters and usecases pass context.Context through.
type Context = context.Context
