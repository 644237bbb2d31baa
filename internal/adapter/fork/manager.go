package fork

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-scorer/internal/adapter/observability"
	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// Provisioning strategies, tried in order. Branch strategies need the
// branching API; the logical strategy always applies as the last resort.
const (
	StrategyZeroCopy = "branch_zero_copy"
	StrategyClone    = "branch_clone"
	StrategyLogical  = "logical"
)

// DefaultMaxActive caps the number of concurrently active forks.
const DefaultMaxActive = 10

// Manager implements domain.ForkManager. Each Acquire creates a ledger entry,
// provisions a data context by the first strategy that works, and holds one
// slot of the active cap until Release. Waiters are served strictly FIFO.
type Manager struct {
	ledger     domain.ForkLedger
	opener     domain.DataContextOpener
	branch     *BranchClient
	primaryDSN string

	mu      sync.Mutex
	cap     int
	inUse   int
	waiters []chan struct{}
	active  map[string]string
}

// NewManager constructs a Manager. branch may be nil when no branching API is
// configured; provisioning then falls through to the logical strategy.
func NewManager(ledger domain.ForkLedger, opener domain.DataContextOpener, branch *BranchClient, primaryDSN string, maxActive int) *Manager {
	if maxActive <= 0 {
		maxActive = DefaultMaxActive
	}
	return &Manager{
		ledger:     ledger,
		opener:     opener,
		branch:     branch,
		primaryDSN: primaryDSN,
		cap:        maxActive,
		active:     make(map[string]string),
	}
}

func newForkID(kind domain.DimensionKind) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("fork_%s_%d_%s", kind, time.Now().UnixMilli(), suffix)
}

// Acquire creates a pending ledger entry, provisions a data context, and
// marks the fork active. Blocks while the active cap is saturated; waiting
// callers are admitted in arrival order. When every strategy fails the fork
// is marked failed and ErrNoFork is returned.
func (m *Manager) Acquire(ctx domain.Context, kind domain.DimensionKind, resumeID, jobID string) (domain.Fork, error) {
	tracer := otel.Tracer("fork.manager")
	ctx, span := tracer.Start(ctx, "fork.Acquire")
	defer span.End()

	if !kind.Valid() {
		return domain.Fork{}, fmt.Errorf("op=fork.acquire: %w: unknown kind %q", domain.ErrInvalidArgument, kind)
	}
	if err := m.acquireSlot(ctx); err != nil {
		return domain.Fork{}, fmt.Errorf("op=fork.acquire: %w", err)
	}

	forkID := newForkID(kind)
	f := domain.Fork{
		ID:        forkID,
		Kind:      kind,
		ResumeID:  resumeID,
		JobID:     jobID,
		State:     domain.ForkPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.ledger.Create(ctx, f); err != nil {
		m.freeSlot()
		return domain.Fork{}, fmt.Errorf("op=fork.acquire: %w", err)
	}

	strategy, dataURL, provErr := m.provision(ctx, forkID)
	if provErr != nil {
		now := time.Now().UTC()
		if termErr := m.ledger.MarkTerminal(ctx, forkID, domain.ForkFailed, provErr.Error(), now); termErr != nil {
			slog.Error("fork ledger mark failed errored", slog.String("fork_id", forkID), slog.Any("error", termErr))
		}
		observability.ForkProvisionFailuresTotal.Inc()
		m.freeSlot()
		return domain.Fork{}, fmt.Errorf("op=fork.acquire fork_id=%s: %w: %v", forkID, domain.ErrNoFork, provErr)
	}

	started := time.Now().UTC()
	if err := m.ledger.MarkActive(ctx, forkID, strategy, dataURL, started); err != nil {
		if m.branch != nil && strategy != StrategyLogical {
			m.branch.Drop(ctx, forkID)
		}
		m.freeSlot()
		return domain.Fork{}, fmt.Errorf("op=fork.acquire: %w", err)
	}

	m.mu.Lock()
	m.active[forkID] = strategy
	m.mu.Unlock()
	observability.ForkProvisioned(strategy)

	f.State = domain.ForkActive
	f.Strategy = strategy
	f.DataURL = dataURL
	f.StartedAt = &started
	slog.Debug("fork acquired",
		slog.String("fork_id", forkID),
		slog.String("kind", string(kind)),
		slog.String("strategy", strategy))
	return f, nil
}

// provision tries each strategy in order and verifies the candidate data_url
// with an open and ping before accepting it.
func (m *Manager) provision(ctx domain.Context, forkID string) (string, string, error) {
	var lastErr error
	for _, strategy := range []string{StrategyZeroCopy, StrategyClone, StrategyLogical} {
		dataURL, err := m.provisionOne(ctx, strategy, forkID)
		if err != nil {
			lastErr = err
			slog.Warn("fork provisioning strategy failed",
				slog.String("fork_id", forkID),
				slog.String("strategy", strategy),
				slog.Any("error", err))
			continue
		}
		if err := m.verify(ctx, dataURL); err != nil {
			lastErr = err
			slog.Warn("fork data context verification failed",
				slog.String("fork_id", forkID),
				slog.String("strategy", strategy),
				slog.Any("error", err))
			if m.branch != nil && strategy != StrategyLogical {
				m.branch.Drop(ctx, forkID)
			}
			continue
		}
		return strategy, dataURL, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no provisioning strategy available")
	}
	return "", "", lastErr
}

func (m *Manager) provisionOne(ctx domain.Context, strategy, forkID string) (string, error) {
	switch strategy {
	case StrategyZeroCopy:
		if m.branch == nil {
			return "", fmt.Errorf("branching api not configured")
		}
		return m.branch.CreateZeroCopy(ctx, forkID)
	case StrategyClone:
		if m.branch == nil {
			return "", fmt.Errorf("branching api not configured")
		}
		return m.branch.CreateClone(ctx, forkID)
	case StrategyLogical:
		return logicalDataURL(m.primaryDSN, forkID)
	}
	return "", fmt.Errorf("unknown strategy %q", strategy)
}

func (m *Manager) verify(ctx domain.Context, dataURL string) error {
	sess, err := m.opener.Open(ctx, dataURL)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close(ctx) }()
	return sess.Ping(ctx)
}

// logicalDataURL tags the primary DSN with the fork id as application_name so
// the session is attributable even though it shares the primary store.
func logicalDataURL(primaryDSN, forkID string) (string, error) {
	if primaryDSN == "" {
		return "", fmt.Errorf("primary dsn not configured")
	}
	u, err := url.Parse(primaryDSN)
	if err != nil {
		return "", fmt.Errorf("parse primary dsn: %w", err)
	}
	q := u.Query()
	q.Set("application_name", forkID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Release transitions the fork to a terminal state and frees its cap slot.
// Safe to call more than once per fork; only the first call frees the slot.
func (m *Manager) Release(ctx domain.Context, forkID string, outcome domain.ForkState, errMsg string) error {
	tracer := otel.Tracer("fork.manager")
	ctx, span := tracer.Start(ctx, "fork.Release")
	defer span.End()

	if !outcome.Terminal() {
		return fmt.Errorf("op=fork.release: %w: %s is not terminal", domain.ErrInvalidArgument, outcome)
	}
	if err := m.ledger.MarkTerminal(ctx, forkID, outcome, errMsg, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=fork.release: %w", err)
	}

	m.mu.Lock()
	strategy, held := m.active[forkID]
	if held {
		delete(m.active, forkID)
	}
	m.mu.Unlock()
	if !held {
		return nil
	}

	if m.branch != nil && strategy != StrategyLogical {
		m.branch.Drop(ctx, forkID)
	}
	observability.ForkReleased()
	m.freeSlot()
	return nil
}

// ActiveCount reports the number of slots currently held. Used by readiness
// reporting and tests.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inUse
}

func (m *Manager) acquireSlot(ctx domain.Context) error {
	m.mu.Lock()
	if m.inUse < m.cap {
		m.inUse++
		m.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	m.waiters = append(m.waiters, ch)
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		select {
		case <-ch:
			// The slot was handed over while cancelling; pass it on.
			m.freeSlotLocked()
			m.mu.Unlock()
		default:
			m.removeWaiterLocked(ch)
			m.mu.Unlock()
		}
		return ctx.Err()
	}
}

func (m *Manager) freeSlot() {
	m.mu.Lock()
	m.freeSlotLocked()
	m.mu.Unlock()
}

// freeSlotLocked hands the slot to the oldest waiter if any, otherwise
// decrements the in-use count. Caller holds mu.
func (m *Manager) freeSlotLocked() {
	if len(m.waiters) > 0 {
		ch := m.waiters[0]
		m.waiters = m.waiters[1:]
		close(ch)
		return
	}
	m.inUse--
}

func (m *Manager) removeWaiterLocked(ch chan struct{}) {
	for i, w := range m.waiters {
		if w == ch {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}
