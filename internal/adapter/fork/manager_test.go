package fork_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-scorer/internal/adapter/fork"
	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

type ledgerRecorder struct {
	mu        sync.Mutex
	created   []domain.Fork
	activated []string
	terminal  map[string]domain.ForkState
	createErr error
	activeErr error
}

func newLedgerRecorder() *ledgerRecorder {
	return &ledgerRecorder{terminal: make(map[string]domain.ForkState)}
}

func (l *ledgerRecorder) Create(_ domain.Context, f domain.Fork) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return l.createErr
	}
	l.created = append(l.created, f)
	return nil
}

func (l *ledgerRecorder) MarkActive(_ domain.Context, forkID, _, _ string, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.activeErr != nil {
		return l.activeErr
	}
	l.activated = append(l.activated, forkID)
	return nil
}

func (l *ledgerRecorder) MarkTerminal(_ domain.Context, forkID string, state domain.ForkState, _ string, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.terminal[forkID] = state
	return nil
}

func (l *ledgerRecorder) Get(_ domain.Context, forkID string) (domain.Fork, error) {
	return domain.Fork{ID: forkID}, nil
}

func (l *ledgerRecorder) DeleteTerminalBefore(_ domain.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type sessionStub struct{ pingErr error }

func (s *sessionStub) Ping(domain.Context) error { return s.pingErr }
func (s *sessionStub) GetResume(domain.Context, string) (domain.Resume, error) {
	return domain.Resume{}, nil
}
func (s *sessionStub) GetJob(domain.Context, string) (domain.Job, error) {
	return domain.Job{}, nil
}
func (s *sessionStub) Close(domain.Context) error { return nil }

type openerStub struct {
	mu      sync.Mutex
	pingErr error
	opened  []string
}

func (o *openerStub) Open(_ domain.Context, dataURL string) (domain.DataContext, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, dataURL)
	return &sessionStub{pingErr: o.pingErr}, nil
}

const primaryDSN = "postgres://scorer:secret@db:5432/scorer?sslmode=disable"

func TestManager_AcquireLogicalFallback(t *testing.T) {
	t.Parallel()
	ledger := newLedgerRecorder()
	opener := &openerStub{}
	m := fork.NewManager(ledger, opener, nil, primaryDSN, 10)

	f, err := m.Acquire(context.Background(), domain.DimensionSkill, "r-1", "j-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.ID, "fork_skill_"), "fork id %q", f.ID)
	assert.Equal(t, domain.ForkActive, f.State)
	assert.Equal(t, fork.StrategyLogical, f.Strategy)
	assert.Contains(t, f.DataURL, "application_name="+f.ID)
	assert.Equal(t, []string{f.ID}, ledger.activated)
	require.Len(t, ledger.created, 1)
	assert.Equal(t, domain.ForkPending, ledger.created[0].State)
}

func TestManager_AcquireRejectsUnknownKind(t *testing.T) {
	t.Parallel()
	m := fork.NewManager(newLedgerRecorder(), &openerStub{}, nil, primaryDSN, 10)

	_, err := m.Acquire(context.Background(), domain.DimensionKind("bogus"), "r-1", "j-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestManager_AcquirePrefersZeroCopy(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Mode string `json:"mode"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "zero_copy", req.Mode)
		_ = json.NewEncoder(w).Encode(map[string]string{"dsn": "postgres://branch-host/fork"})
	}))
	defer srv.Close()

	ledger := newLedgerRecorder()
	opener := &openerStub{}
	m := fork.NewManager(ledger, opener, fork.NewBranchClient(srv.URL, "tok"), primaryDSN, 10)

	f, err := m.Acquire(context.Background(), domain.DimensionSemantic, "r-1", "j-1")
	require.NoError(t, err)
	assert.Equal(t, fork.StrategyZeroCopy, f.Strategy)
	assert.Equal(t, "postgres://branch-host/fork", f.DataURL)
}

func TestManager_AcquireFallsBackToClone(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Mode string `json:"mode"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Mode == "zero_copy" {
			// Non-retryable so the manager moves to the next strategy.
			w.WriteHeader(http.StatusConflict)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"dsn": "postgres://branch-host/clone"})
	}))
	defer srv.Close()

	m := fork.NewManager(newLedgerRecorder(), &openerStub{}, fork.NewBranchClient(srv.URL, ""), primaryDSN, 10)

	f, err := m.Acquire(context.Background(), domain.DimensionEducation, "r-1", "j-1")
	require.NoError(t, err)
	assert.Equal(t, fork.StrategyClone, f.Strategy)
}

func TestManager_AcquireNoForkWhenAllStrategiesFail(t *testing.T) {
	t.Parallel()
	ledger := newLedgerRecorder()
	opener := &openerStub{pingErr: errors.New("connection refused")}
	m := fork.NewManager(ledger, opener, nil, primaryDSN, 10)

	_, err := m.Acquire(context.Background(), domain.DimensionExperience, "r-1", "j-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoFork)

	// The fork must be marked failed and its slot returned.
	require.Len(t, ledger.created, 1)
	assert.Equal(t, domain.ForkFailed, ledger.terminal[ledger.created[0].ID])
	assert.Equal(t, 0, m.ActiveCount())
}

func TestManager_AcquireNoForkWhenNoStrategyConfigured(t *testing.T) {
	t.Parallel()
	m := fork.NewManager(newLedgerRecorder(), &openerStub{}, nil, "", 10)

	_, err := m.Acquire(context.Background(), domain.DimensionCertification, "r-1", "j-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoFork)
}

func TestManager_ReleaseFreesSlotOnce(t *testing.T) {
	t.Parallel()
	ledger := newLedgerRecorder()
	m := fork.NewManager(ledger, &openerStub{}, nil, primaryDSN, 10)

	f, err := m.Acquire(context.Background(), domain.DimensionSkill, "r-1", "j-1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.ActiveCount())

	require.NoError(t, m.Release(context.Background(), f.ID, domain.ForkCompleted, ""))
	assert.Equal(t, 0, m.ActiveCount())
	assert.Equal(t, domain.ForkCompleted, ledger.terminal[f.ID])

	// Second release is a no-op, not a double free.
	require.NoError(t, m.Release(context.Background(), f.ID, domain.ForkCompleted, ""))
	assert.Equal(t, 0, m.ActiveCount())
}

func TestManager_ReleaseRejectsNonTerminal(t *testing.T) {
	t.Parallel()
	m := fork.NewManager(newLedgerRecorder(), &openerStub{}, nil, primaryDSN, 10)

	err := m.Release(context.Background(), "f-1", domain.ForkActive, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestManager_CapBlocksUntilRelease(t *testing.T) {
	t.Parallel()
	ledger := newLedgerRecorder()
	m := fork.NewManager(ledger, &openerStub{}, nil, primaryDSN, 1)

	first, err := m.Acquire(context.Background(), domain.DimensionSkill, "r-1", "j-1")
	require.NoError(t, err)

	acquired := make(chan domain.Fork, 1)
	go func() {
		f, err := m.Acquire(context.Background(), domain.DimensionSemantic, "r-1", "j-1")
		if err == nil {
			acquired <- f
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while cap is saturated")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, m.Release(context.Background(), first.ID, domain.ForkCompleted, ""))

	select {
	case second := <-acquired:
		require.NoError(t, m.Release(context.Background(), second.ID, domain.ForkCompleted, ""))
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestManager_WaiterHonorsContextCancel(t *testing.T) {
	t.Parallel()
	m := fork.NewManager(newLedgerRecorder(), &openerStub{}, nil, primaryDSN, 1)

	first, err := m.Acquire(context.Background(), domain.DimensionSkill, "r-1", "j-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Acquire(ctx, domain.DimensionSemantic, "r-1", "j-1")
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled waiter did not return")
	}

	// The held slot is unaffected and still releasable.
	require.NoError(t, m.Release(context.Background(), first.ID, domain.ForkCompleted, ""))
	assert.Equal(t, 0, m.ActiveCount())
}

func TestManager_WaitersServedInOrder(t *testing.T) {
	t.Parallel()
	m := fork.NewManager(newLedgerRecorder(), &openerStub{}, nil, primaryDSN, 1)

	first, err := m.Acquire(context.Background(), domain.DimensionSkill, "r-1", "j-1")
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	ready := make(chan struct{}, 3)
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ready <- struct{}{}
			// Stagger so arrival order matches n.
			time.Sleep(time.Duration(n) * 50 * time.Millisecond)
			f, err := m.Acquire(context.Background(), domain.DimensionSemantic, "r-1", "j-1")
			if err != nil {
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			_ = m.Release(context.Background(), f.ID, domain.ForkCompleted, "")
		}(i)
	}
	for i := 0; i < 3; i++ {
		<-ready
	}
	time.Sleep(250 * time.Millisecond)

	require.NoError(t, m.Release(context.Background(), first.ID, domain.ForkCompleted, ""))
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, m.ActiveCount())
}
