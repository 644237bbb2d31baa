package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-scorer/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

type ledgerStub struct {
	deleted   int64
	deleteErr error
	cutoffs   []time.Time
}

func (l *ledgerStub) Create(domain.Context, domain.Fork) error { return nil }
func (l *ledgerStub) MarkActive(domain.Context, string, string, string, time.Time) error {
	return nil
}
func (l *ledgerStub) MarkTerminal(domain.Context, string, domain.ForkState, string, time.Time) error {
	return nil
}
func (l *ledgerStub) Get(domain.Context, string) (domain.Fork, error) { return domain.Fork{}, nil }
func (l *ledgerStub) DeleteTerminalBefore(_ domain.Context, cutoff time.Time) (int64, error) {
	l.cutoffs = append(l.cutoffs, cutoff)
	return l.deleted, l.deleteErr
}

func TestForkSweeper_Sweep(t *testing.T) {
	t.Parallel()
	ledger := &ledgerStub{deleted: 3}
	sweeper := postgres.NewForkSweeper(ledger, 24*time.Hour)

	err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, ledger.cutoffs, 1)

	// Cutoff sits one retention window in the past.
	want := time.Now().UTC().Add(-24 * time.Hour)
	assert.WithinDuration(t, want, ledger.cutoffs[0], 5*time.Second)
}

func TestForkSweeper_SweepError(t *testing.T) {
	t.Parallel()
	ledger := &ledgerStub{deleteErr: assert.AnError}
	sweeper := postgres.NewForkSweeper(ledger, time.Hour)

	err := sweeper.Sweep(context.Background())
	assert.Error(t, err)
}

func TestForkSweeper_DefaultRetention(t *testing.T) {
	t.Parallel()
	sweeper := postgres.NewForkSweeper(&ledgerStub{}, 0)
	assert.Equal(t, 24*time.Hour, sweeper.Retention)
}

func TestForkSweeper_RunPeriodicStopsOnCancel(t *testing.T) {
	t.Parallel()
	ledger := &ledgerStub{}
	sweeper := postgres.NewForkSweeper(ledger, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.RunPeriodic(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	assert.NotEmpty(t, ledger.cutoffs)
}
