package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// ForkSweeper deletes terminal fork ledger entries past their retention.
// It runs off the hot path; worker results are never touched.
type ForkSweeper struct {
	Ledger    domain.ForkLedger
	Retention time.Duration
}

// NewForkSweeper creates a sweeper over the ledger.
func NewForkSweeper(ledger domain.ForkLedger, retention time.Duration) *ForkSweeper {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &ForkSweeper{Ledger: ledger, Retention: retention}
}

// Sweep removes terminal forks older than the retention window.
func (s *ForkSweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.Retention)
	deleted, err := s.Ledger.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		slog.Error("fork sweep failed", slog.Any("error", err))
		return err
	}
	if deleted > 0 {
		slog.Info("fork sweep completed",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
	return nil
}

// RunPeriodic sweeps on the given cadence until ctx is cancelled.
func (s *ForkSweeper) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("fork sweeper stopping")
			return
		case <-ticker.C:
			_ = s.Sweep(ctx)
		}
	}
}
