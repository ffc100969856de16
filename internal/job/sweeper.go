package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/genjobs/internal/events"
	"github.com/phrazzld/genjobs/internal/store"
)

// SweeperConfig controls recovery and retention sweeps.
type SweeperConfig struct {
	// StaleAge is how long a pending job may go without progress before its
	// work item is published again.
	StaleAge time.Duration

	// Interval is the time between sweeps.
	Interval time.Duration

	// BatchSize caps the number of jobs republished per sweep.
	BatchSize int

	// Retention is how long terminal results are kept. Zero disables pruning.
	Retention time.Duration
}

// OrphanPruner removes checkpoints left behind by pruned jobs.
type OrphanPruner interface {
	DeleteOrphans(ctx context.Context) (int64, error)
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	Republished int
	Pruned      int64
}

// Sweeper republishes pending jobs that stopped making progress, which
// recovers work lost to crashes or failed publishes, and prunes old
// terminal results.
type Sweeper struct {
	results store.ResultStore
	emitter events.EventEmitter
	orphans OrphanPruner
	config  SweeperConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewSweeper creates a new Sweeper. orphans may be nil.
func NewSweeper(
	results store.ResultStore,
	emitter events.EventEmitter,
	orphans OrphanPruner,
	config SweeperConfig,
	logger *slog.Logger,
) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.StaleAge <= 0 {
		config.StaleAge = 30 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Sweeper{
		results: results,
		emitter: emitter,
		orphans: orphans,
		config:  config,
		logger:  logger.With(slog.String("component", "sweeper")),
		now:     time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sweep failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep performs one recovery and retention pass.
func (s *Sweeper) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := s.now().UTC()

	stale, err := s.results.ListPending(ctx, now.Add(-s.config.StaleAge), s.config.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("list stale jobs: %w", err)
	}

	for _, job := range stale {
		if err := s.emitter.EmitEvent(ctx, events.NewJobEvent(job)); err != nil {
			s.logger.Warn("failed to republish stale job",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		stats.Republished++
	}

	if s.config.Retention > 0 {
		pruned, err := s.results.DeleteTerminalBefore(ctx, now.Add(-s.config.Retention))
		if err != nil {
			return stats, fmt.Errorf("prune terminal jobs: %w", err)
		}
		stats.Pruned = pruned

		if s.orphans != nil && pruned > 0 {
			if _, err := s.orphans.DeleteOrphans(ctx); err != nil {
				s.logger.Warn("failed to prune orphaned checkpoints", slog.String("error", err.Error()))
			}
		}
	}

	if stats.Republished > 0 || stats.Pruned > 0 {
		s.logger.Info("sweep finished",
			slog.Int("republished", stats.Republished),
			slog.Int64("pruned", stats.Pruned))
	}
	return stats, nil
}
