// Package worker drains the durable task queue: it claims due tasks and
// dispatches them to the deletion executor and the export runner.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacelog/privacy-service/internal/deletion"
	"github.com/pacelog/privacy-service/internal/tasks"
)

// DeletionExecutor runs one deletion execution.
type DeletionExecutor interface {
	Execute(ctx context.Context, requestID string) error
}

// ExportRunner produces one export archive.
type ExportRunner interface {
	Run(ctx context.Context, jobID string) error
}

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	Scheduler *tasks.Scheduler
	Deletions DeletionExecutor
	Exports   ExportRunner
	Logger    zerolog.Logger

	// Interval between sweeps. Default: 30s.
	Interval time.Duration

	// BatchSize is the maximum number of tasks claimed per sweep.
	// Default: 10.
	BatchSize int
}

// Sweeper claims due tasks and runs them.
type Sweeper struct {
	scheduler *tasks.Scheduler
	deletions DeletionExecutor
	exports   ExportRunner
	logger    zerolog.Logger
	interval  time.Duration
	batchSize int
}

// NewSweeper creates a new sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Sweeper{
		scheduler: cfg.Scheduler,
		deletions: cfg.Deletions,
		exports:   cfg.Exports,
		logger:    cfg.Logger.With().Str("component", "task_sweeper").Logger(),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("interval", s.interval).
		Int("batch_size", s.batchSize).
		Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Sweep claims one batch of due tasks and runs each to a settled outcome.
// It returns the number of tasks processed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	claimed, err := s.scheduler.ClaimDue(ctx, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim due tasks: %w", err)
	}

	for _, task := range claimed {
		s.runTask(ctx, task)
	}
	return len(claimed), nil
}

// runTask dispatches a task and records its outcome. A not-yet-due
// deletion is deferred without consuming an attempt; everything else
// settles through the scheduler's retry bookkeeping.
func (s *Sweeper) runTask(ctx context.Context, task *tasks.Task) {
	logger := s.logger.With().
		Str("task_id", task.ID).
		Str("kind", string(task.Kind)).
		Str("resource_id", task.ResourceID).
		Logger()

	var err error
	switch task.Kind {
	case tasks.KindDeletionExecute:
		err = s.deletions.Execute(ctx, task.ResourceID)

		var notDue *deletion.NotDueError
		if errors.As(err, &notDue) {
			if deferErr := s.scheduler.Defer(ctx, task, notDue.DueAt); deferErr != nil {
				logger.Error().Err(deferErr).Msg("failed to defer task")
			}
			return
		}
	case tasks.KindExportRun:
		err = s.exports.Run(ctx, task.ResourceID)
	default:
		err = fmt.Errorf("unknown task kind %q", task.Kind)
	}

	if settleErr := s.scheduler.Settle(ctx, task, err); settleErr != nil {
		logger.Error().Err(settleErr).Msg("failed to settle task")
		return
	}
	if err != nil {
		logger.Warn().Err(err).Msg("task attempt failed")
		return
	}
	logger.Info().Msg("task completed")
}
