package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler enqueues and settles durable tasks. It is the only component
// that writes retry bookkeeping; handlers just return errors.
type Scheduler struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		repo:   cfg.Repository,
		logger: cfg.Logger.With().Str("component", "task_scheduler").Logger(),
		now:    now,
	}
}

// ScheduleDeletion enqueues a deletion execution at runAt.
func (s *Scheduler) ScheduleDeletion(ctx context.Context, requestID string, runAt time.Time) error {
	return s.schedule(ctx, KindDeletionExecute, requestID, runAt)
}

// ScheduleExport enqueues an export run at runAt.
func (s *Scheduler) ScheduleExport(ctx context.Context, jobID string, runAt time.Time) error {
	return s.schedule(ctx, KindExportRun, jobID, runAt)
}

// CancelDeletion cancels the pending execution task for a request.
// Best-effort: the executor re-checks ledger state anyway.
func (s *Scheduler) CancelDeletion(ctx context.Context, requestID string) error {
	return s.repo.CancelByResource(ctx, KindDeletionExecute, requestID)
}

func (s *Scheduler) schedule(ctx context.Context, kind Kind, resourceID string, runAt time.Time) error {
	now := s.now()
	task := &Task{
		ID:            NewTaskID(),
		Kind:          kind,
		ResourceID:    resourceID,
		RunAt:         runAt,
		Attempts:      0,
		MaxAttempts:   MaxAttempts,
		NextAttemptAt: runAt,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("kind", string(kind)).
		Str("resource_id", resourceID).
		Time("run_at", runAt).
		Msg("task scheduled")
	return nil
}

// Settle records the outcome of a task attempt. A nil err completes the
// task; otherwise the attempt counter advances and the task backs off,
// dying once the attempt budget is spent.
func (s *Scheduler) Settle(ctx context.Context, task *Task, err error) error {
	if err == nil {
		return s.repo.Complete(ctx, task.ID)
	}

	attempts := task.Attempts + 1
	dead := attempts >= task.MaxAttempts
	next := s.now().Add(Backoff(attempts))

	if dead {
		s.logger.Error().
			Str("task_id", task.ID).
			Str("kind", string(task.Kind)).
			Str("resource_id", task.ResourceID).
			Int("attempts", attempts).
			Err(err).
			Msg("task exhausted attempt budget")
	} else {
		s.logger.Warn().
			Str("task_id", task.ID).
			Int("attempts", attempts).
			Time("next_attempt_at", next).
			Err(err).
			Msg("task attempt failed")
	}

	return s.repo.Fail(ctx, task.ID, attempts, next, err.Error(), dead)
}

// Defer reschedules a task to runAt without consuming an attempt. Used
// when the handler reports the work is not yet due.
func (s *Scheduler) Defer(ctx context.Context, task *Task, runAt time.Time) error {
	s.logger.Info().
		Str("task_id", task.ID).
		Time("run_at", runAt).
		Msg("task deferred, not yet due")
	return s.repo.Reschedule(ctx, task.ID, runAt)
}

// ClaimDue claims up to limit due tasks on behalf of the worker.
func (s *Scheduler) ClaimDue(ctx context.Context, limit int) ([]*Task, error) {
	return s.repo.ClaimDue(ctx, s.now(), limit)
}
