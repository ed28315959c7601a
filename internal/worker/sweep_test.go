package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacelog/privacy-service/internal/deletion"
	"github.com/pacelog/privacy-service/internal/tasks"
)

type fakeExecutor struct {
	executed []string
	err      error
}

func (f *fakeExecutor) Execute(_ context.Context, requestID string) error {
	f.executed = append(f.executed, requestID)
	return f.err
}

type fakeRunner struct {
	ran []string
	err error
}

func (f *fakeRunner) Run(_ context.Context, jobID string) error {
	f.ran = append(f.ran, jobID)
	return f.err
}

type sweepFixture struct {
	repo      *tasks.InMemoryRepository
	scheduler *tasks.Scheduler
	executor  *fakeExecutor
	runner    *fakeRunner
	sweeper   *Sweeper
	now       time.Time
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()

	f := &sweepFixture{
		repo:     tasks.NewInMemoryRepository(),
		executor: &fakeExecutor{},
		runner:   &fakeRunner{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := zerolog.New(io.Discard)
	f.scheduler = tasks.NewScheduler(tasks.SchedulerConfig{
		Repository: f.repo,
		Logger:     logger,
		Now:        func() time.Time { return f.now },
	})
	f.sweeper = NewSweeper(SweeperConfig{
		Scheduler: f.scheduler,
		Deletions: f.executor,
		Exports:   f.runner,
		Logger:    logger,
	})
	return f
}

func (f *sweepFixture) task(kind tasks.Kind, resourceID string) *tasks.Task {
	found := f.repo.ByResource(kind, resourceID)
	if len(found) != 1 {
		return nil
	}
	return found[0]
}

func TestSweepRunsDueDeletionTask(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	require.NoError(t, f.scheduler.ScheduleDeletion(ctx, "del_user-1_1", f.now))

	processed, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, []string{"del_user-1_1"}, f.executor.executed)

	task := f.task(tasks.KindDeletionExecute, "del_user-1_1")
	require.NotNil(t, task)
	assert.Equal(t, tasks.StatusCompleted, task.Status)
}

func TestSweepRunsDueExportTask(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	require.NoError(t, f.scheduler.ScheduleExport(ctx, "exp_abc", f.now))

	processed, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, []string{"exp_abc"}, f.runner.ran)

	task := f.task(tasks.KindExportRun, "exp_abc")
	require.NotNil(t, task)
	assert.Equal(t, tasks.StatusCompleted, task.Status)
}

func TestSweepSkipsFutureTasks(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	require.NoError(t, f.scheduler.ScheduleDeletion(ctx, "del_user-1_1", f.now.Add(time.Hour)))

	processed, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Empty(t, f.executor.executed)
}

func TestSweepDefersNotYetDueDeletion(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	// The executor re-checks the ledger's scheduled time and can report a
	// later due time than the task row carries.
	dueAt := f.now.Add(2 * time.Hour)
	f.executor.err = &deletion.NotDueError{DueAt: dueAt}

	require.NoError(t, f.scheduler.ScheduleDeletion(ctx, "del_user-1_1", f.now))

	processed, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	task := f.task(tasks.KindDeletionExecute, "del_user-1_1")
	require.NotNil(t, task)
	assert.Equal(t, tasks.StatusPending, task.Status)
	assert.Equal(t, dueAt, task.NextAttemptAt)
	// A deferral never consumes an attempt
	assert.Zero(t, task.Attempts)
}

func TestSweepRetriesFailedTask(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	f.executor.err = errors.New("identity service unavailable")
	require.NoError(t, f.scheduler.ScheduleDeletion(ctx, "del_user-1_1", f.now))

	_, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)

	task := f.task(tasks.KindDeletionExecute, "del_user-1_1")
	require.NotNil(t, task)
	assert.Equal(t, tasks.StatusPending, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.Equal(t, f.now.Add(tasks.BaseBackoff), task.NextAttemptAt)
	require.NotNil(t, task.LastError)
	assert.Contains(t, *task.LastError, "unavailable")
}

func TestSweepDeadLettersAfterAttemptBudget(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	f.executor.err = errors.New("permanent failure")
	require.NoError(t, f.scheduler.ScheduleDeletion(ctx, "del_user-1_1", f.now))

	for i := 0; i < tasks.MaxAttempts; i++ {
		task := f.task(tasks.KindDeletionExecute, "del_user-1_1")
		require.NotNil(t, task)
		// Jump past the backoff so the task is claimable again
		f.now = task.NextAttemptAt.Add(time.Second)

		_, err := f.sweeper.Sweep(ctx)
		require.NoError(t, err)
	}

	task := f.task(tasks.KindDeletionExecute, "del_user-1_1")
	require.NotNil(t, task)
	assert.Equal(t, tasks.StatusDead, task.Status)
	assert.Equal(t, tasks.MaxAttempts, task.Attempts)
	assert.Len(t, f.executor.executed, tasks.MaxAttempts)
}

func TestSweepRespectsBatchSize(t *testing.T) {
	f := newSweepFixture(t)
	f.sweeper = NewSweeper(SweeperConfig{
		Scheduler: f.scheduler,
		Deletions: f.executor,
		Exports:   f.runner,
		Logger:    zerolog.New(io.Discard),
		BatchSize: 2,
	})
	ctx := context.Background()

	require.NoError(t, f.scheduler.ScheduleDeletion(ctx, "del_a", f.now))
	require.NoError(t, f.scheduler.ScheduleDeletion(ctx, "del_b", f.now))
	require.NoError(t, f.scheduler.ScheduleDeletion(ctx, "del_c", f.now))

	processed, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newSweepFixture(t)
	f.sweeper = NewSweeper(SweeperConfig{
		Scheduler: f.scheduler,
		Deletions: f.executor,
		Exports:   f.runner,
		Logger:    zerolog.New(io.Discard),
		Interval:  time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
