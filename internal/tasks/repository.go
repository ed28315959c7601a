package tasks

import (
	"context"
	"time"
)

// Repository defines the interface for durable task persistence.
type Repository interface {
	// Create persists a new task.
	Create(ctx context.Context, task *Task) error

	// ClaimDue claims up to limit pending tasks whose next attempt is
	// due, making them invisible to other workers for ClaimLease.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Task, error)

	// Complete marks a task completed.
	Complete(ctx context.Context, id string) error

	// Fail records a failed attempt. When dead is true the task is
	// retired; otherwise it becomes claimable again at nextAttemptAt.
	Fail(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string, dead bool) error

	// Reschedule moves a task's due time without consuming an attempt.
	// Used when a handler reports the work is not yet due.
	Reschedule(ctx context.Context, id string, runAt time.Time) error

	// CancelByResource cancels pending tasks of the given kind for a
	// resource. Best-effort: the handler also re-checks resource state.
	CancelByResource(ctx context.Context, kind Kind, resourceID string) error
}
