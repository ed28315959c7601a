// Package tasks implements the durable task queue that drives scheduled
// work: deletion executions and export runs. Tasks live in Postgres; the
// worker claims due rows with SKIP LOCKED and retries failures with
// exponential backoff until the attempt budget is spent.
package tasks

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the work a task carries.
type Kind string

// Task kinds.
const (
	KindDeletionExecute Kind = "deletion_execute"
	KindExportRun       Kind = "export_run"
)

// Status is the lifecycle state of a task.
type Status string

// Task statuses.
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusDead      Status = "dead"
)

// Retry policy constants.
const (
	// MaxAttempts is the attempt budget before a task is marked dead.
	MaxAttempts = 5

	// BaseBackoff is the backoff after the first failed attempt.
	BaseBackoff = time.Minute

	// MaxBackoff caps the exponential backoff.
	MaxBackoff = time.Hour

	// ClaimLease is how long a claimed task is invisible to other
	// workers before it becomes claimable again.
	ClaimLease = 5 * time.Minute
)

// Predefined task errors.
var (
	ErrTaskNotFound = errors.New("task not found")
)

// Task is one durable unit of scheduled work.
type Task struct {
	ID            string
	Kind          Kind
	ResourceID    string
	RunAt         time.Time
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	Status        Status
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewTaskID generates a task id.
func NewTaskID() string {
	return "task_" + uuid.New().String()[:22]
}

// Backoff returns the retry delay after the given number of failed
// attempts (1-based).
func Backoff(attempts int) time.Duration {
	d := BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}
