package export

import (
	"context"
	"time"
)

// ReadyResult carries the runner's output into the job record.
type ReadyResult struct {
	CompletedAt  time.Time
	StorageKey   string
	DownloadURL  string
	URLExpiresAt time.Time
	SizeBytes    int64
}

// Repository defines the interface for export job persistence.
type Repository interface {
	// Create persists a new job. Returns ErrActiveJobExists if the user
	// already has a pending or processing job.
	Create(ctx context.Context, job *Job) error

	// Get retrieves a job by id.
	Get(ctx context.Context, jobID string) (*Job, error)

	// GetActiveByUser retrieves the user's active job, if any.
	GetActiveByUser(ctx context.Context, userID string) (*Job, error)

	// List retrieves the user's jobs, newest first.
	List(ctx context.Context, userID string, limit int) ([]*Job, error)

	// MarkProcessing transitions a job to processing.
	MarkProcessing(ctx context.Context, jobID string) error

	// MarkReady records the finished archive and its download link.
	MarkReady(ctx context.Context, jobID string, result ReadyResult) error

	// MarkFailed records a terminal failure.
	MarkFailed(ctx context.Context, jobID, reason string, at time.Time) error
}
