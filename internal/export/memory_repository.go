package export

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewInMemoryRepository creates a new in-memory export repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{jobs: make(map[string]*Job)}
}

// Create persists a new job, enforcing the one-active-per-user rule.
func (r *InMemoryRepository) Create(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.jobs {
		if existing.UserID == job.UserID && existing.Active() {
			return ErrActiveJobExists
		}
	}

	clone := *job
	r.jobs[job.ID] = &clone
	return nil
}

// Get retrieves a job by id.
func (r *InMemoryRepository) Get(_ context.Context, jobID string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	clone := *job
	return &clone, nil
}

// GetActiveByUser retrieves the user's active job, if any.
func (r *InMemoryRepository) GetActiveByUser(_ context.Context, userID string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.UserID == userID && job.Active() {
			clone := *job
			return &clone, nil
		}
	}
	return nil, ErrJobNotFound
}

// List retrieves the user's jobs, newest first.
func (r *InMemoryRepository) List(_ context.Context, userID string, limit int) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var jobs []*Job
	for _, job := range r.jobs {
		if job.UserID == userID {
			clone := *job
			jobs = append(jobs, &clone)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].RequestedAt.After(jobs[j].RequestedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// MarkProcessing transitions a job to processing.
func (r *InMemoryRepository) MarkProcessing(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = StatusProcessing
	return nil
}

// MarkReady records the finished archive and its download link.
func (r *InMemoryRepository) MarkReady(_ context.Context, jobID string, result ReadyResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}

	completedAt := result.CompletedAt
	url := result.DownloadURL
	expires := result.URLExpiresAt

	job.Status = StatusReady
	job.CompletedAt = &completedAt
	job.StorageKey = result.StorageKey
	job.DownloadURL = &url
	job.URLExpiresAt = &expires
	job.SizeBytes = result.SizeBytes
	job.FailureReason = nil
	return nil
}

// MarkFailed records a terminal failure.
func (r *InMemoryRepository) MarkFailed(_ context.Context, jobID, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = StatusFailed
	job.FailureReason = &reason
	job.CompletedAt = &at
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
