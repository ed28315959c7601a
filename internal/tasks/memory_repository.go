package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

// NewInMemoryRepository creates a new in-memory task repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{tasks: make(map[string]*Task)}
}

// Create persists a new task.
func (r *InMemoryRepository) Create(_ context.Context, task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *task
	r.tasks[task.ID] = &cpy
	return nil
}

// ClaimDue claims up to limit due tasks.
func (r *InMemoryRepository) ClaimDue(_ context.Context, now time.Time, limit int) ([]*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*Task
	for _, t := range r.tasks {
		if t.Status == StatusPending && !t.NextAttemptAt.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*Task, 0, len(due))
	for _, t := range due {
		t.NextAttemptAt = now.Add(ClaimLease)
		t.UpdatedAt = now
		cpy := *t
		out = append(out, &cpy)
	}
	return out, nil
}

// Complete marks a task completed.
func (r *InMemoryRepository) Complete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	t.Status = StatusCompleted
	t.UpdatedAt = time.Now()
	return nil
}

// Fail records a failed attempt.
func (r *InMemoryRepository) Fail(_ context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string, dead bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	t.Attempts = attempts
	t.NextAttemptAt = nextAttemptAt
	t.LastError = &lastError
	if dead {
		t.Status = StatusDead
	}
	t.UpdatedAt = time.Now()
	return nil
}

// Reschedule moves a task's due time without consuming an attempt.
func (r *InMemoryRepository) Reschedule(_ context.Context, id string, runAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status != StatusPending {
		return ErrTaskNotFound
	}
	t.RunAt = runAt
	t.NextAttemptAt = runAt
	t.UpdatedAt = time.Now()
	return nil
}

// CancelByResource cancels pending tasks for a resource.
func (r *InMemoryRepository) CancelByResource(_ context.Context, kind Kind, resourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tasks {
		if t.Kind == kind && t.ResourceID == resourceID && t.Status == StatusPending {
			t.Status = StatusCancelled
			t.UpdatedAt = time.Now()
		}
	}
	return nil
}

// Get returns a task by id. Test helper.
func (r *InMemoryRepository) Get(id string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, false
	}
	cpy := *t
	return &cpy, true
}

// ByResource returns the tasks for a resource. Test helper.
func (r *InMemoryRepository) ByResource(kind Kind, resourceID string) []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Task
	for _, t := range r.tasks {
		if t.Kind == kind && t.ResourceID == resourceID {
			cpy := *t
			out = append(out, &cpy)
		}
	}
	return out
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
