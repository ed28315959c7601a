package recovery

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu    sync.Mutex
	codes map[string]*Code
}

// NewInMemoryRepository creates a new in-memory recovery repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{codes: make(map[string]*Code)}
}

// Create persists a new code.
func (r *InMemoryRepository) Create(_ context.Context, code *Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *code
	r.codes[code.ID] = &clone
	return nil
}

// GetPendingByEmail retrieves the newest pending code for an email.
func (r *InMemoryRepository) GetPendingByEmail(_ context.Context, email string) (*Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newest *Code
	for _, code := range r.codes {
		if code.Email != email || code.Status != StatusPending {
			continue
		}
		if newest == nil || code.IssuedAt.After(newest.IssuedAt) {
			newest = code
		}
	}
	if newest == nil {
		return nil, ErrCodeNotFound
	}
	clone := *newest
	return &clone, nil
}

// IncrementAttempts advances the attempt counter.
func (r *InMemoryRepository) IncrementAttempts(_ context.Context, codeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[codeID]
	if !ok {
		return 0, ErrCodeNotFound
	}
	code.Attempts++
	return code.Attempts, nil
}

// MarkUsed consumes a pending code.
func (r *InMemoryRepository) MarkUsed(_ context.Context, codeID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[codeID]
	if !ok {
		return ErrCodeNotFound
	}
	if code.Status != StatusPending {
		return ErrCodeConsumed
	}
	code.Status = StatusUsed
	code.UsedAt = &at
	return nil
}

// Invalidate marks a pending code invalidated.
func (r *InMemoryRepository) Invalidate(_ context.Context, codeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[codeID]
	if !ok {
		return ErrCodeNotFound
	}
	if code.Status == StatusPending {
		code.Status = StatusInvalidated
	}
	return nil
}

// InvalidatePendingByEmail invalidates every pending code for an email.
func (r *InMemoryRepository) InvalidatePendingByEmail(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, code := range r.codes {
		if code.Email == email && code.Status == StatusPending {
			code.Status = StatusInvalidated
		}
	}
	return nil
}

// Get returns a code by id. Test helper.
func (r *InMemoryRepository) Get(codeID string) (*Code, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[codeID]
	if !ok {
		return nil, false
	}
	clone := *code
	return &clone, true
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
