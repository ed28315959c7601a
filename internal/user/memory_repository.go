package user

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	data     map[string]map[Category][]map[string]any
}

// NewInMemoryRepository creates a new in-memory user repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		profiles: make(map[string]*Profile),
		data:     make(map[string]map[Category][]map[string]any),
	}
}

// AddProfile seeds a profile.
func (r *InMemoryRepository) AddProfile(p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *p
	r.profiles[p.ID] = &cpy
}

// AddRows seeds rows in a data category.
func (r *InMemoryRepository) AddRows(userID string, category Category, rows ...map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.data[userID] == nil {
		r.data[userID] = make(map[Category][]map[string]any)
	}
	r.data[userID][category] = append(r.data[userID][category], rows...)
}

// Get retrieves a profile by user ID.
func (r *InMemoryRepository) Get(_ context.Context, userID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cpy := *p
	return &cpy, nil
}

// GetByEmail retrieves a profile by email.
func (r *InMemoryRepository) GetByEmail(_ context.Context, email string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.Email == email {
			cpy := *p
			return &cpy, nil
		}
	}
	return nil, ErrUserNotFound
}

// SetDeletionScheduled flags the profile as having an active deletion request.
func (r *InMemoryRepository) SetDeletionScheduled(_ context.Context, userID, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return ErrUserNotFound
	}
	p.DeletionScheduled = true
	p.DeletionRequestID = &requestID
	p.UpdatedAt = time.Now()
	return nil
}

// ClearDeletionScheduled clears the deletion flag.
func (r *InMemoryRepository) ClearDeletionScheduled(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return ErrUserNotFound
	}
	p.DeletionScheduled = false
	p.DeletionRequestID = nil
	p.UpdatedAt = time.Now()
	return nil
}

// EraseCategory deletes the user's rows in the given category.
func (r *InMemoryRepository) EraseCategory(_ context.Context, userID string, category Category) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.data[userID][category]
	if r.data[userID] != nil {
		delete(r.data[userID], category)
	}
	return int64(len(rows)), nil
}

// CountCategory counts the user's remaining rows in the given category.
func (r *InMemoryRepository) CountCategory(_ context.Context, userID string, category Category) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.data[userID][category])), nil
}

// CollectCategory returns the user's rows in the given category.
func (r *InMemoryRepository) CollectCategory(_ context.Context, userID string, category Category) ([]map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.data[userID][category]
	out := make([]map[string]any, len(rows))
	copy(out, rows)
	return out, nil
}

// AnonymizeProfile strips personal data from the profile row.
func (r *InMemoryRepository) AnonymizeProfile(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return ErrUserNotFound
	}
	p.Email = ""
	p.DisplayName = ""
	p.UpdatedAt = time.Now()
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
