package deletion

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository for
// testing and local development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	requests map[string]*Request
	certs    map[string]*Certificate // keyed by request id
}

// NewInMemoryRepository creates a new in-memory deletion repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		requests: make(map[string]*Request),
		certs:    make(map[string]*Certificate),
	}
}

// Create persists a new request, enforcing the one-active-per-user rule.
func (r *InMemoryRepository) Create(_ context.Context, request *Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.requests {
		if existing.UserID == request.UserID && existing.Active() {
			return ErrActiveRequestExists
		}
	}

	clone := *request
	r.requests[request.ID] = &clone
	return nil
}

// Get retrieves a request by id.
func (r *InMemoryRepository) Get(_ context.Context, requestID string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, ok := r.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	clone := *request
	return &clone, nil
}

// GetActiveByUser retrieves the user's active request, if any.
func (r *InMemoryRepository) GetActiveByUser(_ context.Context, userID string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, request := range r.requests {
		if request.UserID == userID && request.Active() {
			clone := *request
			return &clone, nil
		}
	}
	return nil, ErrRequestNotFound
}

// GetActiveByEmail retrieves the active request matching an email snapshot.
func (r *InMemoryRepository) GetActiveByEmail(_ context.Context, email string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, request := range r.requests {
		if request.Email == email && request.Active() {
			clone := *request
			return &clone, nil
		}
	}
	return nil, ErrRequestNotFound
}

// List retrieves the user's requests, newest first.
func (r *InMemoryRepository) List(_ context.Context, userID string, limit int) ([]*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var requests []*Request
	for _, request := range r.requests {
		if request.UserID == userID {
			clone := *request
			requests = append(requests, &clone)
		}
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].RequestedAt.After(requests[j].RequestedAt)
	})
	if limit > 0 && len(requests) > limit {
		requests = requests[:limit]
	}
	return requests, nil
}

// LinkExportJob stores the id of the export job started for the request.
func (r *InMemoryRepository) LinkExportJob(_ context.Context, requestID, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	request.ExportJobID = &jobID
	return nil
}

// MarkProcessing transitions pending/scheduled -> processing.
func (r *InMemoryRepository) MarkProcessing(_ context.Context, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	if request.Status != StatusPending && request.Status != StatusScheduled {
		return ErrInvalidTransition
	}
	request.Status = StatusProcessing
	return nil
}

// Cancel transitions pending/scheduled -> cancelled.
func (r *InMemoryRepository) Cancel(_ context.Context, requestID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	if request.Status != StatusPending && request.Status != StatusScheduled {
		return ErrInvalidTransition
	}
	request.Status = StatusCancelled
	request.CancelledAt = &at
	return nil
}

// Complete transitions processing -> completed.
func (r *InMemoryRepository) Complete(_ context.Context, requestID string, result CompletionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	if request.Status != StatusProcessing {
		return ErrInvalidTransition
	}

	executedAt := result.ExecutedAt
	verified := result.Verified
	certID := result.CertificateID

	request.Status = StatusCompleted
	request.ExecutedAt = &executedAt
	request.DeletedCollections = result.DeletedCollections
	request.DeletionVerified = &verified
	request.CertificateID = &certID
	return nil
}

// RecordError stores the executor's last failure on the request.
func (r *InMemoryRepository) RecordError(_ context.Context, requestID, message string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	request.Error = &message
	request.LastErrorAt = &at
	return nil
}

// CreateCertificate persists a write-once certificate.
func (r *InMemoryRepository) CreateCertificate(_ context.Context, cert *Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *cert
	r.certs[cert.RequestID] = &clone
	return nil
}

// GetCertificateByRequest retrieves the certificate issued for a request.
func (r *InMemoryRepository) GetCertificateByRequest(_ context.Context, requestID string) (*Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cert, ok := r.certs[requestID]
	if !ok {
		return nil, ErrCertificateNotFound
	}
	clone := *cert
	return &clone, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
