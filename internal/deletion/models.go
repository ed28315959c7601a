// Package deletion implements the account-deletion ledger: the
// authoritative record of each deletion lifecycle, the API-facing state
// machine, and the scheduled executor that performs the multi-system
// erasure.
package deletion

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies a deletion request.
type Type string

// Deletion types.
const (
	// TypeSoft is a full deletion after a 30-day grace period, during
	// which the user can cancel or recover.
	TypeSoft Type = "soft"

	// TypeHard is a full deletion after a 1-hour floor, not recoverable.
	TypeHard Type = "hard"

	// TypePartial erases a subset of data categories, not recoverable.
	TypePartial Type = "partial"
)

// Status is the lifecycle state of a deletion request.
type Status string

// Deletion request statuses. The machine is
// pending/scheduled -> processing -> completed, with cancelled reachable
// from pending and scheduled only.
const (
	StatusPending    Status = "pending"
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ScopeAll marks a request that erases every data category plus the
// profile and auth account.
const ScopeAll = "all"

// Schedule constants.
const (
	// SoftDeletionDelay is the grace period before a soft deletion runs.
	SoftDeletionDelay = 30 * 24 * time.Hour

	// HardDeletionDelay is the floor before a hard deletion runs.
	HardDeletionDelay = time.Hour

	// RecoverWindow is subtracted from the scheduled time to form the
	// recovery deadline of a soft deletion.
	RecoverWindow = time.Hour
)

// Predefined deletion errors.
var (
	ErrRequestNotFound     = errors.New("deletion request not found")
	ErrActiveRequestExists = errors.New("an active deletion request already exists")
	ErrInvalidTransition   = errors.New("invalid deletion status transition")
	ErrCertificateNotFound = errors.New("deletion certificate not found")
)

// Request is one deletion lifecycle attempt. Rows are never deleted; they
// remain as the audit trail after completion or cancellation.
type Request struct {
	ID     string
	UserID string

	// Email is snapshotted at creation so the logged-out recovery flow
	// can find the request without touching the identity provider.
	Email string

	Type   Type
	Scope  []string
	Status Status
	Reason string

	RequestedAt time.Time

	// ScheduledAt is fixed at creation and never mutated afterwards.
	ScheduledAt time.Time

	ExecutedAt  *time.Time
	CancelledAt *time.Time

	CanRecover      bool
	RecoverDeadline *time.Time

	ExportJobID *string

	// Executor bookkeeping.
	DeletedCollections []string
	DeletionVerified   *bool
	CertificateID      *string
	Error              *string
	LastErrorAt        *time.Time
}

// Active reports whether the request still occupies the per-user
// active-request slot.
func (r *Request) Active() bool {
	switch r.Status {
	case StatusPending, StatusScheduled, StatusProcessing:
		return true
	default:
		return false
	}
}

// Cancellable reports whether the request can still be cancelled at now.
func (r *Request) Cancellable(now time.Time) bool {
	if r.Status != StatusPending && r.Status != StatusScheduled {
		return false
	}
	if !r.CanRecover || r.RecoverDeadline == nil {
		return false
	}
	return !now.After(*r.RecoverDeadline)
}

// ScopeIncludes reports whether the request's scope covers the category.
func (r *Request) ScopeIncludes(category string) bool {
	for _, s := range r.Scope {
		if s == ScopeAll || s == category {
			return true
		}
	}
	return false
}

// NewRequestID derives the request id from the user and request time, so
// retried creations for the same instant stay stable.
func NewRequestID(userID string, requestedAt time.Time) string {
	return fmt.Sprintf("del_%s_%d", userID, requestedAt.UnixMilli())
}

// Certificate is the write-once record attesting what a completed
// deletion removed and whether verification passed.
type Certificate struct {
	ID        string
	RequestID string
	UserID    string
	IssuedAt  time.Time

	DeletedCollections    []string
	StorageObjectsDeleted int
	WarehouseRowsDeleted  int64
	IdentityDeleted       bool

	Verified      bool
	RemainingData map[string]int64
}

// NewCertificateID generates a certificate id.
func NewCertificateID() string {
	return "cert_" + uuid.New().String()[:22]
}
