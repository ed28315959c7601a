package deletion

import (
	"context"
	"time"
)

// CompletionResult carries the executor's final tallies into the ledger.
type CompletionResult struct {
	ExecutedAt            time.Time
	DeletedCollections    []string
	StorageObjectsDeleted int
	WarehouseRowsDeleted  int64
	IdentityDeleted       bool
	Verified              bool
	CertificateID         string
}

// Repository defines the interface for deletion ledger persistence.
type Repository interface {
	// Create persists a new request. Returns ErrActiveRequestExists if
	// the user already has an active request; the Postgres
	// implementation enforces this with a partial unique index, closing
	// the check-then-write race.
	Create(ctx context.Context, request *Request) error

	// Get retrieves a request by id.
	Get(ctx context.Context, requestID string) (*Request, error)

	// GetActiveByUser retrieves the user's active request, if any.
	GetActiveByUser(ctx context.Context, userID string) (*Request, error)

	// GetActiveByEmail retrieves the active request matching an email
	// snapshot. Used by the logged-out recovery flow.
	GetActiveByEmail(ctx context.Context, email string) (*Request, error)

	// List retrieves the user's requests, newest first.
	List(ctx context.Context, userID string, limit int) ([]*Request, error)

	// LinkExportJob stores the id of the export job started on the
	// request's behalf.
	LinkExportJob(ctx context.Context, requestID, jobID string) error

	// MarkProcessing transitions pending/scheduled -> processing.
	// Returns ErrInvalidTransition if the request is in any other state.
	MarkProcessing(ctx context.Context, requestID string) error

	// Cancel transitions pending/scheduled -> cancelled. Returns
	// ErrInvalidTransition if the request is in any other state.
	Cancel(ctx context.Context, requestID string, at time.Time) error

	// Complete transitions processing -> completed and stores the
	// executor's tallies.
	Complete(ctx context.Context, requestID string, result CompletionResult) error

	// RecordError stores the executor's last failure on the request.
	RecordError(ctx context.Context, requestID, message string, at time.Time) error

	// CreateCertificate persists a write-once certificate.
	CreateCertificate(ctx context.Context, cert *Certificate) error

	// GetCertificateByRequest retrieves the certificate issued for a
	// request, or ErrCertificateNotFound.
	GetCertificateByRequest(ctx context.Context, requestID string) (*Certificate, error)
}
