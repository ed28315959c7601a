package deletion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
//
// The one-active-request-per-user invariant is enforced by a partial
// unique index on deletion_requests(user_id) over active statuses, so two
// concurrent creations cannot both slip past an existence check.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL deletion repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const requestColumns = `
	id, user_id, email, type, scope, status, reason,
	requested_at, scheduled_at, executed_at, cancelled_at,
	can_recover, recover_deadline, export_job_id,
	deleted_collections, deletion_verified, certificate_id,
	error, last_error_at
`

// Create persists a new request.
func (r *PostgresRepository) Create(ctx context.Context, request *Request) error {
	query := `
		INSERT INTO deletion_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.pool.Exec(ctx, query,
		request.ID,
		request.UserID,
		request.Email,
		string(request.Type),
		request.Scope,
		string(request.Status),
		request.Reason,
		request.RequestedAt,
		request.ScheduledAt,
		request.ExecutedAt,
		request.CancelledAt,
		request.CanRecover,
		request.RecoverDeadline,
		request.ExportJobID,
		request.DeletedCollections,
		request.DeletionVerified,
		request.CertificateID,
		request.Error,
		request.LastErrorAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveRequestExists
		}
		return err
	}
	return nil
}

// Get retrieves a request by id.
func (r *PostgresRepository) Get(ctx context.Context, requestID string) (*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM deletion_requests WHERE id = $1`
	return r.scanRequest(r.pool.QueryRow(ctx, query, requestID))
}

// GetActiveByUser retrieves the user's active request, if any.
func (r *PostgresRepository) GetActiveByUser(ctx context.Context, userID string) (*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM deletion_requests
		WHERE user_id = $1 AND status IN ('pending', 'scheduled', 'processing')
		ORDER BY requested_at DESC
		LIMIT 1
	`
	return r.scanRequest(r.pool.QueryRow(ctx, query, userID))
}

// GetActiveByEmail retrieves the active request matching an email snapshot.
func (r *PostgresRepository) GetActiveByEmail(ctx context.Context, email string) (*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM deletion_requests
		WHERE email = $1 AND status IN ('pending', 'scheduled', 'processing')
		ORDER BY requested_at DESC
		LIMIT 1
	`
	return r.scanRequest(r.pool.QueryRow(ctx, query, email))
}

// List retrieves the user's requests, newest first.
func (r *PostgresRepository) List(ctx context.Context, userID string, limit int) ([]*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM deletion_requests
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		request, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *PostgresRepository) scanRequest(row pgx.Row) (*Request, error) {
	var request Request
	var reqType, status string

	err := row.Scan(
		&request.ID,
		&request.UserID,
		&request.Email,
		&reqType,
		&request.Scope,
		&status,
		&request.Reason,
		&request.RequestedAt,
		&request.ScheduledAt,
		&request.ExecutedAt,
		&request.CancelledAt,
		&request.CanRecover,
		&request.RecoverDeadline,
		&request.ExportJobID,
		&request.DeletedCollections,
		&request.DeletionVerified,
		&request.CertificateID,
		&request.Error,
		&request.LastErrorAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	request.Type = Type(reqType)
	request.Status = Status(status)
	return &request, nil
}

// LinkExportJob stores the id of the export job started for the request.
func (r *PostgresRepository) LinkExportJob(ctx context.Context, requestID, jobID string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE deletion_requests
		SET export_job_id = $2
		WHERE id = $1
	`, requestID, jobID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// MarkProcessing transitions pending/scheduled -> processing.
func (r *PostgresRepository) MarkProcessing(ctx context.Context, requestID string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE deletion_requests
		SET status = 'processing'
		WHERE id = $1 AND status IN ('pending', 'scheduled')
	`, requestID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return r.transitionError(ctx, requestID)
	}
	return nil
}

// Cancel transitions pending/scheduled -> cancelled.
func (r *PostgresRepository) Cancel(ctx context.Context, requestID string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE deletion_requests
		SET status = 'cancelled', cancelled_at = $2
		WHERE id = $1 AND status IN ('pending', 'scheduled')
	`, requestID, at)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return r.transitionError(ctx, requestID)
	}
	return nil
}

// Complete transitions processing -> completed with the executor tallies.
func (r *PostgresRepository) Complete(ctx context.Context, requestID string, res CompletionResult) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE deletion_requests
		SET status = 'completed',
		    executed_at = $2,
		    deleted_collections = $3,
		    deletion_verified = $4,
		    certificate_id = $5
		WHERE id = $1 AND status = 'processing'
	`, requestID, res.ExecutedAt, res.DeletedCollections, res.Verified, res.CertificateID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return r.transitionError(ctx, requestID)
	}
	return nil
}

// RecordError stores the executor's last failure on the request.
func (r *PostgresRepository) RecordError(ctx context.Context, requestID, message string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deletion_requests
		SET error = $2, last_error_at = $3
		WHERE id = $1
	`, requestID, message, at)
	return err
}

// transitionError distinguishes a missing row from a forbidden transition.
func (r *PostgresRepository) transitionError(ctx context.Context, requestID string) error {
	if _, err := r.Get(ctx, requestID); errors.Is(err, ErrRequestNotFound) {
		return ErrRequestNotFound
	}
	return ErrInvalidTransition
}

// CreateCertificate persists a write-once certificate.
func (r *PostgresRepository) CreateCertificate(ctx context.Context, cert *Certificate) error {
	remaining, err := json.Marshal(cert.RemainingData)
	if err != nil {
		return fmt.Errorf("marshal remaining data: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO deletion_certificates (
			id, request_id, user_id, issued_at,
			deleted_collections, storage_objects_deleted, warehouse_rows_deleted,
			identity_deleted, verified, remaining_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		cert.ID,
		cert.RequestID,
		cert.UserID,
		cert.IssuedAt,
		cert.DeletedCollections,
		cert.StorageObjectsDeleted,
		cert.WarehouseRowsDeleted,
		cert.IdentityDeleted,
		cert.Verified,
		remaining,
	)
	return err
}

// GetCertificateByRequest retrieves the certificate issued for a request.
func (r *PostgresRepository) GetCertificateByRequest(ctx context.Context, requestID string) (*Certificate, error) {
	var cert Certificate
	var remaining []byte

	err := r.pool.QueryRow(ctx, `
		SELECT id, request_id, user_id, issued_at,
		       deleted_collections, storage_objects_deleted, warehouse_rows_deleted,
		       identity_deleted, verified, remaining_data
		FROM deletion_certificates
		WHERE request_id = $1
	`, requestID).Scan(
		&cert.ID,
		&cert.RequestID,
		&cert.UserID,
		&cert.IssuedAt,
		&cert.DeletedCollections,
		&cert.StorageObjectsDeleted,
		&cert.WarehouseRowsDeleted,
		&cert.IdentityDeleted,
		&cert.Verified,
		&remaining,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCertificateNotFound
		}
		return nil, err
	}

	if len(remaining) > 0 {
		if err := json.Unmarshal(remaining, &cert.RemainingData); err != nil {
			return nil, fmt.Errorf("unmarshal remaining data: %w", err)
		}
	}
	return &cert, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
