package export

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository. A
// partial unique index on export_jobs(user_id) over active statuses
// keeps concurrent starts down to one job.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL export repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const jobColumns = `
	id, user_id, status, format, requested_at, completed_at,
	storage_key, download_url, url_expires_at, size_bytes, failure_reason
`

// Create persists a new job.
func (r *PostgresRepository) Create(ctx context.Context, job *Job) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO export_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		job.ID,
		job.UserID,
		string(job.Status),
		job.Format,
		job.RequestedAt,
		job.CompletedAt,
		job.StorageKey,
		job.DownloadURL,
		job.URLExpiresAt,
		job.SizeBytes,
		job.FailureReason,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveJobExists
		}
		return err
	}
	return nil
}

// Get retrieves a job by id.
func (r *PostgresRepository) Get(ctx context.Context, jobID string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM export_jobs WHERE id = $1`
	return r.scanJob(r.pool.QueryRow(ctx, query, jobID))
}

// GetActiveByUser retrieves the user's active job, if any.
func (r *PostgresRepository) GetActiveByUser(ctx context.Context, userID string) (*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM export_jobs
		WHERE user_id = $1 AND status IN ('pending', 'processing')
		ORDER BY requested_at DESC
		LIMIT 1
	`
	return r.scanJob(r.pool.QueryRow(ctx, query, userID))
}

// List retrieves the user's jobs, newest first.
func (r *PostgresRepository) List(ctx context.Context, userID string, limit int) ([]*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM export_jobs
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *PostgresRepository) scanJob(row pgx.Row) (*Job, error) {
	var job Job
	var status string

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&status,
		&job.Format,
		&job.RequestedAt,
		&job.CompletedAt,
		&job.StorageKey,
		&job.DownloadURL,
		&job.URLExpiresAt,
		&job.SizeBytes,
		&job.FailureReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	job.Status = Status(status)
	return &job, nil
}

// MarkProcessing transitions a job to processing.
func (r *PostgresRepository) MarkProcessing(ctx context.Context, jobID string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE export_jobs
		SET status = 'processing'
		WHERE id = $1 AND status IN ('pending', 'processing', 'failed')
	`, jobID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkReady records the finished archive and its download link.
func (r *PostgresRepository) MarkReady(ctx context.Context, jobID string, res ReadyResult) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE export_jobs
		SET status = 'ready',
		    completed_at = $2,
		    storage_key = $3,
		    download_url = $4,
		    url_expires_at = $5,
		    size_bytes = $6,
		    failure_reason = NULL
		WHERE id = $1
	`, jobID, res.CompletedAt, res.StorageKey, res.DownloadURL, res.URLExpiresAt, res.SizeBytes)
	return err
}

// MarkFailed records a terminal failure.
func (r *PostgresRepository) MarkFailed(ctx context.Context, jobID, reason string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE export_jobs
		SET status = 'failed', failure_reason = $2, completed_at = $3
		WHERE id = $1
	`, jobID, reason, at)
	return err
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
