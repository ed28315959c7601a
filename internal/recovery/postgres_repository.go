package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL recovery repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists a new code.
func (r *PostgresRepository) Create(ctx context.Context, code *Code) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO recovery_codes (
			id, email, user_id, request_id, code_hash,
			status, attempts, issued_at, expires_at, used_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		code.ID,
		code.Email,
		code.UserID,
		code.RequestID,
		code.CodeHash,
		string(code.Status),
		code.Attempts,
		code.IssuedAt,
		code.ExpiresAt,
		code.UsedAt,
	)
	return err
}

// GetPendingByEmail retrieves the newest pending code for an email.
func (r *PostgresRepository) GetPendingByEmail(ctx context.Context, email string) (*Code, error) {
	var code Code
	var status string

	err := r.pool.QueryRow(ctx, `
		SELECT id, email, user_id, request_id, code_hash,
		       status, attempts, issued_at, expires_at, used_at
		FROM recovery_codes
		WHERE email = $1 AND status = 'pending'
		ORDER BY issued_at DESC
		LIMIT 1
	`, email).Scan(
		&code.ID,
		&code.Email,
		&code.UserID,
		&code.RequestID,
		&code.CodeHash,
		&status,
		&code.Attempts,
		&code.IssuedAt,
		&code.ExpiresAt,
		&code.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	code.Status = Status(status)
	return &code, nil
}

// IncrementAttempts advances the attempt counter.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, codeID string) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE recovery_codes
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`, codeID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCodeNotFound
		}
		return 0, err
	}
	return attempts, nil
}

// MarkUsed consumes a pending code.
func (r *PostgresRepository) MarkUsed(ctx context.Context, codeID string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE recovery_codes
		SET status = 'used', used_at = $2
		WHERE id = $1 AND status = 'pending'
	`, codeID, at)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrCodeConsumed
	}
	return nil
}

// Invalidate marks a pending code invalidated.
func (r *PostgresRepository) Invalidate(ctx context.Context, codeID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE recovery_codes
		SET status = 'invalidated'
		WHERE id = $1 AND status = 'pending'
	`, codeID)
	return err
}

// InvalidatePendingByEmail invalidates every pending code for an email.
func (r *PostgresRepository) InvalidatePendingByEmail(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE recovery_codes
		SET status = 'invalidated'
		WHERE email = $1 AND status = 'pending'
	`, email)
	return err
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
