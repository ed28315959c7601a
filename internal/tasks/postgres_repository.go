package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL task repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists a new task.
func (r *PostgresRepository) Create(ctx context.Context, task *Task) error {
	query := `
		INSERT INTO deletion_tasks (
			id, kind, resource_id, run_at, attempts, max_attempts,
			next_attempt_at, status, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		task.ID,
		string(task.Kind),
		task.ResourceID,
		task.RunAt,
		task.Attempts,
		task.MaxAttempts,
		task.NextAttemptAt,
		string(task.Status),
		task.LastError,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

// ClaimDue claims up to limit due tasks using SKIP LOCKED so concurrent
// workers never claim the same row. The claim extends next_attempt_at by
// ClaimLease; a worker that dies mid-task simply loses its lease.
func (r *PostgresRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Task, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		SELECT id, kind, resource_id, run_at, attempts, max_attempts,
		       next_attempt_at, status, last_error, created_at, updated_at
		FROM deletion_tasks
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select due tasks: %w", err)
	}

	var claimed []*Task
	for rows.Next() {
		var t Task
		var kind, status string
		if err := rows.Scan(
			&t.ID, &kind, &t.ResourceID, &t.RunAt, &t.Attempts, &t.MaxAttempts,
			&t.NextAttemptAt, &status, &t.LastError, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, err
		}
		t.Kind = Kind(kind)
		t.Status = Status(status)
		claimed = append(claimed, &t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lease := now.Add(ClaimLease)
	for _, t := range claimed {
		if _, err := tx.Exec(ctx,
			`UPDATE deletion_tasks SET next_attempt_at = $2, updated_at = $3 WHERE id = $1`,
			t.ID, lease, now,
		); err != nil {
			return nil, fmt.Errorf("lease task %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return claimed, nil
}

// Complete marks a task completed.
func (r *PostgresRepository) Complete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE deletion_tasks SET status = 'completed', updated_at = $2 WHERE id = $1`,
		id, time.Now(),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Fail records a failed attempt.
func (r *PostgresRepository) Fail(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string, dead bool) error {
	status := StatusPending
	if dead {
		status = StatusDead
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE deletion_tasks
		SET attempts = $2, next_attempt_at = $3, last_error = $4, status = $5, updated_at = $6
		WHERE id = $1
	`, id, attempts, nextAttemptAt, lastError, string(status), time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Reschedule moves a task's due time without consuming an attempt.
func (r *PostgresRepository) Reschedule(ctx context.Context, id string, runAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE deletion_tasks
		SET run_at = $2, next_attempt_at = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, runAt, time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// CancelByResource cancels pending tasks for a resource.
func (r *PostgresRepository) CancelByResource(ctx context.Context, kind Kind, resourceID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deletion_tasks
		SET status = 'cancelled', updated_at = $3
		WHERE kind = $1 AND resource_id = $2 AND status = 'pending'
	`, string(kind), resourceID, time.Now())
	return err
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
