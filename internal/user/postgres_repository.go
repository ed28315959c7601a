package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// categoryTables maps data categories onto their tables. Queries are built
// only from this fixed map, never from caller input.
var categoryTables = map[Category]string{
	CategorySessions:      "training_sessions",
	CategoryConsents:      "consents",
	CategorySettings:      "user_settings",
	CategorySubscriptions: "subscriptions",
}

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL user repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a profile by user ID.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*Profile, error) {
	query := `
		SELECT id, email, display_name, deletion_scheduled, deletion_request_id, created_at, updated_at
		FROM user_profiles
		WHERE id = $1
	`
	return r.scanProfile(ctx, query, userID)
}

// GetByEmail retrieves a profile by email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	query := `
		SELECT id, email, display_name, deletion_scheduled, deletion_request_id, created_at, updated_at
		FROM user_profiles
		WHERE email = $1
	`
	return r.scanProfile(ctx, query, email)
}

func (r *PostgresRepository) scanProfile(ctx context.Context, query string, args ...interface{}) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.Email,
		&p.DisplayName,
		&p.DeletionScheduled,
		&p.DeletionRequestID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SetDeletionScheduled flags the profile as having an active deletion request.
func (r *PostgresRepository) SetDeletionScheduled(ctx context.Context, userID, requestID string) error {
	query := `
		UPDATE user_profiles
		SET deletion_scheduled = TRUE, deletion_request_id = $2, updated_at = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, userID, requestID, time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ClearDeletionScheduled clears the deletion flag.
func (r *PostgresRepository) ClearDeletionScheduled(ctx context.Context, userID string) error {
	query := `
		UPDATE user_profiles
		SET deletion_scheduled = FALSE, deletion_request_id = NULL, updated_at = $2
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, userID, time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// EraseCategory deletes the user's rows in the given category.
func (r *PostgresRepository) EraseCategory(ctx context.Context, userID string, category Category) (int64, error) {
	table, ok := categoryTables[category]
	if !ok {
		return 0, fmt.Errorf("unknown data category %q", category)
	}

	result, err := r.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", table), userID)
	if err != nil {
		return 0, fmt.Errorf("erase %s: %w", category, err)
	}
	return result.RowsAffected(), nil
}

// CountCategory counts the user's remaining rows in the given category.
func (r *PostgresRepository) CountCategory(ctx context.Context, userID string, category Category) (int64, error) {
	table, ok := categoryTables[category]
	if !ok {
		return 0, fmt.Errorf("unknown data category %q", category)
	}

	var count int64
	err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE user_id = $1", table), userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", category, err)
	}
	return count, nil
}

// CollectCategory returns the user's rows in the given category as
// JSON-ready documents.
func (r *PostgresRepository) CollectCategory(ctx context.Context, userID string, category Category) ([]map[string]any, error) {
	table, ok := categoryTables[category]
	if !ok {
		return nil, fmt.Errorf("unknown data category %q", category)
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s WHERE user_id = $1", table), userID)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", category, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var docs []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		doc := make(map[string]any, len(fields))
		for i, f := range fields {
			doc[f.Name] = values[i]
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// AnonymizeProfile strips personal data from the profile row.
func (r *PostgresRepository) AnonymizeProfile(ctx context.Context, userID string) error {
	query := `
		UPDATE user_profiles
		SET email = '', display_name = '', updated_at = $2
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, userID, time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
