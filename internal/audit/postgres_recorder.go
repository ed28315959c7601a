package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder is a PostgreSQL implementation of Recorder.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder creates a new PostgreSQL audit recorder.
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool}
}

// Record appends an event to the audit log.
func (r *PostgresRecorder) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = NewEventID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	var metadata []byte
	if event.Metadata != nil {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (id, event_type, user_id, request_id, actor, occurred_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		string(event.Type),
		event.UserID,
		event.RequestID,
		event.Actor,
		event.OccurredAt,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Ensure PostgresRecorder implements Recorder.
var _ Recorder = (*PostgresRecorder)(nil)
