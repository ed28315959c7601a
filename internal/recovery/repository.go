package recovery

import (
	"context"
	"time"
)

// Repository defines the interface for recovery code persistence.
type Repository interface {
	// Create persists a new code.
	Create(ctx context.Context, code *Code) error

	// GetPendingByEmail retrieves the newest pending code for an email,
	// or ErrCodeNotFound.
	GetPendingByEmail(ctx context.Context, email string) (*Code, error)

	// IncrementAttempts advances the attempt counter and returns the new
	// value.
	IncrementAttempts(ctx context.Context, codeID string) (int, error)

	// MarkUsed consumes a pending code. Returns ErrCodeConsumed if the
	// code is no longer pending, making consumption one-shot even under
	// concurrent redeem attempts.
	MarkUsed(ctx context.Context, codeID string, at time.Time) error

	// Invalidate marks a pending code invalidated.
	Invalidate(ctx context.Context, codeID string) error

	// InvalidatePendingByEmail invalidates every pending code for an
	// email. Issuing a new code retires its predecessors.
	InvalidatePendingByEmail(ctx context.Context, email string) error
}
