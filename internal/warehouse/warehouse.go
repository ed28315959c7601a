// Package warehouse erases and verifies a user's rows in the analytics
// warehouse. Warehouse rows never carry raw user ids; they are keyed by a
// pseudonymized identifier, so erasure and verification both target that
// key.
package warehouse

import "context"

// Warehouse is the analytics-warehouse surface used by the deletion
// executor.
type Warehouse interface {
	// DeleteRows deletes the rows keyed by the pseudonymized id and
	// returns the number of rows affected.
	DeleteRows(ctx context.Context, pseudonymID string) (int64, error)

	// CountRows counts the rows remaining for the pseudonymized id.
	// Used by the post-deletion verification step.
	CountRows(ctx context.Context, pseudonymID string) (int64, error)
}
