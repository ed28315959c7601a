package user

import "context"

// Repository defines the profile and data-category persistence surface
// used by the deletion and export pipelines.
type Repository interface {
	// Get retrieves a profile by user ID.
	// Returns ErrUserNotFound if no profile exists.
	Get(ctx context.Context, userID string) (*Profile, error)

	// GetByEmail retrieves a profile by email.
	GetByEmail(ctx context.Context, email string) (*Profile, error)

	// SetDeletionScheduled flags the profile as having an active deletion
	// request. The flag is a projection of the deletion ledger, never a
	// source of truth on its own.
	SetDeletionScheduled(ctx context.Context, userID, requestID string) error

	// ClearDeletionScheduled clears the deletion flag.
	ClearDeletionScheduled(ctx context.Context, userID string) error

	// EraseCategory deletes the user's rows in the given category and
	// returns the number of rows removed.
	EraseCategory(ctx context.Context, userID string, category Category) (int64, error)

	// CountCategory counts the user's remaining rows in the given
	// category. Used by the post-deletion verification step.
	CountCategory(ctx context.Context, userID string, category Category) (int64, error)

	// CollectCategory returns the user's rows in the given category as
	// JSON-ready documents. Used by the export runner.
	CollectCategory(ctx context.Context, userID string, category Category) ([]map[string]any, error)

	// AnonymizeProfile strips personal data from the profile row while
	// keeping the row itself, so ledger entries stay resolvable.
	AnonymizeProfile(ctx context.Context, userID string) error
}
