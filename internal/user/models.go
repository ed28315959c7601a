// Package user holds the user profile projection and the per-category data
// stores the deletion and export pipelines operate on. Profile CRUD itself
// lives in the platform's account service; this service only reads
// profiles, maintains the deletion-scheduled flag, and erases rows.
package user

import (
	"errors"
	"time"
)

// Predefined user errors.
var (
	ErrUserNotFound = errors.New("user not found")
)

// Category identifies one erasable/exportable data category.
type Category string

// Data categories. These mirror the scope values accepted by the
// deletion API.
const (
	CategorySessions      Category = "sessions"
	CategoryConsents      Category = "consents"
	CategorySettings      Category = "settings"
	CategorySubscriptions Category = "subscriptions"
)

// Categories lists every erasable category in erasure order.
func Categories() []Category {
	return []Category{CategorySessions, CategoryConsents, CategorySettings, CategorySubscriptions}
}

// ValidCategory reports whether s names a known data category.
func ValidCategory(s string) bool {
	switch Category(s) {
	case CategorySessions, CategoryConsents, CategorySettings, CategorySubscriptions:
		return true
	default:
		return false
	}
}

// Profile is the user profile row as this service sees it.
type Profile struct {
	ID          string
	Email       string
	DisplayName string

	// DeletionScheduled is a derived projection of the deletion ledger:
	// true while an active deletion request exists. Other services read
	// it to restrict writes for users being deleted.
	DeletionScheduled bool
	DeletionRequestID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
