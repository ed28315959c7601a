// Package mail sends the transactional notices of the privacy flows.
// Sends are fire-and-forget from the caller's perspective: a failed email
// never fails the surrounding operation.
package mail

import (
	"context"
	"time"
)

// Mailer sends privacy-flow notices.
type Mailer interface {
	// SendRecoveryCode delivers a recovery code to a logged-out user.
	SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error

	// SendDeletionScheduled confirms a deletion request and its schedule.
	SendDeletionScheduled(ctx context.Context, email string, scheduledAt time.Time, canRecover bool) error

	// SendDeletionCancelled confirms a cancellation or recovery.
	SendDeletionCancelled(ctx context.Context, email string) error
}

// NopMailer discards all mail. Used when no provider is configured.
type NopMailer struct{}

// SendRecoveryCode implements Mailer.
func (NopMailer) SendRecoveryCode(context.Context, string, string, time.Time) error { return nil }

// SendDeletionScheduled implements Mailer.
func (NopMailer) SendDeletionScheduled(context.Context, string, time.Time, bool) error { return nil }

// SendDeletionCancelled implements Mailer.
func (NopMailer) SendDeletionCancelled(context.Context, string) error { return nil }

// Ensure NopMailer implements Mailer.
var _ Mailer = NopMailer{}
