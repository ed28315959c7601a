package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// ResendMailer sends notices via the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
	logger zerolog.Logger
}

// NewResendMailer creates a new Resend mailer.
func NewResendMailer(apiKey, from string, logger zerolog.Logger) *ResendMailer {
	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger.With().Str("component", "mailer").Logger(),
	}
}

// SendRecoveryCode delivers a recovery code to a logged-out user.
func (m *ResendMailer) SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	html := fmt.Sprintf(
		"<p>Your PaceLog account recovery code is:</p><h2>%s</h2>"+
			"<p>Enter it in the app to cancel the scheduled deletion of your account. "+
			"The code expires at %s.</p>"+
			"<p>If you did not request this code, you can ignore this email.</p>",
		code, expiresAt.UTC().Format(time.RFC1123),
	)
	return m.send(ctx, email, "Your PaceLog recovery code", html)
}

// SendDeletionScheduled confirms a deletion request and its schedule.
func (m *ResendMailer) SendDeletionScheduled(ctx context.Context, email string, scheduledAt time.Time, canRecover bool) error {
	html := fmt.Sprintf(
		"<p>Your PaceLog account is scheduled for deletion on %s.</p>",
		scheduledAt.UTC().Format(time.RFC1123),
	)
	if canRecover {
		html += "<p>You can cancel from the app settings, or request a recovery code from the sign-in screen, until one hour before the scheduled time.</p>"
	} else {
		html += "<p>This deletion cannot be cancelled.</p>"
	}
	return m.send(ctx, email, "Your PaceLog account deletion is scheduled", html)
}

// SendDeletionCancelled confirms a cancellation or recovery.
func (m *ResendMailer) SendDeletionCancelled(ctx context.Context, email string) error {
	html := "<p>The scheduled deletion of your PaceLog account has been cancelled. Your data is unchanged.</p>"
	return m.send(ctx, email, "Your PaceLog account deletion was cancelled", html)
}

func (m *ResendMailer) send(ctx context.Context, to, subject, html string) error {
	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}

	m.logger.Debug().Str("message_id", sent.Id).Str("subject", subject).Msg("email sent")
	return nil
}

// Ensure ResendMailer implements Mailer.
var _ Mailer = (*ResendMailer)(nil)
