package recovery

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacelog/privacy-service/internal/apierr"
	"github.com/pacelog/privacy-service/internal/audit"
	"github.com/pacelog/privacy-service/internal/deletion"
	"github.com/pacelog/privacy-service/internal/mail"
)

// GenericCodeMessage is returned for every code request regardless of
// whether an account or deletion exists, so the endpoint cannot be used
// to probe which emails are registered.
const GenericCodeMessage = "If this email has an account scheduled for deletion, a recovery code has been sent."

// DeletionLedger is the slice of the deletion service the recovery flow
// depends on.
type DeletionLedger interface {
	// ActiveRecoverableByEmail returns the still-recoverable deletion
	// for an email, or deletion.ErrRequestNotFound.
	ActiveRecoverableByEmail(ctx context.Context, email string) (*deletion.Request, error)

	// CancelForRecovery cancels a deletion after a verified recovery.
	CancelForRecovery(ctx context.Context, requestID string) error
}

// Service implements the recovery code flow.
type Service struct {
	repo      Repository
	deletions DeletionLedger
	limiter   Limiter
	mailer    mail.Mailer
	audit     audit.Recorder
	logger    zerolog.Logger
	now       func() time.Time
}

// ServiceConfig holds configuration for the recovery service.
type ServiceConfig struct {
	Repository Repository
	Deletions  DeletionLedger
	Limiter    Limiter
	Mailer     mail.Mailer
	Audit      audit.Recorder
	Logger     zerolog.Logger

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// NewService creates a new recovery service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NopLimiter{}
	}
	mailer := cfg.Mailer
	if mailer == nil {
		mailer = mail.NopMailer{}
	}
	auditor := cfg.Audit
	if auditor == nil {
		auditor = audit.NopRecorder{}
	}
	return &Service{
		repo:      cfg.Repository,
		deletions: cfg.Deletions,
		limiter:   limiter,
		mailer:    mailer,
		audit:     auditor,
		logger:    cfg.Logger.With().Str("component", "recovery_service").Logger(),
		now:       now,
	}
}

// RequestCode issues a recovery code for the email if it has a
// still-recoverable deletion. The response never reveals whether it did.
func (s *Service) RequestCode(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return apierr.InvalidArgument("a valid email address is required")
	}

	allowed, err := s.limiter.Allow(ctx, email)
	if err != nil {
		// The per-code attempt budget still binds, so a limiter outage
		// degrades to allowing the request rather than blocking recovery.
		s.logger.Warn().Err(err).Msg("recovery rate limiter unavailable")
	} else if !allowed {
		// The response stays generic here too: a distinct throttled
		// reply would confirm the email has a pending deletion.
		s.logger.Info().Msg("recovery code request rate limited")
		return nil
	}

	request, err := s.deletions.ActiveRecoverableByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deletion.ErrRequestNotFound) {
			s.logger.Info().Msg("recovery code requested for email without recoverable deletion")
			return nil
		}
		return err
	}

	if err := s.repo.InvalidatePendingByEmail(ctx, email); err != nil {
		return err
	}

	plain, err := GenerateCode()
	if err != nil {
		return err
	}

	now := s.now()
	code := &Code{
		ID:        NewCodeID(),
		Email:     email,
		UserID:    request.UserID,
		RequestID: request.ID,
		CodeHash:  HashCode(plain),
		Status:    StatusPending,
		IssuedAt:  now,
		ExpiresAt: now.Add(CodeTTL),
	}
	if err := s.repo.Create(ctx, code); err != nil {
		return err
	}

	if err := s.mailer.SendRecoveryCode(ctx, email, plain, code.ExpiresAt); err != nil {
		// The response stays generic either way; the code just never
		// reaches the user and expires unused.
		s.logger.Error().Err(err).Str("code_id", code.ID).Msg("failed to deliver recovery code")
	}

	s.record(ctx, audit.Event{
		Type:      audit.EventSecurityEvent,
		UserID:    request.UserID,
		RequestID: request.ID,
		Actor:     "recovery",
		Metadata:  map[string]any{"event": "recovery_code_issued", "code_id": code.ID},
	})

	s.logger.Info().Str("code_id", code.ID).Str("request_id", request.ID).Msg("recovery code issued")
	return nil
}

// VerifyResult is the outcome of a code verification.
type VerifyResult struct {
	Valid             bool
	RemainingAttempts int

	// Request is the deletion the code unlocks. Set only when Valid.
	Request *deletion.Request
}

// VerifyCode checks a code without consuming it, so a client can show
// the user what recovering will cancel before committing.
func (s *Service) VerifyCode(ctx context.Context, email, plain string) (*VerifyResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	result, _, err := s.check(ctx, email, plain)
	return result, err
}

// RecoverAccount redeems a code and cancels the scheduled deletion.
func (s *Service) RecoverAccount(ctx context.Context, email, plain string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	result, code, err := s.check(ctx, email, plain)
	if err != nil {
		return err
	}
	if !result.Valid {
		return apierr.InvalidArgument("invalid or expired recovery code")
	}

	// One-shot consumption: a concurrent redeem of the same code loses
	// here and gets ErrCodeConsumed.
	if err := s.repo.MarkUsed(ctx, code.ID, s.now()); err != nil {
		if errors.Is(err, ErrCodeConsumed) {
			return apierr.FailedPrecondition("recovery code has already been used")
		}
		return err
	}

	if err := s.deletions.CancelForRecovery(ctx, code.RequestID); err != nil {
		return err
	}

	s.record(ctx, audit.Event{
		Type:      audit.EventSecurityEvent,
		UserID:    code.UserID,
		RequestID: code.RequestID,
		Actor:     "recovery",
		Metadata:  map[string]any{"event": "account_recovered_via_code", "code_id": code.ID},
	})

	s.logger.Info().Str("code_id", code.ID).Str("request_id", code.RequestID).Msg("account recovered")
	return nil
}

// check validates a code attempt. Any persistence error fails the check
// closed; attempts are counted before the comparison so a crash cannot
// grant a free retry.
func (s *Service) check(ctx context.Context, email, plain string) (*VerifyResult, *Code, error) {
	invalid := &VerifyResult{Valid: false}

	// Malformed input can never match an issued code, so it is rejected
	// before any lookup and spends none of the code's attempt budget.
	if !ValidCodeFormat(plain) {
		return invalid, nil, nil
	}

	code, err := s.repo.GetPendingByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return invalid, nil, nil
		}
		return nil, nil, err
	}

	now := s.now()
	if code.Expired(now) {
		if err := s.repo.Invalidate(ctx, code.ID); err != nil {
			return nil, nil, err
		}
		return invalid, nil, nil
	}

	attempts, err := s.repo.IncrementAttempts(ctx, code.ID)
	if err != nil {
		return nil, nil, err
	}
	remaining := MaxAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}

	if subtle.ConstantTimeCompare([]byte(code.CodeHash), []byte(HashCode(plain))) != 1 {
		if remaining == 0 {
			if err := s.repo.Invalidate(ctx, code.ID); err != nil {
				return nil, nil, err
			}
			s.record(ctx, audit.Event{
				Type:      audit.EventSecurityEvent,
				UserID:    code.UserID,
				RequestID: code.RequestID,
				Actor:     "recovery",
				Metadata:  map[string]any{"event": "recovery_code_attempts_exhausted", "code_id": code.ID},
			})
		}
		return &VerifyResult{Valid: false, RemainingAttempts: remaining}, nil, nil
	}

	request, err := s.deletions.ActiveRecoverableByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deletion.ErrRequestNotFound) {
			// The deletion slipped past its recovery window after the
			// code was issued.
			return invalid, nil, nil
		}
		return nil, nil, err
	}

	return &VerifyResult{Valid: true, RemainingAttempts: remaining, Request: request}, code, nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	event.ID = audit.NewEventID()
	event.OccurredAt = s.now()
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to record audit event")
	}
}
