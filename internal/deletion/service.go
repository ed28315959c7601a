package deletion

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacelog/privacy-service/internal/apierr"
	"github.com/pacelog/privacy-service/internal/audit"
	"github.com/pacelog/privacy-service/internal/mail"
	"github.com/pacelog/privacy-service/internal/user"
)

// TaskScheduler is the slice of the task queue the service needs.
type TaskScheduler interface {
	ScheduleDeletion(ctx context.Context, requestID string, runAt time.Time) error
	CancelDeletion(ctx context.Context, requestID string) error
}

// ExportStarter starts (or reuses) an export job for a user. Satisfied by
// the export service; kept as a local interface to avoid a package cycle.
type ExportStarter interface {
	StartOrReuse(ctx context.Context, userID string) (jobID string, err error)
}

// Service implements the deletion request lifecycle.
type Service struct {
	repo      Repository
	users     user.Repository
	exports   ExportStarter
	scheduler TaskScheduler
	audit     audit.Recorder
	mailer    mail.Mailer
	logger    zerolog.Logger
	now       func() time.Time
}

// ServiceConfig holds configuration for the deletion service.
type ServiceConfig struct {
	Repository Repository
	Users      user.Repository
	Exports    ExportStarter
	Scheduler  TaskScheduler
	Audit      audit.Recorder
	Mailer     mail.Mailer
	Logger     zerolog.Logger

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// NewService creates a new deletion service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	auditor := cfg.Audit
	if auditor == nil {
		auditor = audit.NopRecorder{}
	}
	mailer := cfg.Mailer
	if mailer == nil {
		mailer = mail.NopMailer{}
	}
	return &Service{
		repo:      cfg.Repository,
		users:     cfg.Users,
		exports:   cfg.Exports,
		scheduler: cfg.Scheduler,
		audit:     auditor,
		mailer:    mailer,
		logger:    cfg.Logger.With().Str("component", "deletion_service").Logger(),
		now:       now,
	}
}

// RequestDeletionParams carries the caller's deletion request.
type RequestDeletionParams struct {
	Type            string
	Scope           []string
	Reason          string
	ExportDataFirst bool
}

// RequestDeletion validates and records a new deletion request, schedules
// its execution, and optionally kicks off a data export first.
func (s *Service) RequestDeletion(ctx context.Context, userID string, params RequestDeletionParams) (*Request, error) {
	requestType, scope, err := normalizeRequest(params)
	if err != nil {
		return nil, err
	}

	profile, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, apierr.NotFound("user not found").WithCause(err)
		}
		return nil, err
	}

	now := s.now()
	request := &Request{
		ID:          NewRequestID(userID, now),
		UserID:      userID,
		Email:       profile.Email,
		Type:        requestType,
		Scope:       scope,
		Status:      StatusScheduled,
		Reason:      params.Reason,
		RequestedAt: now,
	}

	switch requestType {
	case TypeSoft:
		request.ScheduledAt = now.Add(SoftDeletionDelay)
		request.CanRecover = true
		deadline := request.ScheduledAt.Add(-RecoverWindow)
		request.RecoverDeadline = &deadline
	default:
		// Hard and partial deletions run after a short floor and are
		// never recoverable.
		request.ScheduledAt = now.Add(HardDeletionDelay)
		request.CanRecover = false
	}

	if err := s.repo.Create(ctx, request); err != nil {
		if errors.Is(err, ErrActiveRequestExists) {
			return nil, apierr.AlreadyExists("a deletion request is already in progress").WithCause(err)
		}
		return nil, err
	}

	// The export starts only once the ledger row exists, so a rejected
	// duplicate request leaves no job behind.
	if params.ExportDataFirst && s.exports != nil {
		jobID, err := s.exports.StartOrReuse(ctx, userID)
		if err != nil {
			// The export is a courtesy; the deletion proceeds without it.
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("pre-deletion export failed to start")
		} else {
			if err := s.repo.LinkExportJob(ctx, request.ID, jobID); err != nil {
				s.logger.Warn().Err(err).Str("request_id", request.ID).Msg("failed to link export job")
			}
			request.ExportJobID = &jobID
		}
	}

	if err := s.users.SetDeletionScheduled(ctx, userID, request.ID); err != nil {
		s.logger.Warn().Err(err).Str("request_id", request.ID).Msg("failed to flag profile for deletion")
	}

	if err := s.scheduler.ScheduleDeletion(ctx, request.ID, request.ScheduledAt); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Event{
		Type:      audit.EventAccountDeletionRequest,
		UserID:    userID,
		RequestID: request.ID,
		Actor:     userID,
		Metadata: map[string]any{
			"type":         string(requestType),
			"scope":        scope,
			"scheduled_at": request.ScheduledAt,
		},
	})

	s.notify(ctx, func(ctx context.Context) error {
		return s.mailer.SendDeletionScheduled(ctx, request.Email, request.ScheduledAt, request.CanRecover)
	})

	s.logger.Info().
		Str("request_id", request.ID).
		Str("user_id", userID).
		Str("type", string(requestType)).
		Time("scheduled_at", request.ScheduledAt).
		Msg("deletion requested")
	return request, nil
}

func normalizeRequest(params RequestDeletionParams) (Type, []string, error) {
	requestType := Type(params.Type)
	if requestType == "" {
		requestType = TypeSoft
	}

	switch requestType {
	case TypeSoft, TypeHard:
		// Full deletions always cover everything; any provided scope is
		// rejected rather than silently widened.
		if len(params.Scope) > 0 && !(len(params.Scope) == 1 && params.Scope[0] == ScopeAll) {
			return "", nil, apierr.InvalidArgument("scope is only valid for partial deletions")
		}
		return requestType, []string{ScopeAll}, nil
	case TypePartial:
		if len(params.Scope) == 0 {
			return "", nil, apierr.InvalidArgument("partial deletion requires a non-empty scope")
		}
		for _, category := range params.Scope {
			if category == ScopeAll || !user.ValidCategory(category) {
				return "", nil, apierr.Newf(apierr.CodeInvalidArgument, "unknown data category %q", category)
			}
		}
		return requestType, params.Scope, nil
	default:
		return "", nil, apierr.Newf(apierr.CodeInvalidArgument, "unknown deletion type %q", params.Type)
	}
}

// CancelDeletion cancels the caller's deletion request while it is still
// within its recovery window.
func (s *Service) CancelDeletion(ctx context.Context, userID, requestID string) (*Request, error) {
	request, err := s.repo.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, apierr.NotFound("deletion request not found").WithCause(err)
		}
		return nil, err
	}
	if request.UserID != userID {
		return nil, apierr.PermissionDenied("deletion request belongs to another account")
	}

	now := s.now()
	if !request.Cancellable(now) {
		switch {
		case request.Status == StatusCancelled:
			return nil, apierr.FailedPrecondition("deletion request is already cancelled")
		case request.Status == StatusProcessing, request.Status == StatusCompleted:
			return nil, apierr.FailedPrecondition("deletion has already started and can no longer be cancelled")
		case !request.CanRecover:
			return nil, apierr.FailedPrecondition("this deletion type cannot be cancelled")
		default:
			return nil, apierr.FailedPrecondition("the recovery window for this deletion has closed")
		}
	}

	if err := s.cancel(ctx, request, userID, nil); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, requestID)
}

// CancelForRecovery cancels a deletion on behalf of the logged-out
// recovery flow, after the recovery service has verified a code.
func (s *Service) CancelForRecovery(ctx context.Context, requestID string) error {
	request, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if !request.Cancellable(s.now()) {
		return apierr.FailedPrecondition("deletion can no longer be recovered")
	}
	return s.cancel(ctx, request, "recovery", map[string]any{"event": "account_recovered_via_code"})
}

func (s *Service) cancel(ctx context.Context, request *Request, actor string, metadata map[string]any) error {
	if err := s.repo.Cancel(ctx, request.ID, s.now()); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return apierr.FailedPrecondition("deletion has already started and can no longer be cancelled").WithCause(err)
		}
		return err
	}

	if err := s.scheduler.CancelDeletion(ctx, request.ID); err != nil {
		// The executor re-checks ledger state, so a stale task is harmless.
		s.logger.Warn().Err(err).Str("request_id", request.ID).Msg("failed to cancel execution task")
	}

	if err := s.users.ClearDeletionScheduled(ctx, request.UserID); err != nil {
		s.logger.Warn().Err(err).Str("request_id", request.ID).Msg("failed to clear profile deletion flag")
	}

	s.record(ctx, audit.Event{
		Type:      audit.EventAccountDeletionCancel,
		UserID:    request.UserID,
		RequestID: request.ID,
		Actor:     actor,
		Metadata:  metadata,
	})

	email := request.Email
	s.notify(ctx, func(ctx context.Context) error {
		return s.mailer.SendDeletionCancelled(ctx, email)
	})

	s.logger.Info().
		Str("request_id", request.ID).
		Str("user_id", request.UserID).
		Msg("deletion cancelled")
	return nil
}

// GetStatus returns a specific request, or the caller's most recent
// active request when no id is given.
func (s *Service) GetStatus(ctx context.Context, userID, requestID string) (*Request, error) {
	if requestID == "" {
		request, err := s.repo.GetActiveByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrRequestNotFound) {
				return nil, apierr.NotFound("no active deletion request").WithCause(err)
			}
			return nil, err
		}
		return request, nil
	}

	request, err := s.repo.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, apierr.NotFound("deletion request not found").WithCause(err)
		}
		return nil, err
	}
	if request.UserID != userID {
		return nil, apierr.PermissionDenied("deletion request belongs to another account")
	}
	return request, nil
}

// List returns the caller's deletion requests, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]*Request, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, userID, limit)
}

// GetCertificate returns the certificate for a completed deletion, or
// nil when the deletion has not completed and none is issued yet.
func (s *Service) GetCertificate(ctx context.Context, userID, requestID string) (*Certificate, error) {
	request, err := s.repo.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, apierr.NotFound("deletion request not found").WithCause(err)
		}
		return nil, err
	}
	if request.UserID != userID {
		return nil, apierr.PermissionDenied("deletion request belongs to another account")
	}

	cert, err := s.repo.GetCertificateByRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrCertificateNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return cert, nil
}

// ActiveRecoverableByEmail returns the still-recoverable deletion for the
// given email, if one exists. Used by the logged-out recovery flow.
func (s *Service) ActiveRecoverableByEmail(ctx context.Context, email string) (*Request, error) {
	request, err := s.repo.GetActiveByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !request.Cancellable(s.now()) {
		return nil, ErrRequestNotFound
	}
	return request, nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	event.ID = audit.NewEventID()
	event.OccurredAt = s.now()
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to record audit event")
	}
}

// notify sends an email without blocking or failing the calling operation.
func (s *Service) notify(ctx context.Context, send func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to send notification email")
		}
	}()
}
