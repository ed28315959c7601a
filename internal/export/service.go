package export

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacelog/privacy-service/internal/apierr"
	"github.com/pacelog/privacy-service/internal/audit"
	"github.com/pacelog/privacy-service/internal/objectstore"
)

// TaskScheduler is the slice of the task queue the service needs.
type TaskScheduler interface {
	ScheduleExport(ctx context.Context, jobID string, runAt time.Time) error
}

// Service implements the export job lifecycle.
type Service struct {
	repo      Repository
	scheduler TaskScheduler
	audit     audit.Recorder
	logger    zerolog.Logger
	now       func() time.Time
}

// ServiceConfig holds configuration for the export service.
type ServiceConfig struct {
	Repository Repository
	Scheduler  TaskScheduler
	Audit      audit.Recorder
	Logger     zerolog.Logger

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// NewService creates a new export service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	auditor := cfg.Audit
	if auditor == nil {
		auditor = audit.NopRecorder{}
	}
	return &Service{
		repo:      cfg.Repository,
		scheduler: cfg.Scheduler,
		audit:     auditor,
		logger:    cfg.Logger.With().Str("component", "export_service").Logger(),
		now:       now,
	}
}

// Start creates a new export job for the user and queues its run.
func (s *Service) Start(ctx context.Context, userID string) (*Job, error) {
	now := s.now()
	job := &Job{
		ID:          NewJobID(),
		UserID:      userID,
		Status:      StatusPending,
		Format:      FormatJSON,
		RequestedAt: now,
		StorageKey:  "",
	}
	job.StorageKey = objectstore.ExportKey(userID, job.ID)

	if err := s.repo.Create(ctx, job); err != nil {
		if errors.Is(err, ErrActiveJobExists) {
			return nil, apierr.AlreadyExists("an export is already in progress").WithCause(err)
		}
		return nil, err
	}

	if err := s.scheduler.ScheduleExport(ctx, job.ID, now); err != nil {
		return nil, err
	}

	event := audit.Event{
		ID:         audit.NewEventID(),
		Type:       audit.EventExportRequested,
		UserID:     userID,
		Actor:      userID,
		OccurredAt: now,
		Metadata:   map[string]any{"job_id": job.ID, "format": job.Format},
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record audit event")
	}

	s.logger.Info().Str("job_id", job.ID).Str("user_id", userID).Msg("export requested")
	return job, nil
}

// StartOrReuse starts an export, or returns the id of the job already in
// flight. Used by the deletion flow's export-data-first option.
func (s *Service) StartOrReuse(ctx context.Context, userID string) (string, error) {
	existing, err := s.repo.GetActiveByUser(ctx, userID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, ErrJobNotFound) {
		return "", err
	}

	job, err := s.Start(ctx, userID)
	if err != nil {
		// Lost a race against a concurrent start; reuse the winner.
		if apierr.CodeOf(err) == apierr.CodeAlreadyExists {
			if existing, getErr := s.repo.GetActiveByUser(ctx, userID); getErr == nil {
				return existing.ID, nil
			}
		}
		return "", err
	}
	return job.ID, nil
}

// GetJob returns one of the caller's export jobs.
func (s *Service) GetJob(ctx context.Context, userID, jobID string) (*Job, error) {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, apierr.NotFound("export job not found").WithCause(err)
		}
		return nil, err
	}
	if job.UserID != userID {
		return nil, apierr.PermissionDenied("export job belongs to another account")
	}
	return job, nil
}

// ListJobs returns the caller's export jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, userID string, limit int) ([]*Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, userID, limit)
}
