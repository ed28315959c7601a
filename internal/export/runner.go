package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacelog/privacy-service/internal/audit"
	"github.com/pacelog/privacy-service/internal/objectstore"
	"github.com/pacelog/privacy-service/internal/user"
)

// Runner produces export archives: it gathers the user's data, writes the
// archive to object storage, and signs a download link.
type Runner struct {
	jobs    Repository
	users   user.Repository
	objects objectstore.Store
	audit   audit.Recorder
	logger  zerolog.Logger
	now     func() time.Time
}

// RunnerConfig holds configuration for the export runner.
type RunnerConfig struct {
	Jobs    Repository
	Users   user.Repository
	Objects objectstore.Store
	Audit   audit.Recorder
	Logger  zerolog.Logger

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// NewRunner creates a new export runner.
func NewRunner(cfg RunnerConfig) *Runner {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	auditor := cfg.Audit
	if auditor == nil {
		auditor = audit.NopRecorder{}
	}
	return &Runner{
		jobs:    cfg.Jobs,
		users:   cfg.Users,
		objects: cfg.Objects,
		audit:   auditor,
		logger:  cfg.Logger.With().Str("component", "export_runner").Logger(),
		now:     now,
	}
}

// archive is the shape of the exported JSON document.
type archive struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	UserID      string                      `json:"user_id"`
	Email       string                      `json:"email"`
	DisplayName string                      `json:"display_name,omitempty"`
	Data        map[string][]map[string]any `json:"data"`
}

// Run produces the archive for a job. Safe to retry: a ready job is a
// no-op, and a failed attempt just overwrites its partial object.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == StatusReady {
		r.logger.Info().Str("job_id", jobID).Msg("export already produced")
		return nil
	}

	if err := r.jobs.MarkProcessing(ctx, jobID); err != nil {
		return err
	}

	if err := r.produce(ctx, job); err != nil {
		if markErr := r.jobs.MarkFailed(ctx, jobID, err.Error(), r.now()); markErr != nil {
			r.logger.Error().Err(markErr).Str("job_id", jobID).Msg("failed to record export failure")
		}
		return err
	}
	return nil
}

func (r *Runner) produce(ctx context.Context, job *Job) error {
	profile, err := r.users.Get(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	doc := archive{
		GeneratedAt: r.now(),
		UserID:      job.UserID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Data:        make(map[string][]map[string]any),
	}
	for _, category := range user.Categories() {
		rows, err := r.users.CollectCategory(ctx, job.UserID, category)
		if err != nil {
			return fmt.Errorf("collect %s: %w", category, err)
		}
		doc.Data[string(category)] = rows
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}

	key := job.StorageKey
	if key == "" {
		key = objectstore.ExportKey(job.UserID, job.ID)
	}
	if err := r.objects.Write(ctx, key, payload); err != nil {
		return fmt.Errorf("store archive: %w", err)
	}

	url, err := r.objects.SignedURL(ctx, key, DownloadTTL)
	if err != nil {
		return fmt.Errorf("sign download url: %w", err)
	}

	now := r.now()
	if err := r.jobs.MarkReady(ctx, job.ID, ReadyResult{
		CompletedAt:  now,
		StorageKey:   key,
		DownloadURL:  url,
		URLExpiresAt: now.Add(DownloadTTL),
		SizeBytes:    int64(len(payload)),
	}); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	event := audit.Event{
		ID:         audit.NewEventID(),
		Type:       audit.EventExportCompleted,
		UserID:     job.UserID,
		Actor:      "system",
		OccurredAt: now,
		Metadata:   map[string]any{"job_id": job.ID, "size_bytes": len(payload)},
	}
	if err := r.audit.Record(ctx, event); err != nil {
		r.logger.Warn().Err(err).Msg("failed to record audit event")
	}

	r.logger.Info().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Int("size_bytes", len(payload)).
		Msg("export produced")
	return nil
}
