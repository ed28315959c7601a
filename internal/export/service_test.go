package export

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacelog/privacy-service/internal/apierr"
	"github.com/pacelog/privacy-service/internal/audit"
	"github.com/pacelog/privacy-service/internal/objectstore"
	"github.com/pacelog/privacy-service/internal/tasks"
	"github.com/pacelog/privacy-service/internal/user"
)

type exportFixture struct {
	service *Service
	runner  *Runner
	repo    *InMemoryRepository
	users   *user.InMemoryRepository
	objects *objectstore.InMemoryStore
	tasks   *tasks.InMemoryRepository
	audit   *audit.InMemoryRecorder
	now     time.Time
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	nowFn := func() time.Time { return now }

	f := &exportFixture{
		repo:    NewInMemoryRepository(),
		users:   user.NewInMemoryRepository(),
		objects: objectstore.NewInMemoryStore(),
		tasks:   tasks.NewInMemoryRepository(),
		audit:   audit.NewInMemoryRecorder(),
		now:     now,
	}
	f.service = NewService(ServiceConfig{
		Repository: f.repo,
		Scheduler: tasks.NewScheduler(tasks.SchedulerConfig{
			Repository: f.tasks,
			Logger:     zerolog.Nop(),
			Now:        nowFn,
		}),
		Audit:  f.audit,
		Logger: zerolog.Nop(),
		Now:    nowFn,
	})
	f.runner = NewRunner(RunnerConfig{
		Jobs:    f.repo,
		Users:   f.users,
		Objects: f.objects,
		Audit:   f.audit,
		Logger:  zerolog.Nop(),
		Now:     nowFn,
	})

	f.users.AddProfile(&user.Profile{ID: "user-1", Email: "runner@example.com", DisplayName: "Runner"})
	f.users.AddRows("user-1", user.CategorySessions,
		map[string]any{"id": "s1", "distance_m": 5000},
		map[string]any{"id": "s2", "distance_m": 21097},
	)
	f.users.AddRows("user-1", user.CategorySettings, map[string]any{"units": "metric"})
	return f
}

func TestStartExport(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	job, err := f.service.Start(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, FormatJSON, job.Format)

	queued := f.tasks.ByResource(tasks.KindExportRun, job.ID)
	require.Len(t, queued, 1)

	require.Len(t, f.audit.EventsOfType(audit.EventExportRequested), 1)
}

func TestStartExportOneActivePerUser(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	_, err := f.service.Start(ctx, "user-1")
	require.NoError(t, err)

	_, err = f.service.Start(ctx, "user-1")
	assert.Equal(t, apierr.CodeAlreadyExists, apierr.CodeOf(err))
}

func TestStartOrReuse(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	first, err := f.service.StartOrReuse(ctx, "user-1")
	require.NoError(t, err)

	second, err := f.service.StartOrReuse(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetJobOwnership(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	job, err := f.service.Start(ctx, "user-1")
	require.NoError(t, err)

	got, err := f.service.GetJob(ctx, "user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = f.service.GetJob(ctx, "user-2", job.ID)
	assert.Equal(t, apierr.CodePermissionDenied, apierr.CodeOf(err))

	_, err = f.service.GetJob(ctx, "user-1", "exp_missing")
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}

func TestRunProducesArchive(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	job, err := f.service.Start(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, f.runner.Run(ctx, job.ID))

	got, err := f.repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, got.Status)
	require.NotNil(t, got.DownloadURL)
	require.NotNil(t, got.URLExpiresAt)
	assert.Equal(t, f.now.Add(DownloadTTL), *got.URLExpiresAt)
	assert.Positive(t, got.SizeBytes)

	data, ok := f.objects.Get(got.StorageKey)
	require.True(t, ok)

	var doc archive
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "user-1", doc.UserID)
	assert.Equal(t, "runner@example.com", doc.Email)
	assert.Len(t, doc.Data["sessions"], 2)
	assert.Len(t, doc.Data["settings"], 1)
	assert.Empty(t, doc.Data["consents"])

	require.Len(t, f.audit.EventsOfType(audit.EventExportCompleted), 1)
}

func TestRunIsIdempotentOnceReady(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	job, err := f.service.Start(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, f.runner.Run(ctx, job.ID))
	require.NoError(t, f.runner.Run(ctx, job.ID))

	require.Len(t, f.audit.EventsOfType(audit.EventExportCompleted), 1)
}

func TestRunUnknownUserFailsJob(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	job, err := f.service.Start(ctx, "user-2")
	require.NoError(t, err)

	require.Error(t, f.runner.Run(ctx, job.ID))

	got, err := f.repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.FailureReason)
}
