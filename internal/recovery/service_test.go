package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacelog/privacy-service/internal/apierr"
	"github.com/pacelog/privacy-service/internal/audit"
	"github.com/pacelog/privacy-service/internal/deletion"
	"github.com/pacelog/privacy-service/internal/tasks"
	"github.com/pacelog/privacy-service/internal/user"
)

// captureMailer records the last recovery code instead of sending it.
type captureMailer struct {
	codes []string
	to    []string
}

func (m *captureMailer) SendRecoveryCode(_ context.Context, email, code string, _ time.Time) error {
	m.codes = append(m.codes, code)
	m.to = append(m.to, email)
	return nil
}

func (m *captureMailer) SendDeletionScheduled(context.Context, string, time.Time, bool) error {
	return nil
}

func (m *captureMailer) SendDeletionCancelled(context.Context, string) error { return nil }

type fakeLimiter struct {
	allow bool
	err   error
}

func (f *fakeLimiter) Allow(context.Context, string) (bool, error) { return f.allow, f.err }

type recoveryFixture struct {
	service   *Service
	repo      *InMemoryRepository
	deletions *deletion.Service
	delRepo   *deletion.InMemoryRepository
	mailer    *captureMailer
	limiter   *fakeLimiter
	audit     *audit.InMemoryRecorder
	request   *deletion.Request
	clock     *time.Time
}

func newRecoveryFixture(t *testing.T) *recoveryFixture {
	t.Helper()

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	nowFn := func() time.Time { return clock }

	users := user.NewInMemoryRepository()
	users.AddProfile(&user.Profile{ID: "user-1", Email: "runner@example.com"})

	delRepo := deletion.NewInMemoryRepository()
	deletions := deletion.NewService(deletion.ServiceConfig{
		Repository: delRepo,
		Users:      users,
		Scheduler: tasks.NewScheduler(tasks.SchedulerConfig{
			Repository: tasks.NewInMemoryRepository(),
			Logger:     zerolog.Nop(),
			Now:        nowFn,
		}),
		Logger: zerolog.Nop(),
		Now:    nowFn,
	})

	request, err := deletions.RequestDeletion(context.Background(), "user-1", deletion.RequestDeletionParams{})
	require.NoError(t, err)

	f := &recoveryFixture{
		repo:      NewInMemoryRepository(),
		deletions: deletions,
		delRepo:   delRepo,
		mailer:    &captureMailer{},
		limiter:   &fakeLimiter{allow: true},
		audit:     audit.NewInMemoryRecorder(),
		request:   request,
		clock:     &clock,
	}
	f.service = NewService(ServiceConfig{
		Repository: f.repo,
		Deletions:  deletions,
		Limiter:    f.limiter,
		Mailer:     f.mailer,
		Audit:      f.audit,
		Logger:     zerolog.Nop(),
		Now:        nowFn,
	})
	return f
}

func (f *recoveryFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

// issueCode requests a code and returns the delivered plain code.
func (f *recoveryFixture) issueCode(t *testing.T) string {
	t.Helper()
	require.NoError(t, f.service.RequestCode(context.Background(), "runner@example.com"))
	require.NotEmpty(t, f.mailer.codes)
	return f.mailer.codes[len(f.mailer.codes)-1]
}

func TestRequestCode(t *testing.T) {
	f := newRecoveryFixture(t)

	code := f.issueCode(t)
	assert.Len(t, code, CodeLength)
	assert.Equal(t, []string{"runner@example.com"}, f.mailer.to)

	stored, err := f.repo.GetPendingByEmail(context.Background(), "runner@example.com")
	require.NoError(t, err)
	assert.Equal(t, f.request.ID, stored.RequestID)
	assert.Equal(t, HashCode(code), stored.CodeHash)
	assert.NotEqual(t, code, stored.CodeHash)

	require.Len(t, f.audit.EventsOfType(audit.EventSecurityEvent), 1)
}

func TestRequestCodeUnknownEmailStaysGeneric(t *testing.T) {
	f := newRecoveryFixture(t)

	err := f.service.RequestCode(context.Background(), "stranger@example.com")
	require.NoError(t, err)
	assert.Empty(t, f.mailer.codes)
}

func TestRequestCodeValidation(t *testing.T) {
	f := newRecoveryFixture(t)

	for _, email := range []string{"", "   ", "not-an-email"} {
		err := f.service.RequestCode(context.Background(), email)
		assert.Equal(t, apierr.CodeInvalidArgument, apierr.CodeOf(err))
	}
}

func TestRequestCodeRateLimited(t *testing.T) {
	f := newRecoveryFixture(t)
	f.limiter.allow = false

	// A throttled request reads exactly like any other: generic success,
	// no code issued.
	err := f.service.RequestCode(context.Background(), "runner@example.com")
	require.NoError(t, err)
	assert.Empty(t, f.mailer.codes)
}

func TestRequestCodeRetiresPriorCodes(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()

	f.issueCode(t)
	second := f.issueCode(t)

	// Only the newest code verifies.
	result, err := f.service.VerifyCode(ctx, "runner@example.com", second)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	stored, err := f.repo.GetPendingByEmail(ctx, "runner@example.com")
	require.NoError(t, err)
	assert.Equal(t, HashCode(second), stored.CodeHash)
}

func TestVerifyCodeAttemptBudget(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	code := f.issueCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 1; i <= MaxAttempts; i++ {
		result, err := f.service.VerifyCode(ctx, "runner@example.com", wrong)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, MaxAttempts-i, result.RemainingAttempts)
	}

	// The budget is spent; even the correct code no longer verifies.
	result, err := f.service.VerifyCode(ctx, "runner@example.com", code)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	require.Len(t, f.audit.EventsOfType(audit.EventSecurityEvent), 2)
}

func TestVerifyCodeMalformedInputSpendsNoAttempts(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	code := f.issueCode(t)

	// None of these can match an issued code, so none may touch the
	// attempt budget.
	for _, malformed := range []string{"", "12345", "1234567", "12345a", "      "} {
		for i := 0; i < MaxAttempts; i++ {
			result, err := f.service.VerifyCode(ctx, "runner@example.com", malformed)
			require.NoError(t, err)
			assert.False(t, result.Valid)
		}
	}

	result, err := f.service.VerifyCode(ctx, "runner@example.com", code)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestVerifyCodeExpired(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	code := f.issueCode(t)

	f.advance(CodeTTL + time.Minute)

	result, err := f.service.VerifyCode(ctx, "runner@example.com", code)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestVerifyCodeReturnsDeletionInfo(t *testing.T) {
	f := newRecoveryFixture(t)
	code := f.issueCode(t)

	result, err := f.service.VerifyCode(context.Background(), "runner@example.com", code)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.NotNil(t, result.Request)
	assert.Equal(t, f.request.ID, result.Request.ID)
	assert.Equal(t, f.request.ScheduledAt, result.Request.ScheduledAt)
}

func TestRecoverAccount(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	code := f.issueCode(t)

	require.NoError(t, f.service.RecoverAccount(ctx, "runner@example.com", code))

	got, err := f.delRepo.Get(ctx, f.request.ID)
	require.NoError(t, err)
	assert.Equal(t, deletion.StatusCancelled, got.Status)

	// The code is one-shot.
	err = f.service.RecoverAccount(ctx, "runner@example.com", code)
	require.Error(t, err)
}

func TestRecoverAccountWrongCode(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()
	code := f.issueCode(t)

	wrong := "999999"
	if wrong == code {
		wrong = "999998"
	}

	err := f.service.RecoverAccount(ctx, "runner@example.com", wrong)
	assert.Equal(t, apierr.CodeInvalidArgument, apierr.CodeOf(err))

	got, getErr := f.delRepo.Get(ctx, f.request.ID)
	require.NoError(t, getErr)
	assert.Equal(t, deletion.StatusScheduled, got.Status)
}
