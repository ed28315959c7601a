package deletion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacelog/privacy-service/internal/audit"
	"github.com/pacelog/privacy-service/internal/identity"
	"github.com/pacelog/privacy-service/internal/objectstore"
	"github.com/pacelog/privacy-service/internal/user"
	"github.com/pacelog/privacy-service/internal/warehouse"
)

// NotDueError signals that a deletion's scheduled time has not arrived.
// The worker reschedules the task instead of counting a failed attempt.
type NotDueError struct {
	DueAt time.Time
}

// Error implements the error interface.
func (e *NotDueError) Error() string {
	return fmt.Sprintf("deletion not due until %s", e.DueAt.Format(time.RFC3339))
}

// Executor performs the multi-system erasure for a scheduled deletion
// request. It is idempotent: re-running a completed or cancelled request
// is a no-op, and each erasure step tolerates already-deleted data.
type Executor struct {
	repo      Repository
	users     user.Repository
	objects   objectstore.Store
	warehouse warehouse.Warehouse
	identity  identity.Admin
	pseudonym func(userID string) string
	audit     audit.Recorder
	logger    zerolog.Logger
	now       func() time.Time
}

// ExecutorConfig holds configuration for the deletion executor.
type ExecutorConfig struct {
	Repository Repository
	Users      user.Repository
	Objects    objectstore.Store
	Warehouse  warehouse.Warehouse
	Identity   identity.Admin

	// Pseudonym maps a user id onto its warehouse key.
	Pseudonym func(userID string) string

	Audit  audit.Recorder
	Logger zerolog.Logger

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// NewExecutor creates a new deletion executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	auditor := cfg.Audit
	if auditor == nil {
		auditor = audit.NopRecorder{}
	}
	return &Executor{
		repo:      cfg.Repository,
		users:     cfg.Users,
		objects:   cfg.Objects,
		warehouse: cfg.Warehouse,
		identity:  cfg.Identity,
		pseudonym: cfg.Pseudonym,
		audit:     auditor,
		logger:    cfg.Logger.With().Str("component", "deletion_executor").Logger(),
		now:       now,
	}
}

// Execute runs the erasure for a request. Safe to call repeatedly: the
// ledger state machine gates which steps, if any, still apply.
func (e *Executor) Execute(ctx context.Context, requestID string) error {
	request, err := e.repo.Get(ctx, requestID)
	if err != nil {
		return err
	}

	switch request.Status {
	case StatusCancelled:
		e.logger.Info().Str("request_id", requestID).Msg("request cancelled, skipping execution")
		return nil
	case StatusCompleted:
		e.logger.Info().Str("request_id", requestID).Msg("request already completed")
		return nil
	}

	now := e.now()
	if now.Before(request.ScheduledAt) {
		return &NotDueError{DueAt: request.ScheduledAt}
	}

	// A request already in processing is a crashed earlier attempt; the
	// erasure steps are idempotent, so it just runs again.
	if request.Status != StatusProcessing {
		if err := e.repo.MarkProcessing(ctx, requestID); err != nil {
			return err
		}
	}

	if err := e.erase(ctx, request); err != nil {
		if recErr := e.repo.RecordError(ctx, requestID, err.Error(), e.now()); recErr != nil {
			e.logger.Error().Err(recErr).Str("request_id", requestID).Msg("failed to record execution error")
		}
		return err
	}
	return nil
}

func (e *Executor) erase(ctx context.Context, request *Request) error {
	logger := e.logger.With().Str("request_id", request.ID).Str("user_id", request.UserID).Logger()
	fullScope := request.ScopeIncludes(ScopeAll)

	// Primary database: category tables, then the profile itself.
	var deleted []string
	for _, category := range user.Categories() {
		if !request.ScopeIncludes(string(category)) {
			continue
		}
		rows, err := e.users.EraseCategory(ctx, request.UserID, category)
		if err != nil {
			return fmt.Errorf("erase %s: %w", category, err)
		}
		logger.Info().Str("category", string(category)).Int64("rows", rows).Msg("category erased")
		deleted = append(deleted, string(category))
	}
	if fullScope {
		if err := e.users.AnonymizeProfile(ctx, request.UserID); err != nil && !errors.Is(err, user.ErrUserNotFound) {
			return fmt.Errorf("anonymize profile: %w", err)
		}
		deleted = append(deleted, "profile")
	}

	// Object storage and the warehouse both hold training-session data.
	// Failures here are logged and the deletion still completes; the
	// certificate's verification flags expose the leftovers.
	var objectsDeleted int
	if fullScope || request.ScopeIncludes(string(user.CategorySessions)) {
		n, err := e.objects.DeletePrefix(ctx, objectstore.UserPrefix(request.UserID))
		if err != nil {
			logger.Warn().Err(err).Msg("object storage erasure failed")
		} else {
			objectsDeleted = n
		}
	}

	var warehouseDeleted int64
	pseudonym := e.pseudonym(request.UserID)
	if fullScope || request.ScopeIncludes(string(user.CategorySessions)) {
		n, err := e.warehouse.DeleteRows(ctx, pseudonym)
		if err != nil {
			logger.Warn().Err(err).Msg("warehouse erasure failed")
		} else {
			warehouseDeleted = n
		}
	}

	// Identity provider last, so a failure above leaves the account
	// intact and retryable.
	identityDeleted := false
	if fullScope {
		if err := e.identity.RevokeSessions(ctx, request.UserID); err != nil {
			logger.Warn().Err(err).Msg("session revocation failed")
		}
		if err := e.identity.DeleteUser(ctx, request.UserID); err != nil {
			return fmt.Errorf("delete auth account: %w", err)
		}
		identityDeleted = true
	}

	remaining := e.verify(ctx, request, pseudonym, fullScope)
	verified := len(remaining) == 0

	cert, err := e.certificate(ctx, request, certificateInput{
		deletedCollections: deleted,
		objectsDeleted:     objectsDeleted,
		warehouseDeleted:   warehouseDeleted,
		identityDeleted:    identityDeleted,
		verified:           verified,
		remaining:          remaining,
	})
	if err != nil {
		return err
	}

	if err := e.repo.Complete(ctx, request.ID, CompletionResult{
		ExecutedAt:            e.now(),
		DeletedCollections:    deleted,
		StorageObjectsDeleted: objectsDeleted,
		WarehouseRowsDeleted:  warehouseDeleted,
		IdentityDeleted:       identityDeleted,
		Verified:              verified,
		CertificateID:         cert.ID,
	}); err != nil {
		return fmt.Errorf("complete request: %w", err)
	}

	if err := e.users.ClearDeletionScheduled(ctx, request.UserID); err != nil && !errors.Is(err, user.ErrUserNotFound) {
		logger.Warn().Err(err).Msg("failed to clear profile deletion flag")
	}

	event := audit.Event{
		ID:         audit.NewEventID(),
		Type:       audit.EventAccountDeleted,
		UserID:     request.UserID,
		RequestID:  request.ID,
		Actor:      "system",
		OccurredAt: e.now(),
		Metadata: map[string]any{
			"type":             string(request.Type),
			"deleted":          deleted,
			"storage_objects":  objectsDeleted,
			"warehouse_rows":   warehouseDeleted,
			"identity_deleted": identityDeleted,
			"verified":         verified,
			"certificate_id":   cert.ID,
		},
	}
	if err := e.audit.Record(ctx, event); err != nil {
		logger.Warn().Err(err).Msg("failed to record audit event")
	}

	logger.Info().Bool("verified", verified).Str("certificate_id", cert.ID).Msg("deletion executed")
	return nil
}

// verify counts what the erasure should have removed. Verification
// failures never fail the run; they surface on the certificate.
func (e *Executor) verify(ctx context.Context, request *Request, pseudonym string, fullScope bool) map[string]int64 {
	logger := e.logger.With().Str("request_id", request.ID).Logger()
	remaining := make(map[string]int64)

	for _, category := range user.Categories() {
		if !request.ScopeIncludes(string(category)) {
			continue
		}
		count, err := e.users.CountCategory(ctx, request.UserID, category)
		if err != nil {
			logger.Warn().Err(err).Str("category", string(category)).Msg("verification count failed")
			continue
		}
		if count > 0 {
			remaining[string(category)] = count
		}
	}

	if fullScope || request.ScopeIncludes(string(user.CategorySessions)) {
		if count, err := e.objects.CountPrefix(ctx, objectstore.UserPrefix(request.UserID)); err != nil {
			logger.Warn().Err(err).Msg("object storage verification failed")
		} else if count > 0 {
			remaining["storage_objects"] = int64(count)
		}

		if count, err := e.warehouse.CountRows(ctx, pseudonym); err != nil {
			logger.Warn().Err(err).Msg("warehouse verification failed")
		} else if count > 0 {
			remaining["warehouse_rows"] = count
		}
	}

	if fullScope {
		if exists, err := e.identity.UserExists(ctx, request.UserID); err != nil {
			logger.Warn().Err(err).Msg("identity verification failed")
		} else if exists {
			remaining["identity_account"] = 1
		}
	}

	if len(remaining) == 0 {
		return nil
	}
	return remaining
}

type certificateInput struct {
	deletedCollections []string
	objectsDeleted     int
	warehouseDeleted   int64
	identityDeleted    bool
	verified           bool
	remaining          map[string]int64
}

// certificate issues the write-once certificate, reusing one left behind
// by a crashed earlier attempt.
func (e *Executor) certificate(ctx context.Context, request *Request, in certificateInput) (*Certificate, error) {
	existing, err := e.repo.GetCertificateByRequest(ctx, request.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrCertificateNotFound) {
		return nil, err
	}

	cert := &Certificate{
		ID:                    NewCertificateID(),
		RequestID:             request.ID,
		UserID:                request.UserID,
		IssuedAt:              e.now(),
		DeletedCollections:    in.deletedCollections,
		StorageObjectsDeleted: in.objectsDeleted,
		WarehouseRowsDeleted:  in.warehouseDeleted,
		IdentityDeleted:       in.identityDeleted,
		Verified:              in.verified,
		RemainingData:         in.remaining,
	}
	if err := e.repo.CreateCertificate(ctx, cert); err != nil {
		return nil, fmt.Errorf("issue certificate: %w", err)
	}
	return cert, nil
}
