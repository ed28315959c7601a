// Package export implements user data exports: portable JSON archives of
// everything the platform holds for a user, delivered through time-limited
// download links.
package export

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an export job.
type Status string

// Export job statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// FormatJSON is the archive format. The only one, currently.
const FormatJSON = "json"

// DownloadTTL is how long an archive's signed download link stays valid.
const DownloadTTL = 7 * 24 * time.Hour

// Predefined export errors.
var (
	ErrJobNotFound     = errors.New("export job not found")
	ErrActiveJobExists = errors.New("an export job is already in progress")
)

// Job is one export job.
type Job struct {
	ID     string
	UserID string
	Status Status
	Format string

	RequestedAt time.Time
	CompletedAt *time.Time

	StorageKey    string
	DownloadURL   *string
	URLExpiresAt  *time.Time
	SizeBytes     int64
	FailureReason *string
}

// Active reports whether the job is still being produced.
func (j *Job) Active() bool {
	return j.Status == StatusPending || j.Status == StatusProcessing
}

// NewJobID generates an export job id.
func NewJobID() string {
	return "exp_" + uuid.New().String()[:22]
}
