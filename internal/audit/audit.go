// Package audit provides the append-only compliance log. Every deletion
// lifecycle transition and recovery action is mirrored here; entries are
// never updated or deleted.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

// Audit event types.
const (
	EventAccountDeletionRequest EventType = "account_deletion_request"
	EventAccountDeletionCancel  EventType = "account_deletion_cancel"
	EventAccountDeleted         EventType = "account_deleted"
	EventSecurityEvent          EventType = "security_event"
	EventExportRequested        EventType = "export_requested"
	EventExportCompleted        EventType = "export_completed"
)

// Event is a single audit log entry.
type Event struct {
	ID         string
	Type       EventType
	UserID     string
	RequestID  string
	Actor      string
	OccurredAt time.Time
	Metadata   map[string]any
}

// Recorder appends events to the audit log. Implementations must never
// mutate or remove existing entries. Callers treat a failed Record as a
// warning, not a failure of the surrounding operation.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// NewEventID generates an audit event id.
func NewEventID() string {
	return "evt_" + uuid.New().String()[:22]
}

// NopRecorder discards all events.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(_ context.Context, _ Event) error { return nil }

// Ensure NopRecorder implements Recorder.
var _ Recorder = NopRecorder{}
