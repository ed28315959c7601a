// Package objectstore abstracts the object storage the deletion executor
// erases and the export runner writes archives to.
package objectstore

import (
	"context"
	"time"
)

// Store is the object storage surface used by the privacy pipelines.
type Store interface {
	// DeletePrefix deletes every object under the prefix and returns
	// the number of objects removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// CountPrefix counts the objects remaining under the prefix.
	CountPrefix(ctx context.Context, prefix string) (int, error)

	// Write stores data at the given key.
	Write(ctx context.Context, key string, data []byte) error

	// SignedURL returns a time-limited download URL for the key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// UserPrefix is the storage prefix holding a user's uploaded files
// (session media, attachments).
func UserPrefix(userID string) string {
	return "users/" + userID + "/"
}

// ExportKey is the storage key of an export archive.
func ExportKey(userID, jobID string) string {
	return "exports/" + userID + "/" + jobID + ".json"
}
