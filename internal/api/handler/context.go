package handler

import (
	"context"

	"github.com/pacelog/privacy-service/internal/api/middleware"
)

// GetUserID retrieves the authenticated user ID from the context.
// This is a convenience wrapper around middleware.GetUserID.
func GetUserID(ctx context.Context) string {
	return middleware.GetUserID(ctx)
}

// GetUserEmail retrieves the authenticated user's email from the context.
// This is a convenience wrapper around middleware.GetUserEmail.
func GetUserEmail(ctx context.Context) string {
	return middleware.GetUserEmail(ctx)
}
