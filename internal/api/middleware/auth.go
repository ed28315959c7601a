package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/pacelog/privacy-service/internal/api/models"
	"github.com/pacelog/privacy-service/internal/apierr"
	"github.com/pacelog/privacy-service/internal/identity"
)

// userIDKey is the context key for the authenticated user ID.
type userIDKey struct{}

// userEmailKey is the context key for the authenticated user's email.
type userEmailKey struct{}

// Auth creates authentication middleware that validates JWT bearer tokens.
func Auth(verifier identity.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract bearer token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			// Check for Bearer prefix (case-insensitive)
			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			tokenString := authHeader[len(bearerPrefix):]
			if tokenString == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			// Validate the token
			claims, err := verifier.VerifyToken(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, identity.ErrTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				case errors.Is(err, identity.ErrInvalidToken):
					writeUnauthorized(w, r, "invalid access token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			// Add the caller's identity to the context
			ctx := context.WithValue(r.Context(), userIDKey{}, claims.UserID())
			ctx = context.WithValue(ctx, userEmailKey{}, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized writes a 401 envelope response.
// Implemented directly here to avoid an import cycle with the response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	if requestID := GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	envelope := models.ErrorEnvelope(string(apierr.CodeUnauthenticated), message, nil)
	envelope.Write(w, http.StatusUnauthorized)
}

// GetUserID retrieves the authenticated user ID from the context.
// Returns an empty string if not authenticated.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetUserEmail retrieves the authenticated user's email from the context.
// Returns an empty string if not authenticated or absent from the token.
func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(userEmailKey{}).(string); ok {
		return email
	}
	return ""
}
