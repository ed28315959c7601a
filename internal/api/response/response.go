// Package response writes the uniform RPC envelope for HTTP handlers.
package response

import (
	"net/http"

	"github.com/pacelog/privacy-service/internal/api/middleware"
	"github.com/pacelog/privacy-service/internal/api/models"
	"github.com/pacelog/privacy-service/internal/apierr"
)

// OK writes a success envelope around the given payload.
// Includes X-Request-Id header for correlation.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	Message(w, r, data, "")
}

// Message writes a success envelope with a human-readable message.
func Message(w http.ResponseWriter, r *http.Request, data any, message string) {
	setRequestID(w, r)
	models.OKEnvelope(data, message).Write(w, http.StatusOK)
}

// Error classifies err and writes a failure envelope. Unclassified errors
// surface as INTERNAL with a generic message; the cause stays in the logs.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	setRequestID(w, r)
	e := apierr.From(err)
	models.ErrorEnvelope(string(e.Code), e.Message, e.Details).Write(w, apierr.HTTPStatus(e.Code))
}

// InvalidArgument writes an INVALID_ARGUMENT failure envelope.
func InvalidArgument(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, apierr.InvalidArgument(message))
}

// Unauthenticated writes an UNAUTHENTICATED failure envelope.
func Unauthenticated(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, apierr.Unauthenticated(message))
}

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
}
