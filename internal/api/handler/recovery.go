package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pacelog/privacy-service/internal/api/models"
	"github.com/pacelog/privacy-service/internal/api/response"
	"github.com/pacelog/privacy-service/internal/recovery"
)

// RecoveryHandler handles the public account recovery endpoints.
type RecoveryHandler struct {
	recovery *recovery.Service
	now      func() time.Time
}

// NewRecoveryHandler creates a new RecoveryHandler.
func NewRecoveryHandler(svc *recovery.Service) *RecoveryHandler {
	return &RecoveryHandler{recovery: svc, now: time.Now}
}

// RequestCode handles POST /v1/recovery:requestCode.
//
// The response is identical whether or not the email has a recoverable
// deletion, so the endpoint cannot be used to enumerate accounts.
func (h *RecoveryHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var input models.RequestRecoveryCodeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.InvalidArgument(w, r, "invalid request body")
		return
	}

	if err := h.recovery.RequestCode(r.Context(), input.Email); err != nil {
		response.Error(w, r, err)
		return
	}

	// expiresAt is reported unconditionally for the same reason the
	// message is generic.
	expiresAt := models.Timestamp(h.now().Add(recovery.CodeTTL))
	data := models.RequestRecoveryCodeData{ExpiresAt: &expiresAt}
	response.Message(w, r, data, recovery.GenericCodeMessage)
}

// VerifyCode handles POST /v1/recovery:verifyCode.
func (h *RecoveryHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var input models.VerifyRecoveryCodeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.InvalidArgument(w, r, "invalid request body")
		return
	}
	if input.Email == "" || input.Code == "" {
		response.InvalidArgument(w, r, "email and code are required")
		return
	}

	result, err := h.recovery.VerifyCode(r.Context(), input.Email, input.Code)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	data := models.VerifyRecoveryCodeData{Valid: result.Valid}
	if !result.Valid {
		remaining := result.RemainingAttempts
		data.RemainingAttempts = &remaining
	}
	if result.Valid && result.Request != nil {
		data.DeletionInfo = &models.RecoveryDeletionInfo{
			RequestID:     result.Request.ID,
			ScheduledAt:   models.Timestamp(result.Request.ScheduledAt),
			DaysRemaining: daysUntil(h.now(), result.Request.ScheduledAt),
		}
	}
	response.OK(w, r, data)
}

// RecoverAccount handles POST /v1/recovery:recoverAccount.
func (h *RecoveryHandler) RecoverAccount(w http.ResponseWriter, r *http.Request) {
	var input models.RecoverAccountInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.InvalidArgument(w, r, "invalid request body")
		return
	}
	if input.Email == "" || input.Code == "" {
		response.InvalidArgument(w, r, "email and code are required")
		return
	}

	if err := h.recovery.RecoverAccount(r.Context(), input.Email, input.Code); err != nil {
		response.Error(w, r, err)
		return
	}

	data := models.RecoverAccountData{Recovered: true}
	response.Message(w, r, data, "Account recovered. The scheduled deletion has been cancelled.")
}

// daysUntil counts whole days remaining before t, rounding partial days up.
func daysUntil(now, t time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
