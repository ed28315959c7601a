// Package handler provides HTTP handlers for the PaceLog privacy API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pacelog/privacy-service/internal/api/models"
	"github.com/pacelog/privacy-service/internal/api/response"
	"github.com/pacelog/privacy-service/internal/deletion"
)

// PrivacyHandler handles the account deletion endpoints.
type PrivacyHandler struct {
	deletions *deletion.Service
}

// NewPrivacyHandler creates a new PrivacyHandler.
func NewPrivacyHandler(deletions *deletion.Service) *PrivacyHandler {
	return &PrivacyHandler{deletions: deletions}
}

// RequestAccountDeletion handles POST /v1/privacy:requestAccountDeletion.
func (h *PrivacyHandler) RequestAccountDeletion(w http.ResponseWriter, r *http.Request) {
	var input models.RequestDeletionInput
	// Body is optional; an empty body means a default soft deletion
	if err := decodeOptional(r, &input); err != nil {
		response.InvalidArgument(w, r, "invalid request body")
		return
	}

	request, err := h.deletions.RequestDeletion(r.Context(), GetUserID(r.Context()), deletion.RequestDeletionParams{
		Type:            input.Type,
		Scope:           input.Scope,
		Reason:          input.Reason,
		ExportDataFirst: input.ExportDataFirst,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}

	data := models.RequestDeletionData{
		RequestID:             request.ID,
		ScheduledDeletionDate: models.Timestamp(request.ScheduledAt),
		CanRecover:            request.CanRecover,
		RecoverDeadline:       models.TimestampPtr(request.RecoverDeadline),
		ExportRequestID:       request.ExportJobID,
	}
	response.Message(w, r, data, "Account deletion scheduled.")
}

// CancelDeletion handles POST /v1/privacy:cancelDeletion.
func (h *PrivacyHandler) CancelDeletion(w http.ResponseWriter, r *http.Request) {
	var input models.CancelDeletionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.InvalidArgument(w, r, "invalid request body")
		return
	}
	if input.RequestID == "" {
		response.InvalidArgument(w, r, "requestId is required")
		return
	}

	request, err := h.deletions.CancelDeletion(r.Context(), GetUserID(r.Context()), input.RequestID)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	data := models.CancelDeletionData{
		RequestID: request.ID,
		Status:    string(request.Status),
	}
	response.Message(w, r, data, "Account deletion cancelled.")
}

// GetDeletionStatus handles POST /v1/privacy:getDeletionStatus.
func (h *PrivacyHandler) GetDeletionStatus(w http.ResponseWriter, r *http.Request) {
	var input models.DeletionStatusInput
	if err := decodeOptional(r, &input); err != nil {
		response.InvalidArgument(w, r, "invalid request body")
		return
	}

	request, err := h.deletions.GetStatus(r.Context(), GetUserID(r.Context()), input.RequestID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, requestView(request))
}

// GetDeletionRequests handles POST /v1/privacy:getDeletionRequests.
func (h *PrivacyHandler) GetDeletionRequests(w http.ResponseWriter, r *http.Request) {
	var input models.ListDeletionRequestsInput
	if err := decodeOptional(r, &input); err != nil {
		response.InvalidArgument(w, r, "invalid request body")
		return
	}

	requests, err := h.deletions.List(r.Context(), GetUserID(r.Context()), input.Limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	list := models.DeletionRequestList{Requests: make([]models.DeletionRequestView, 0, len(requests))}
	for _, request := range requests {
		list.Requests = append(list.Requests, requestView(request))
	}
	response.OK(w, r, list)
}

// GetDeletionCertificate handles POST /v1/privacy:getDeletionCertificate.
func (h *PrivacyHandler) GetDeletionCertificate(w http.ResponseWriter, r *http.Request) {
	var input models.GetCertificateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.InvalidArgument(w, r, "invalid request body")
		return
	}
	if input.RequestID == "" {
		response.InvalidArgument(w, r, "requestId is required")
		return
	}

	cert, err := h.deletions.GetCertificate(r.Context(), GetUserID(r.Context()), input.RequestID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if cert == nil {
		response.Message(w, r, models.CertificateData{},
			"No certificate has been issued yet; it is produced when the deletion completes.")
		return
	}

	view := models.CertificateView{
		CertificateID:         cert.ID,
		RequestID:             cert.RequestID,
		IssuedAt:              models.Timestamp(cert.IssuedAt),
		DeletedCollections:    cert.DeletedCollections,
		StorageObjectsDeleted: cert.StorageObjectsDeleted,
		WarehouseRowsDeleted:  cert.WarehouseRowsDeleted,
		IdentityDeleted:       cert.IdentityDeleted,
		Verified:              cert.Verified,
		RemainingData:         cert.RemainingData,
	}
	response.OK(w, r, models.CertificateData{Certificate: &view})
}

func requestView(request *deletion.Request) models.DeletionRequestView {
	return models.DeletionRequestView{
		RequestID:       request.ID,
		Status:          string(request.Status),
		Type:            string(request.Type),
		Scope:           request.Scope,
		RequestedAt:     models.Timestamp(request.RequestedAt),
		ScheduledAt:     models.Timestamp(request.ScheduledAt),
		CanRecover:      request.CanRecover,
		RecoverDeadline: models.TimestampPtr(request.RecoverDeadline),
		ExecutedAt:      models.TimestampPtr(request.ExecutedAt),
		CancelledAt:     models.TimestampPtr(request.CancelledAt),
		ExportRequestID: request.ExportJobID,
		Error:           request.Error,
	}
}

// decodeOptional decodes a JSON body, tolerating an empty one.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
