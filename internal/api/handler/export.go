package handler

import (
	"encoding/json"
	"net/http"

	"github.com/pacelog/privacy-service/internal/api/models"
	"github.com/pacelog/privacy-service/internal/api/response"
	"github.com/pacelog/privacy-service/internal/export"
)

// ExportHandler handles the data export endpoints.
type ExportHandler struct {
	exports *export.Service
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exports *export.Service) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Create handles POST /v1/exports:create.
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	job, err := h.exports.Start(r.Context(), GetUserID(r.Context()))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Message(w, r, jobView(job), "Export started. You will be able to download it once it is ready.")
}

// Get handles POST /v1/exports:get.
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	var input models.GetExportJobInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.InvalidArgument(w, r, "invalid request body")
		return
	}
	if input.JobID == "" {
		response.InvalidArgument(w, r, "jobId is required")
		return
	}

	job, err := h.exports.GetJob(r.Context(), GetUserID(r.Context()), input.JobID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, jobView(job))
}

// List handles POST /v1/exports:list.
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	var input models.ListExportJobsInput
	if err := decodeOptional(r, &input); err != nil {
		response.InvalidArgument(w, r, "invalid request body")
		return
	}

	jobs, err := h.exports.ListJobs(r.Context(), GetUserID(r.Context()), input.Limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	list := models.ExportJobList{Jobs: make([]models.ExportJobView, 0, len(jobs))}
	for _, job := range jobs {
		list.Jobs = append(list.Jobs, jobView(job))
	}
	response.OK(w, r, list)
}

func jobView(job *export.Job) models.ExportJobView {
	return models.ExportJobView{
		JobID:         job.ID,
		Status:        string(job.Status),
		Format:        job.Format,
		RequestedAt:   models.Timestamp(job.RequestedAt),
		CompletedAt:   models.TimestampPtr(job.CompletedAt),
		DownloadURL:   job.DownloadURL,
		FailureReason: job.FailureReason,
		SizeBytes:     job.SizeBytes,
	}
}
