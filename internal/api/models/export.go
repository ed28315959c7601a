package models

// GetExportJobInput is the body of exports:get.
type GetExportJobInput struct {
	JobID string `json:"jobId"`
}

// ListExportJobsInput is the body of exports:list.
type ListExportJobsInput struct {
	Limit int `json:"limit,omitempty"`
}

// ExportJobView is the API view of an export job.
type ExportJobView struct {
	JobID         string     `json:"jobId"`
	Status        string     `json:"status"`
	Format        string     `json:"format"`
	RequestedAt   Timestamp  `json:"requestedAt"`
	CompletedAt   *Timestamp `json:"completedAt,omitempty"`
	DownloadURL   *string    `json:"downloadUrl,omitempty"`
	FailureReason *string    `json:"failureReason,omitempty"`
	SizeBytes     int64      `json:"sizeBytes,omitempty"`
}

// ExportJobList is the payload returned by exports:list.
type ExportJobList struct {
	Jobs []ExportJobView `json:"jobs"`
}
