package models

// RequestDeletionInput is the body of privacy:requestAccountDeletion.
type RequestDeletionInput struct {
	Type            string   `json:"type,omitempty"`
	Scope           []string `json:"scope,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	ExportDataFirst bool     `json:"exportDataFirst,omitempty"`
}

// RequestDeletionData is the payload returned by privacy:requestAccountDeletion.
type RequestDeletionData struct {
	RequestID             string     `json:"requestId"`
	ScheduledDeletionDate Timestamp  `json:"scheduledDeletionDate"`
	CanRecover            bool       `json:"canRecover"`
	RecoverDeadline       *Timestamp `json:"recoverDeadline,omitempty"`
	ExportRequestID       *string    `json:"exportRequestId,omitempty"`
}

// CancelDeletionInput is the body of privacy:cancelDeletion.
type CancelDeletionInput struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

// CancelDeletionData is the payload returned by privacy:cancelDeletion.
type CancelDeletionData struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

// DeletionStatusInput is the body of privacy:getDeletionStatus.
type DeletionStatusInput struct {
	RequestID string `json:"requestId,omitempty"`
}

// ListDeletionRequestsInput is the body of privacy:getDeletionRequests.
type ListDeletionRequestsInput struct {
	Limit int `json:"limit,omitempty"`
}

// GetCertificateInput is the body of privacy:getDeletionCertificate.
type GetCertificateInput struct {
	RequestID string `json:"requestId"`
}

// DeletionRequestView is the API view of a deletion request.
type DeletionRequestView struct {
	RequestID       string     `json:"requestId"`
	Status          string     `json:"status"`
	Type            string     `json:"type"`
	Scope           []string   `json:"scope"`
	RequestedAt     Timestamp  `json:"requestedAt"`
	ScheduledAt     Timestamp  `json:"scheduledAt"`
	CanRecover      bool       `json:"canRecover"`
	RecoverDeadline *Timestamp `json:"recoverDeadline,omitempty"`
	ExecutedAt      *Timestamp `json:"executedAt,omitempty"`
	CancelledAt     *Timestamp `json:"cancelledAt,omitempty"`
	ExportRequestID *string    `json:"exportRequestId,omitempty"`
	Error           *string    `json:"error,omitempty"`
}

// DeletionRequestList is the payload returned by privacy:getDeletionRequests.
type DeletionRequestList struct {
	Requests []DeletionRequestView `json:"requests"`
}

// CertificateView is the API view of a deletion certificate.
type CertificateView struct {
	CertificateID         string           `json:"certificateId"`
	RequestID             string           `json:"requestId"`
	IssuedAt              Timestamp        `json:"issuedAt"`
	DeletedCollections    []string         `json:"deletedCollections"`
	StorageObjectsDeleted int              `json:"storageObjectsDeleted"`
	WarehouseRowsDeleted  int64            `json:"warehouseRowsDeleted"`
	IdentityDeleted       bool             `json:"identityDeleted"`
	Verified              bool             `json:"verified"`
	RemainingData         map[string]int64 `json:"remainingData,omitempty"`
}

// CertificateData is the payload returned by privacy:getDeletionCertificate.
// Certificate is null until the deletion has completed.
type CertificateData struct {
	Certificate *CertificateView `json:"certificate"`
}
