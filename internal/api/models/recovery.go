package models

// RequestRecoveryCodeInput is the body of recovery:requestCode.
type RequestRecoveryCodeInput struct {
	Email string `json:"email"`
}

// RequestRecoveryCodeData is the payload returned by recovery:requestCode.
// The message is deliberately generic: it never reveals whether the email
// has a scheduled deletion.
type RequestRecoveryCodeData struct {
	ExpiresAt *Timestamp `json:"expiresAt,omitempty"`
}

// VerifyRecoveryCodeInput is the body of recovery:verifyCode.
type VerifyRecoveryCodeInput struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RecoveryDeletionInfo describes the deletion a valid code can cancel.
type RecoveryDeletionInfo struct {
	RequestID     string    `json:"requestId"`
	ScheduledAt   Timestamp `json:"scheduledAt"`
	DaysRemaining int       `json:"daysRemaining"`
}

// VerifyRecoveryCodeData is the payload returned by recovery:verifyCode.
type VerifyRecoveryCodeData struct {
	Valid             bool                  `json:"valid"`
	RemainingAttempts *int                  `json:"remainingAttempts,omitempty"`
	DeletionInfo      *RecoveryDeletionInfo `json:"deletionInfo,omitempty"`
}

// RecoverAccountInput is the body of recovery:recoverAccount.
type RecoverAccountInput struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RecoverAccountData is the payload returned by recovery:recoverAccount.
type RecoverAccountData struct {
	Recovered bool `json:"recovered"`
}
