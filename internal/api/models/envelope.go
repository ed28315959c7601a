// Package models provides request and response models for the PaceLog
// privacy API. Every endpoint answers with the uniform envelope: either
// {success:true, data, message?} or {success:false, error:{code, message}}.
package models

import (
	"encoding/json"
	"net/http"
)

// ErrorInfo is the error payload of a failed envelope.
type ErrorInfo struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Envelope is the uniform RPC response shape.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// OKEnvelope builds a success envelope around the given payload.
func OKEnvelope(data any, message string) Envelope {
	return Envelope{Success: true, Data: data, Message: message}
}

// ErrorEnvelope builds a failure envelope with the given canonical code.
func ErrorEnvelope(code, message string, details map[string]any) Envelope {
	return Envelope{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message, Details: details},
	}
}

// Write serializes the envelope with the given HTTP status.
func (e Envelope) Write(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}
