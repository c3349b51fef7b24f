// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 OpenCloudMesh Authors

// Package api provides common HTTP API utilities including error handling.
package api

import (
	"encoding/json"
	"net/http"
)

// Deterministic reason codes for stable error classification.
// These codes should remain stable across versions for client compatibility.
const (
	// Authentication and authorization
	ReasonUnauthenticated      = "unauthenticated"
	ReasonSessionExpired       = "session_expired"
	ReasonInvalidCredentials   = "invalid_credentials"
	ReasonRegistrationDisabled = "registration_disabled"

	// Rate limiting
	ReasonRateLimited = "rate_limited"

	// Request validation
	ReasonBadRequest      = "bad_request"
	ReasonMissingField    = "missing_field"
	ReasonInvalidField    = "invalid_field"
	ReasonPayloadTooLarge = "payload_too_large"
	ReasonNotFound        = "not_found"
	ReasonConflict        = "conflict"

	// Share links
	ReasonLinkUnavailable    = "link_unavailable"
	ReasonStorageUnavailable = "storage_unavailable"

	// Server errors
	ReasonInternalError = "internal_error"
)

// ErrorEnvelope is the standard error response format.
// All error responses should use this structure for consistency.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code       string       `json:"code"`             // HTTP status text (e.g., "Gone")
	ReasonCode string       `json:"reason_code"`      // Deterministic reason code
	Message    string       `json:"message"`          // Human-readable message
	Fields     []FieldError `json:"fields,omitempty"` // Per-field validation failures
}

// FieldError names one rejected request field.
type FieldError struct {
	Field      string `json:"field"`
	ReasonCode string `json:"reason_code"`
	Message    string `json:"message"`
}

// WriteError writes a standardized JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, reasonCode, message string) {
	writeEnvelope(w, statusCode, ErrorDetail{
		Code:       http.StatusText(statusCode),
		ReasonCode: reasonCode,
		Message:    message,
	})
}

// WriteValidationError writes a 400 carrying one entry per rejected field.
func WriteValidationError(w http.ResponseWriter, message string, fields []FieldError) {
	reason := ReasonInvalidField
	if len(fields) == 1 {
		reason = fields[0].ReasonCode
	}
	writeEnvelope(w, http.StatusBadRequest, ErrorDetail{
		Code:       http.StatusText(http.StatusBadRequest),
		ReasonCode: reason,
		Message:    message,
		Fields:     fields,
	})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, detail ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorEnvelope{Error: detail})
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// Common error helpers for frequently used patterns

// WriteUnauthorized writes a 401 Unauthorized error.
func WriteUnauthorized(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusUnauthorized, reasonCode, message)
}

// WriteForbidden writes a 403 Forbidden error.
func WriteForbidden(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusForbidden, reasonCode, message)
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ReasonNotFound, message)
}

// WriteBadRequest writes a 400 Bad Request error.
func WriteBadRequest(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusBadRequest, reasonCode, message)
}

// WriteConflict writes a 409 Conflict error.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, ReasonConflict, message)
}

// WriteTooManyRequests writes a 429 Too Many Requests error.
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, ReasonRateLimited, message)
}

// WriteInternalError writes a 500 Internal Server Error.
// Be careful not to leak sensitive information in the message.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ReasonInternalError, message)
}
