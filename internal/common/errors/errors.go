// Package errors provides standardized error handling for the assessment
// submission and email-dispatch paths.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeAssessmentValidationFailed ErrorCode = "ASSESSMENT_VALIDATION_FAILED"

	ErrCodeDatabaseInsertFailed ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeQueueItemNotFound    ErrorCode = "QUEUE_ITEM_NOT_FOUND"
	ErrCodeAssessmentNotFound   ErrorCode = "ASSESSMENT_NOT_FOUND"

	ErrCodeEmailSendFailed   ErrorCode = "EMAIL_SEND_FAILED"
	ErrCodeStatusWriteFailed ErrorCode = "STATUS_WRITE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable submission validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssessmentValidationFailed,
		Message:   "Assessment payload validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueueItemNotFoundError creates a non-retryable lookup error.
func NewQueueItemNotFoundError(itemID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueueItemNotFound,
		Message:   "Queue item not found",
		Details:   fmt.Sprintf("itemId: %s", itemID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAssessmentNotFoundError creates a non-retryable lookup error.
func NewAssessmentNotFoundError(assessmentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssessmentNotFound,
		Message:   "Assessment not found",
		Details:   fmt.Sprintf("assessmentId: %s", assessmentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmailSendFailedError creates a retryable transport error. The recipient
// label ("user" or "operator") makes the captured error unambiguous about
// which leg of the dispatch failed.
func NewEmailSendFailedError(recipient string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailSendFailed,
		Message:   "Email delivery failed",
		Details:   fmt.Sprintf("recipient: %s, error: %s", recipient, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStatusWriteFailedError creates a retryable terminal-write error.
func NewStatusWriteFailedError(itemID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStatusWriteFailed,
		Message:   "Queue item status write failed",
		Details:   fmt.Sprintf("itemId: %s, error: %s", itemID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure for the manual-send endpoint
// and other synchronous surfaces.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Internal error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP Integration
// ==========================

// HTTPStatus maps an error code to the response status used by the API layer.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeAssessmentValidationFailed:
		return http.StatusBadRequest
	case ErrCodeQueueItemNotFound, ErrCodeAssessmentNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns the wire-facing error kind. Synchronous send failures are
// reported as "internal" regardless of the underlying transport error.
func Kind(code ErrorCode) string {
	switch code {
	case ErrCodeAssessmentValidationFailed:
		return "invalid-argument"
	case ErrCodeQueueItemNotFound, ErrCodeAssessmentNotFound:
		return "not-found"
	default:
		return "internal"
	}
}
