// internal/common/errors/errors.go
// Package errors provides the standardized error taxonomy for the sync engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Error Codes
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeValidation     ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidTarget  ErrorCode = "INVALID_TARGET"
	ErrCodeAlreadyLinked  ErrorCode = "ALREADY_LINKED"
	ErrCodeSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"
	ErrCodeSyncFailed     ErrorCode = "SYNC_FAILED"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// EngineError represents a structured engine error.
type EngineError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`

	cause error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("EngineError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *EngineError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. Constructors
// ==========================

// NewNotFoundError creates a non-retryable lookup error for a missing resource.
func NewNotFoundError(resource, id string) *EngineError {
	return &EngineError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable input validation error.
func NewValidationError(details string) *EngineError {
	return &EngineError{
		Code:      ErrCodeValidation,
		Message:   "Validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTargetError creates a non-retryable error for a sync target
// outside [synced_version, current_version].
func NewInvalidTargetError(target, syncedVersion, currentVersion int) *EngineError {
	return &EngineError{
		Code:      ErrCodeInvalidTarget,
		Message:   "Target version out of valid range",
		Details:   fmt.Sprintf("target: %d, syncedVersion: %d, currentVersion: %d", target, syncedVersion, currentVersion),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyLinkedError creates a non-retryable error for a duplicate
// branch sync initialization.
func NewAlreadyLinkedError(locationID, masterMenuID string) *EngineError {
	return &EngineError{
		Code:      ErrCodeAlreadyLinked,
		Message:   "Branch is already linked to this master menu",
		Details:   fmt.Sprintf("locationId: %s, masterMenuId: %s", locationID, masterMenuID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSyncInProgressError creates a retryable error for lock contention on a
// branch sync link.
func NewSyncInProgressError(branchSyncID string) *EngineError {
	return &EngineError{
		Code:      ErrCodeSyncInProgress,
		Message:   "Another sync is already running for this branch",
		Details:   fmt.Sprintf("branchSyncId: %s", branchSyncID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSyncFailedError creates a retryable error for a storage failure during
// sync apply. The partial branch write has been rolled back by the caller.
func NewSyncFailedError(branchSyncID string, err error) *EngineError {
	return &EngineError{
		Code:      ErrCodeSyncFailed,
		Message:   "Sync apply failed and was rolled back",
		Details:   fmt.Sprintf("branchSyncId: %s, error: %s", branchSyncID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *EngineError {
	return &EngineError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected internal error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Predicates
// ==========================

// CodeOf extracts the error code, or ErrCodeInternal for unstructured errors.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool       { return CodeOf(err) == ErrCodeNotFound }
func IsValidation(err error) bool     { return CodeOf(err) == ErrCodeValidation }
func IsInvalidTarget(err error) bool  { return CodeOf(err) == ErrCodeInvalidTarget }
func IsAlreadyLinked(err error) bool  { return CodeOf(err) == ErrCodeAlreadyLinked }
func IsSyncInProgress(err error) bool { return CodeOf(err) == ErrCodeSyncInProgress }
func IsSyncFailed(err error) bool     { return CodeOf(err) == ErrCodeSyncFailed }

// IsRetryable reports whether the error is worth retrying by the caller.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}
