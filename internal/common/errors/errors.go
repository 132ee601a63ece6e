// internal/common/errors/errors.go
// Package errors provides standardized error handling for the decision engine.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrCodeUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrCodeConflict        ErrorCode = "CONFLICT_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"

	ErrCodeScenarioLimit        ErrorCode = "SCENARIO_LIMIT_REACHED"
	ErrCodePopulationLoadFailed ErrorCode = "POPULATION_LOAD_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable bad-input error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamError creates a retryable remote-call error.
func NewUpstreamError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstream,
		Message:   fmt.Sprintf("Remote service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamTimeoutError creates a retryable remote timeout error.
func NewUpstreamTimeoutError(service string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamTimeout,
		Message:   fmt.Sprintf("Remote service '%s' timeout", service),
		Details:   "call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError creates a non-retryable conflicting-operation error.
// Raised when a bulk run is started while another is still active.
func NewConflictError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflict,
		Message:   "Operation conflicts with an active run",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable stale-reference error.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScenarioLimitError creates a non-retryable business rule error for
// the comparison-set cap.
func NewScenarioLimitError(max int) *StandardError {
	return &StandardError{
		Code:      ErrCodeScenarioLimit,
		Message:   "Scenario limit reached",
		Details:   fmt.Sprintf("at most %d scenarios may be compared", max),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPopulationLoadError creates a retryable population-source error.
func NewPopulationLoadError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePopulationLoadFailed,
		Message:   "Employee population load failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

func codeOf(err error) (ErrorCode, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code, true
	}
	return "", false
}

// IsValidation checks whether an error is a bad-input error.
func IsValidation(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeValidation
}

// IsUpstream checks whether an error came from a remote collaborator.
func IsUpstream(err error) bool {
	code, ok := codeOf(err)
	return ok && (code == ErrCodeUpstream || code == ErrCodeUpstreamTimeout)
}

// IsConflict checks whether an error reports an already-active run.
func IsConflict(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeConflict
}

// IsNotFound checks whether an error reports a stale reference.
func IsNotFound(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeNotFound
}

// IsRetryable checks whether the operation might succeed on retry.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}
