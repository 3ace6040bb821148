package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidRequest            Code = "INVALID_REQUEST"
	CodeEmbeddingUnavailable      Code = "EMBEDDING_UNAVAILABLE"
	CodeCompletionUnavailable     Code = "COMPLETION_UNAVAILABLE"
	CodeForbidden                 Code = "FORBIDDEN"
	CodeNotFound                  Code = "NOT_FOUND"
	CodeConflict                  Code = "CONFLICT"
	CodePersonalizationValidation Code = "PERSONALIZATION_VALIDATION"
	CodeRetentionJob              Code = "RETENTION_JOB"
	CodeInternal                  Code = "INTERNAL"
)

// Error is the typed error surfaced by services. Controllers map Code to an HTTP status.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry with backoff.
func (e *Error) Retryable() bool {
	return e.Code == CodeEmbeddingUnavailable || e.Code == CodeCompletionUnavailable
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func InvalidRequest(message string) *Error {
	return New(CodeInvalidRequest, message)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

func EmbeddingUnavailable(err error) *Error {
	return Wrap(CodeEmbeddingUnavailable, "embedding service unavailable", err)
}

func CompletionUnavailable(err error) *Error {
	return Wrap(CodeCompletionUnavailable, "completion service unavailable", err)
}

// CodeOf extracts the Code of err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	var pErr *PersonalizationValidationError
	if errors.As(err, &pErr) {
		return CodePersonalizationValidation
	}
	var rErr *RetentionJobError
	if errors.As(err, &rErr) {
		return CodeRetentionJob
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps a code to the status returned by the REST layer.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidRequest, CodePersonalizationValidation:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeEmbeddingUnavailable, CodeCompletionUnavailable:
		return http.StatusServiceUnavailable
	case CodeRetentionJob:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

// PersonalizationValidationError is returned when generated prompts violate the output contract
// and could not be repaired.
type PersonalizationValidationError struct {
	Want   int
	Got    int
	Reason string
}

func (e *PersonalizationValidationError) Error() string {
	return fmt.Sprintf("personalization validation failed: want %d prompts, got %d: %s", e.Want, e.Got, e.Reason)
}

// RetentionJobError reports a sweep that deleted only part of its selection.
type RetentionJobError struct {
	Selected  int
	Succeeded int
	Failed    int
	Err       error
}

func (e *RetentionJobError) Error() string {
	msg := fmt.Sprintf("retention sweep incomplete: %d/%d sessions deleted, %d failed", e.Succeeded, e.Selected, e.Failed)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RetentionJobError) Unwrap() error {
	return e.Err
}
