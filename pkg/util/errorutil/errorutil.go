package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the orchestrator, its clients and the HTTP layer.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeInvalidState       = "INVALID_STATE"
	CodeExternalCallFailed = "EXTERNAL_CALL_FAILED"
	CodeAuditWriteFailed   = "AUDIT_WRITE_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewInvalidState reports an operation attempted from a state that does not permit it.
func NewInvalidState(operation, current string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["operation"] = operation
	details["state"] = current
	return &DomainError{
		Code:       CodeInvalidState,
		Message:    fmt.Sprintf("%s not allowed in state %s", operation, current),
		HTTPStatus: http.StatusConflict,
		Details:    details,
	}
}

// NewExternalCallFailure wraps a transport, timeout or non-2xx failure of an external system.
func NewExternalCallFailure(system, operation string, err error) error {
	return &DomainError{
		Code:       CodeExternalCallFailed,
		Message:    fmt.Sprintf("%s %s failed", system, operation),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"system": system, "operation": operation},
		Err:        err,
	}
}

// NewAuditWriteFailure wraps an audit sink error. It is only ever logged.
func NewAuditWriteFailure(requestID string, err error) error {
	return &DomainError{
		Code:       CodeAuditWriteFailed,
		Message:    "audit append failed",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"request_id": requestID},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
