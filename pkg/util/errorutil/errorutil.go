package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes crossing the repository boundary.
const (
	CodeAuthRequired      = "AUTH_REQUIRED"
	CodeValidation        = "VALIDATION_FAILED"
	CodePersistence       = "PERSISTENCE_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks; matching is by code.
var (
	ErrAuthRequired      = &DomainError{Code: CodeAuthRequired}
	ErrValidation        = &DomainError{Code: CodeValidation}
	ErrPersistence       = &DomainError{Code: CodePersistence}
	ErrNotFound          = &DomainError{Code: CodeNotFound}
	ErrInvalidTransition = &DomainError{Code: CodeInvalidTransition}
	ErrForbidden         = &DomainError{Code: CodeForbidden}
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

// Is matches another DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewAuthRequired() error {
	return NewDomainError(CodeAuthRequired, "not authenticated", http.StatusUnauthorized, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewPersistenceError wraps a failed gateway call on a primary write.
func NewPersistenceError(op string, err error) error {
	return &DomainError{
		Code:       CodePersistence,
		Message:    op + " failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// WrapPersistence returns err unchanged when it already is a DomainError and
// wraps it as a persistence failure of op otherwise.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return NewPersistenceError(op, err)
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

func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("cannot move ticket from %s to %s", from, to),
		http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeAuthRequired, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if domainErr.HTTPStatus == 0 {
			domainErr.HTTPStatus = http.StatusInternalServerError
		}
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts err into a DomainError, leaving nil untouched.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
