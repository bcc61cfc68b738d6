package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API consumers.
const (
	CodeValidation             = "VALIDATION_FAILED"
	CodePermissionDenied       = "PERMISSION_DENIED"
	CodeTransitionDenied       = "TRANSITION_DENIED"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeNotFound               = "NOT_FOUND"
	CodeUpstreamUnavailable    = "UPSTREAM_UNAVAILABLE"
	CodeAlreadyCheckedIn       = "ALREADY_CHECKED_IN"
	CodeNotCheckedIn           = "NOT_CHECKED_IN"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Retryable  bool
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

func NewPermissionDenied(message string) error {
	return NewDomainError(CodePermissionDenied, message, http.StatusForbidden, nil)
}

// NewTransitionDenied reports a failed state-machine guard. The ticket is unchanged.
func NewTransitionDenied(from, to, role, reason string) error {
	return NewDomainError(CodeTransitionDenied, reason, http.StatusConflict, map[string]any{
		"from": from,
		"to":   to,
		"role": role,
	})
}

func NewConcurrentModification(resource string, details map[string]any) error {
	de := NewDomainError(CodeConcurrentModification, "state changed, please refresh", http.StatusConflict, details)
	if de.Details == nil {
		de.Details = map[string]any{}
	}
	de.Details["resource"] = resource
	return de
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

// NewUpstreamUnavailable marks a store or channel failure the caller may retry with backoff.
func NewUpstreamUnavailable(dependency string, err error) error {
	return &DomainError{
		Code:       CodeUpstreamUnavailable,
		Message:    "service temporarily unavailable, please retry",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"dependency": dependency},
		Retryable:  true,
		Err:        err,
	}
}

func NewAlreadyCheckedIn(propertyID string) error {
	return NewDomainError(CodeAlreadyCheckedIn, "already checked in at this property", http.StatusConflict,
		map[string]any{"property_id": propertyID})
}

func NewNotCheckedIn(propertyID string) error {
	return NewDomainError(CodeNotCheckedIn, "not checked in at this property", http.StatusConflict,
		map[string]any{"property_id": propertyID})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
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
	if errors.Is(err, context.DeadlineExceeded) {
		return NewUpstreamUnavailable("store", err).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
