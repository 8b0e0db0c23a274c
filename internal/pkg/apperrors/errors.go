package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/validate"
)

type ErrorType string

const (
	ErrInvalidRequest   ErrorType = "INVALID_REQUEST"
	ErrValidation       ErrorType = "VALIDATION_FAILED"
	ErrAuthFailed       ErrorType = "AUTH_FAILED"
	ErrSignatureInvalid ErrorType = "SIGNATURE_INVALID"
	ErrForbidden        ErrorType = "FORBIDDEN"
	ErrNotFound         ErrorType = "NOT_FOUND"
	ErrConflict         ErrorType = "CONFLICT"
	ErrReadOnly         ErrorType = "READ_ONLY"
	ErrRateLimited      ErrorType = "RATE_LIMITED"
	ErrUpstream         ErrorType = "UPSTREAM_ERROR"
	ErrInternal         ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType   `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
	HTTPStatus int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

// NewValidation carries the per-field report in Details.
func NewValidation(cause error, details interface{}) *AppError {
	appErr := New(ErrValidation, "fund settings failed validation", cause)
	appErr.Details = details
	return appErr
}

func NewNotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

// Wrap maps validation reports and model sentinels to their error type and
// everything else to INTERNAL_ERROR.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var vErr *validate.ValidationError
	if errors.As(err, &vErr) {
		return NewValidation(err, vErr.Errors())
	}
	switch {
	case errors.Is(err, model.ErrInvalidAddress), errors.Is(err, model.ErrAddressMismatch):
		return New(ErrInvalidRequest, err.Error(), err)
	case errors.Is(err, model.ErrSignatureRequired):
		return New(ErrAuthFailed, err.Error(), err)
	case errors.Is(err, model.ErrSignatureInvalid):
		return New(ErrSignatureInvalid, err.Error(), err)
	case errors.Is(err, model.ErrFundNotFound):
		return New(ErrNotFound, err.Error(), err)
	case errors.Is(err, model.ErrFundExists), errors.Is(err, model.ErrRevisionConflict):
		return New(ErrConflict, err.Error(), err)
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrAuthFailed, ErrSignatureInvalid:
		return http.StatusUnauthorized
	case ErrForbidden, ErrReadOnly:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrValidation:
		return "Fix every field listed in details and resubmit."
	case ErrSignatureInvalid:
		return "Sign the digest from /digest with a fund manager, the governor, or the fund Safe."
	case ErrConflict:
		return "Reload the fund and retry against its current revision."
	case ErrAuthFailed:
		return "Check API keys and signatures."
	case ErrRateLimited:
		return "Retry after a short delay."
	case ErrReadOnly:
		return "The registry is in read-only mode."
	default:
		return ""
	}
}
