package errors

import (
	"net/http"
	"time"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrUnauthorized       ErrorCode = "40100"
	ErrInvalidCredentials ErrorCode = "40101"
	ErrTokenExpired       ErrorCode = "40102"

	// Authorization errors (403xx)
	ErrForbidden ErrorCode = "40301"

	// Resource errors (404xx)
	ErrSeriesNotFound ErrorCode = "40401"
	ErrVideoNotFound  ErrorCode = "40402"
	ErrUserNotFound   ErrorCode = "40403"

	// Request errors (400xx)
	ErrInvalidRequest    ErrorCode = "40001"
	ErrValidationFailed  ErrorCode = "40002"
	ErrInsufficientCoins ErrorCode = "40003"

	// Content state errors (410xx)
	ErrInactiveContent ErrorCode = "41001"

	// Server errors (500xx)
	ErrInternalServer   ErrorCode = "50001"
	ErrTransientFailure ErrorCode = "50301"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	Timestamp  string    `json:"timestamp,omitempty"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id"`
	Path      string   `json:"path,omitempty"`
	Method    string   `json:"method,omitempty"`
}

// NewErrorResponse builds the standard error envelope for a request
func NewErrorResponse(err *APIError, requestID, path, method string) ErrorResponse {
	e := *err
	e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return ErrorResponse{
		Error:     e,
		RequestID: requestID,
		Path:      path,
		Method:    method,
	}
}

// GetHTTPStatusFromCode maps an error code to its HTTP status class
func GetHTTPStatusFromCode(code ErrorCode) int {
	switch code {
	case ErrUnauthorized, ErrInvalidCredentials, ErrTokenExpired:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrSeriesNotFound, ErrVideoNotFound, ErrUserNotFound:
		return http.StatusNotFound
	case ErrInvalidRequest, ErrValidationFailed, ErrInsufficientCoins:
		return http.StatusBadRequest
	case ErrInactiveContent:
		return http.StatusGone
	case ErrTransientFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common errors
var (
	ErrUnauthorizedError = &APIError{
		Code:       ErrUnauthorized,
		Message:    "Authentication required",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentialsError = &APIError{
		Code:       ErrInvalidCredentials,
		Message:    "Invalid email or password",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpiredError = &APIError{
		Code:       ErrTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbiddenError = &APIError{
		Code:       ErrForbidden,
		Message:    "Access denied",
		HTTPStatus: http.StatusForbidden,
	}

	ErrSeriesNotFoundError = &APIError{
		Code:       ErrSeriesNotFound,
		Message:    "Series not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrVideoNotFoundError = &APIError{
		Code:       ErrVideoNotFound,
		Message:    "Video not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUserNotFoundError = &APIError{
		Code:       ErrUserNotFound,
		Message:    "User not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrInactiveContentError = &APIError{
		Code:       ErrInactiveContent,
		Message:    "Content is no longer available",
		HTTPStatus: http.StatusGone,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrTransientFailureError = &APIError{
		Code:       ErrTransientFailure,
		Message:    "Service temporarily unavailable, please retry",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// InsufficientCoinsDetails is the client-facing breakdown attached to an
// insufficient-coins rejection
type InsufficientCoinsDetails struct {
	CoinsRequired  int64 `json:"coinsRequired"`
	CoinsAvailable int64 `json:"coinsAvailable"`
	CoinsShortfall int64 `json:"coinsShortfall"`
	Deductions     any   `json:"deductions,omitempty"`
}

// NewInsufficientCoinsError creates an insufficient-coins error carrying
// the required/available/shortfall detail for client display
func NewInsufficientCoinsError(required, available int64, deductions any) *APIError {
	return &APIError{
		Code:    ErrInsufficientCoins,
		Message: "Insufficient coin balance",
		Details: InsufficientCoinsDetails{
			CoinsRequired:  required,
			CoinsAvailable: available,
			CoinsShortfall: required - available,
			Deductions:     deductions,
		},
		HTTPStatus: http.StatusBadRequest,
	}
}
