package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// Sentinel errors for the credential and token lifecycle.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountInactive     = errors.New("account inactive")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrMalformedHash       = errors.New("malformed password hash")
	ErrPersistence         = errors.New("persistence failure")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InvalidCredentials creates a 401 error for a failed login attempt. The same
// error is returned for an unknown email and a wrong password so callers
// cannot probe which accounts exist.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredentials,
	}
}

// AccountInactive creates a 401 error for a deactivated account.
func AccountInactive() *AppError {
	return &AppError{
		Code:    "ACCOUNT_INACTIVE",
		Message: "account is deactivated",
		Status:  http.StatusUnauthorized,
		Err:     ErrAccountInactive,
	}
}

// InvalidRefreshToken creates a 401 error for a refresh token that is
// unknown, revoked, or fails verification. Revoked and unknown tokens are
// deliberately indistinguishable.
func InvalidRefreshToken() *AppError {
	return &AppError{
		Code:    "INVALID_REFRESH_TOKEN",
		Message: "invalid refresh token",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidRefreshToken,
	}
}

// RefreshTokenExpired creates a 401 error for a refresh token past its expiry.
func RefreshTokenExpired() *AppError {
	return &AppError{
		Code:    "REFRESH_TOKEN_EXPIRED",
		Message: "refresh token has expired",
		Status:  http.StatusUnauthorized,
		Err:     ErrRefreshTokenExpired,
	}
}

// InvalidAccessToken creates a 401 error for an access token that fails
// signature, expiry, or structural checks.
func InvalidAccessToken() *AppError {
	return &AppError{
		Code:    "INVALID_ACCESS_TOKEN",
		Message: "invalid or expired access token",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidAccessToken,
	}
}

// MalformedHash creates a 500 error for a stored password digest that cannot
// be parsed. This indicates data corruption, not a caller mistake.
func MalformedHash(err error) *AppError {
	return &AppError{
		Code:    "MALFORMED_HASH",
		Message: "stored password hash is malformed",
		Status:  http.StatusInternalServerError,
		Err:     errors.Join(ErrMalformedHash, err),
	}
}

// Persistence creates a 500 error wrapping a store failure.
func Persistence(err error) *AppError {
	return &AppError{
		Code:    "PERSISTENCE_ERROR",
		Message: "a storage error occurred",
		Status:  http.StatusInternalServerError,
		Err:     errors.Join(ErrPersistence, err),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrRefreshTokenExpired),
		errors.Is(err, ErrInvalidAccessToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
