package domain

import (
	"errors"
	"net/http"
)

// Generic business errors. AppError wraps one of them so callers can test
// the kind with errors.Is.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInUse              = errors.New("resource still referenced")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternalError      = errors.New("internal error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidSession     = errors.New("invalid session")
	ErrInvalidResetCode   = errors.New("invalid or expired reset code")
)

// Response codes carried in the "code" field of the JSON envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRefreshRequired    = "REFRESH_REQUIRED"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeInvalidSession     = "INVALID_SESSION"
	CodeInvalidUser        = "INVALID_USER"
	CodeInvalidResetCode   = "INVALID_OR_EXPIRED_CODE"
	CodeInvalidPassword    = "INVALID_PASSWORD"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is an error with an HTTP status, a machine readable reason and a
// user facing message.
type AppError struct {
	Code    int    // HTTP status
	Reason  string // envelope code, e.g. FORBIDDEN
	Message string
	Fields  []FieldError
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Reason: CodeNotFound, Message: msg, Err: ErrNotFound}
}

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Reason: CodeValidation, Message: msg, Err: ErrInvalidInput}
}

func NewValidationError(msg string, fields []FieldError) *AppError {
	return &AppError{Code: http.StatusBadRequest, Reason: CodeValidation, Message: msg, Fields: fields, Err: ErrInvalidInput}
}

func NewInternalError(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Reason: CodeInternal, Message: msg, Err: err}
}

// NewConflictError reports a duplicate unique field. Conflicts are rendered
// as 400 like other client input problems.
func NewConflictError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Reason: CodeConflict, Message: msg, Err: ErrAlreadyExists}
}

// NewInUseError reports a delete refused because other records reference the target.
func NewInUseError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Reason: CodeConflict, Message: msg, Err: ErrInUse}
}

func NewForbiddenError(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Reason: CodeForbidden, Message: msg, Err: ErrForbidden}
}

func NewUnauthorizedError(reason, msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Reason: reason, Message: msg, Err: ErrUnauthorized}
}

func NewInvalidCredentialsError() *AppError {
	return &AppError{Code: http.StatusUnauthorized, Reason: CodeInvalidCredentials, Message: "Invalid credentials", Err: ErrInvalidCredentials}
}

func NewSessionExpiredError() *AppError {
	return &AppError{Code: http.StatusUnauthorized, Reason: CodeSessionExpired, Message: "Session expired, please login again", Err: ErrSessionExpired}
}

func NewInvalidSessionError() *AppError {
	return &AppError{Code: http.StatusUnauthorized, Reason: CodeInvalidSession, Message: "Invalid session", Err: ErrInvalidSession}
}

func NewInvalidResetCodeError() *AppError {
	return &AppError{Code: http.StatusBadRequest, Reason: CodeInvalidResetCode, Message: "Invalid or expired code", Err: ErrInvalidResetCode}
}

// AsAppError extracts an *AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func NewRateLimitedError(msg string) *AppError {
	return &AppError{Code: http.StatusTooManyRequests, Reason: CodeRateLimited, Message: msg}
}
