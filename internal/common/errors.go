package common

import (
	"errors"
	"fmt"
)

// AppError carries a stable machine-readable code next to the message. The
// HTTP layer maps codes to status codes.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidInput = "INVALID_INPUT"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConfig       = "CONFIG_ERROR"
	CodeDatabase     = "DATABASE_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	// ErrConfiguration marks deployment defects such as broken rule tables.
	ErrConfiguration = errors.New("configuration error")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// InvalidInput wraps ErrInvalidInput under CodeInvalidInput.
func InvalidInput(message string) *AppError {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

// ConfigError wraps ErrConfiguration under CodeConfig.
func ConfigError(message string) *AppError {
	return NewAppError(CodeConfig, message, ErrConfiguration)
}

// ErrorCode returns the AppError code found in err's chain, or "".
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
