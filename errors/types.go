package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Session errors
	ErrCodeAuthFailed       ErrorCode = "AUTH_FAILED"
	ErrCodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"

	// State update errors
	ErrCodeInvalidPath  ErrorCode = "INVALID_PATH"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Account errors
	ErrCodeUserExists         ErrorCode = "USER_EXISTS"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"

	// Daemon errors
	ErrCodeDaemonNotRunning ErrorCode = "DAEMON_NOT_RUNNING"

	// General errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// HomeError represents a structured error with context
type HomeError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *HomeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *HomeError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *HomeError) WithDetail(key string, value interface{}) *HomeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *HomeError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new HomeError
func New(code ErrorCode, message string) *HomeError {
	return &HomeError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a HomeError
func Wrap(err error, code ErrorCode, message string) *HomeError {
	return &HomeError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error carries a specific code anywhere in its chain
func Is(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from the first HomeError in the chain
func GetCode(err error) ErrorCode {
	for err != nil {
		if homeErr, ok := err.(*HomeError); ok {
			return homeErr.Code
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = unwrapper.Unwrap()
	}
	return ""
}
