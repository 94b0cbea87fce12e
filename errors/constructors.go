package errors

import "fmt"

// AuthFailed creates an authentication failure for a bad, expired or missing token
func AuthFailed(cause error) *HomeError {
	if cause == nil {
		return New(ErrCodeAuthFailed, "authentication failed")
	}
	return Wrap(cause, ErrCodeAuthFailed, "authentication failed")
}

// NotAuthenticated creates an error for an operation attempted before the handshake
func NotAuthenticated(event string) *HomeError {
	return New(ErrCodeNotAuthenticated, "not authenticated").
		WithDetail("event", event)
}

// InvalidPath creates an error for a patch addressing a non-existent field
func InvalidPath(path string) *HomeError {
	return New(ErrCodeInvalidPath, fmt.Sprintf("invalid path: %s", path)).
		WithDetail("path", path)
}

// InvalidInput creates an error for patch data that cannot be applied
func InvalidInput(path, reason string) *HomeError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid data for %s: %s", path, reason)).
		WithDetail("path", path)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *HomeError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *HomeError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// UserExists creates an error for registering an email twice
func UserExists(email string) *HomeError {
	return New(ErrCodeUserExists, "email already registered").
		WithDetail("email", email)
}

// UserNotFound creates an error for an unknown account id
func UserNotFound(id string) *HomeError {
	return New(ErrCodeUserNotFound, "user not found").
		WithDetail("id", id)
}

// InvalidCredentials creates a login failure. The email is deliberately
// kept out of the message.
func InvalidCredentials() *HomeError {
	return New(ErrCodeInvalidCredentials, "invalid credentials")
}

// DaemonNotRunning creates an error for commands that need a live daemon
func DaemonNotRunning(addr string) *HomeError {
	return New(ErrCodeDaemonNotRunning, fmt.Sprintf("daemon is not reachable at %s", addr)).
		WithDetail("addr", addr)
}
