package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/homed/errors"
)

// ErrorHandler prints user-facing messages for homed errors.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr.
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a hint for err based on its code and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeDaemonNotRunning:
		fmt.Fprintf(h.Out, "Daemon is not running. Start it with 'homed serve'.\n")

	case errors.ErrCodeAuthFailed, errors.ErrCodeNotAuthenticated:
		fmt.Fprintf(h.Out, "Not logged in or session expired. Run 'homed login'.\n")

	case errors.ErrCodeInvalidCredentials:
		fmt.Fprintf(h.Out, "Invalid email or password.\n")

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.Out, "Configuration is invalid: %v\n", err)
		fmt.Fprintf(h.Out, "Run 'homed config show' to inspect the merged configuration.\n")

	case errors.ErrCodeInvalidPath, errors.ErrCodeInvalidInput:
		if homeErr, ok := err.(*errors.HomeError); ok {
			fmt.Fprintf(h.Out, "Update rejected: %s\n", homeErr.Message)
		} else {
			fmt.Fprintf(h.Out, "Update rejected: %v\n", err)
		}

	default:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
	}

	if h.Verbose {
		if homeErr, ok := err.(*errors.HomeError); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", homeErr.ToJSON())
		}
	}
	return err
}
