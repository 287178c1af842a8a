package cmd

import (
	"errors"
	"fmt"

	"github.com/quantmind-br/qpm/internal/core"
)

// ExitError carries the process exit status for a failed command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error
func (e *ExitError) Unwrap() error { return e.Err }

func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

func withExitf(code int, format string, args ...interface{}) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

// ExitCode maps a command error to the process exit status. Errors without
// an explicit code use the network status for fetch failures and the
// general status otherwise.
func ExitCode(err error) int {
	if err == nil {
		return core.ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, core.ErrFetch) {
		return core.ExitNetwork
	}
	return core.ExitGeneral
}

// installExitCode is the network status when every failure was a download
// failure and the install-failed status otherwise
func installExitCode(errs []error) int {
	for _, err := range errs {
		if !errors.Is(err, core.ErrFetch) {
			return core.ExitInstallFailed
		}
	}
	return core.ExitNetwork
}
