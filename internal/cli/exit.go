package cli

import (
	"errors"
	"fmt"
)

// Process exit codes
const (
	ExitSourceErrors = 1 // The cycle ran but at least one source failed
	ExitFatal        = 2 // The cycle could not run
)

// ErrSourceErrors marks a completed cycle in which some sources failed
var ErrSourceErrors = errors.New("one or more sources failed")

// ExitError carries the process exit code for a command failure
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v (exit %d)", e.Err, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps a command error to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFatal
}
