package cmd

import (
	"errors"
	"fmt"
)

// Exit statuses.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitRuntime = 2
)

// ExitError carries the process exit status for an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(format string, args ...interface{}) error {
	return &ExitError{Code: ExitUsage, Err: fmt.Errorf(format, args...)}
}

func runtimeError(format string, args ...interface{}) error {
	return &ExitError{Code: ExitRuntime, Err: fmt.Errorf(format, args...)}
}

// exitCode maps an error to a status. Errors cobra raises itself (flag
// parsing, flag groups) carry no ExitError and count as usage errors.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsage
}
