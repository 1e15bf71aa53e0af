// Package exitcodes defines the process exit codes of gotest-jtl.
package exitcodes

import (
	"errors"
	"fmt"
)

// Exit code constants used by gotest-jtl
// * Success (0): every reported test passed or was skipped
// * TestFailure (1): go test reported failures
// * RuntimeErr (2): the reporter itself failed (I/O, config, empty run)
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)

// RuntimeError represents an operational error that should lead to exit code 2
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError wraps err. A nil err stays nil.
func NewRuntimeError(err error) error {
	if err == nil {
		return nil
	}
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports that the run completed but tests failed (exit code 1)
type TestFailureError struct {
	Failed int
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %d test(s) failed or errored", e.Failed)
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// FromError maps an error to an exit code.
func FromError(err error) int {
	switch {
	case err == nil:
		return Success
	case IsTestFailureError(err):
		return TestFailure
	default:
		return RuntimeErr
	}
}
