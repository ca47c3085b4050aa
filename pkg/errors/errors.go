// Package errors defines the sentinel errors shared across the matrix builder
// and maps them to process exit codes.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrCoordination     = errors.New("coordination failure")
	ErrLengthMismatch   = errors.New("payload length mismatch")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownTerm      = errors.New("term missing from global vocabulary")
	ErrTimeout          = errors.New("operation timed out")
)

// Exit codes returned by the termmatrix binary.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitInvalidInput = 2
	ExitCoordination = 3
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// Coordinationf builds a fatal coordination error wrapping sentinel.
func Coordinationf(sentinel error, format string, args ...any) *AppError {
	return Newf(sentinel, ExitCoordination, format, args...)
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return ExitInvalidInput
	case errors.Is(err, ErrCoordination),
		errors.Is(err, ErrLengthMismatch),
		errors.Is(err, ErrMalformedPayload),
		errors.Is(err, ErrUnknownTerm),
		errors.Is(err, ErrTimeout):
		return ExitCoordination
	default:
		return ExitFailure
	}
}
