// Package exception defines the error type shared by townfeed's ingestion
// and rebuild pipeline. Errors are categorized by whether they may be
// retried (transient fetch failures) or skipped (bad rows, unreadable
// snapshots), which drives the pipeline's best-effort semantics.
package exception

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// AppError is the error type raised by townfeed components.
// It records the module the error originated in, a concise message, the
// wrapped cause, and retry/skip classification flags.
type AppError struct {
	// Module indicates where the error occurred (e.g. "parser", "partition", "ingest").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped cause, if any.
	OriginalErr error
	// isRetryable marks transient failures worth another attempt.
	isRetryable bool
	// isSkippable marks failures the pipeline may tolerate by dropping the input.
	isSkippable bool
	// StackTrace captures the stack at construction time, for debugging.
	StackTrace string
}

// New creates a new AppError.
//
// Parameters:
//
//	module: The module where the error occurred.
//	message: The error message.
//	originalErr: The cause to wrap, or nil.
//	isSkippable: Whether the pipeline may drop the offending input.
//	isRetryable: Whether the operation may be retried.
func New(module, message string, originalErr error, isSkippable, isRetryable bool) *AppError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &AppError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  string(buf[:n]),
	}
}

// Newf creates a new AppError with a formatted message and no cause.
// The resulting error is neither retryable nor skippable.
func Newf(module, format string, a ...interface{}) *AppError {
	return New(module, fmt.Sprintf(format, a...), nil, false, false)
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped cause for errors.Unwrap.
func (e *AppError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether this error is retryable.
func (e *AppError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable reports whether this error is skippable.
func (e *AppError) IsSkippable() bool {
	return e.isSkippable
}

// IsTemporary determines whether an error is transient (network timeouts,
// refused connections). An AppError's IsRetryable flag takes precedence.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF")
}

// IsFatal determines whether an error is fatal, meaning neither a retry
// nor a skip can make progress past it.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return !ae.IsRetryable() && !ae.IsSkippable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid argument") ||
		strings.Contains(errStr, "permission denied")
}

// ExtractErrorMessage returns the cleaner Message field for AppErrors and
// the standard Error() string otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
