// Package errors provides the pipeline's structured error type.
// Every failure that crosses a package boundary carries a Code so callers can
// decide between retrying, handing off, or aborting without string matching.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Code classifies an AppError.
type Code string

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeInternal            Code = "INTERNAL"
	CodeCancelled           Code = "CANCELLED"
	CodeUnavailable         Code = "UNAVAILABLE"
	CodeDeviceUnavailable   Code = "DEVICE_UNAVAILABLE"
	CodeReadFailure         Code = "READ_FAILURE"
	CodeWriteFailure        Code = "WRITE_FAILURE"
	CodeTranscriptionFailed Code = "TRANSCRIPTION_FAILED"
	CodeTranslationFailed   Code = "TRANSLATION_FAILED"
	CodeConfigInvalid       Code = "CONFIG_INVALID"
	CodeConfigMissing       Code = "CONFIG_MISSING"
)

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, e.Metadata[k])
		}
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// CodeOf returns the code of the outermost AppError in err's chain.
// Context cancellation maps to CodeCancelled so callers can tell a shutdown
// apart from a real failure.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	if isContextErr(err) {
		return CodeCancelled
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Metadata returns a metadata value from the outermost AppError, if any.
func Metadata(err error, key string) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Metadata[key]
	}
	return ""
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeUnavailable, CodeDeviceUnavailable, CodeReadFailure:
		return true
	default:
		return false
	}
}

func isContextErr(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
