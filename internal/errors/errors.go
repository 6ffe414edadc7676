package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Error types for the failure categories of the file format
type ErrorType string

const (
	ErrorTypeInvalidOffsets ErrorType = "invalid_offsets"
	ErrorTypeSchemaMismatch ErrorType = "schema_mismatch"
	ErrorTypeFormat         ErrorType = "format"
	ErrorTypeIO             ErrorType = "io"
	ErrorTypeConfiguration  ErrorType = "configuration"
	ErrorTypeValidation     ErrorType = "validation"
)

// StructuredError provides rich error context
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Newf is New with a formatted message
func Newf(errType ErrorType, operation, format string, args ...interface{}) *StructuredError {
	return New(errType, operation, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}

	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// captureStack captures the current stack trace
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // Skip runtime.Callers, this function and the constructor
	return pcs[:n]
}

// TypeOf returns the type of the outermost StructuredError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Type, true
	}
	return "", false
}

// IsType reports whether any StructuredError in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var se *StructuredError
		if !errors.As(err, &se) {
			return false
		}
		if se.Type == errType {
			return true
		}
		err = se.Cause
	}
	return false
}

func IsInvalidOffsets(err error) bool { return IsType(err, ErrorTypeInvalidOffsets) }
func IsSchemaMismatch(err error) bool { return IsType(err, ErrorTypeSchemaMismatch) }
func IsFormat(err error) bool         { return IsType(err, ErrorTypeFormat) }
func IsIO(err error) bool             { return IsType(err, ErrorTypeIO) }

// Common error constructors for frequent use cases

// NewInvalidOffsetsError creates an error for a malformed offset or view buffer
func NewInvalidOffsetsError(operation, message string) *StructuredError {
	return New(ErrorTypeInvalidOffsets, operation, message)
}

// NewSchemaMismatchError creates a schema mismatch error
func NewSchemaMismatchError(operation, message string) *StructuredError {
	return New(ErrorTypeSchemaMismatch, operation, message)
}

// NewFormatError creates an error for a corrupt or truncated file
func NewFormatError(operation, message string) *StructuredError {
	return New(ErrorTypeFormat, operation, message)
}

// NewValidationError creates a validation error
func NewValidationError(operation, message string) *StructuredError {
	return New(ErrorTypeValidation, operation, message)
}

// WrapFormatError wraps an error as a format error
func WrapFormatError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeFormat, operation, message)
}

// WrapIOError wraps an error as an I/O error
func WrapIOError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeIO, operation, message)
}

// WrapConfigurationError wraps an error as a configuration error
func WrapConfigurationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeConfiguration, operation, message)
}
