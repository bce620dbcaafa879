package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// Pipeline outcomes surfaced to callers
	ErrTypeGeneration         ErrorType = "generation_failed"
	ErrTypeValidationRejected ErrorType = "validation_rejected"
	ErrTypeExecution          ErrorType = "execution_failed"

	ErrTypeInvalidInput ErrorType = "invalid_input"
	ErrTypeDatabase     ErrorType = "database"
	ErrTypeValidation   ErrorType = "validation"
	ErrTypeConfig       ErrorType = "config"
	ErrTypeNetwork      ErrorType = "network"
	ErrTypeCache        ErrorType = "cache"
	ErrTypeFileSystem   ErrorType = "filesystem"
	ErrTypeInternal     ErrorType = "internal"
)

// Error represents a structured error with type and optional suggestions
type Error struct {
	Type        ErrorType
	Message     string
	Cause       error
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSuggestion adds a suggestion for resolving the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// New creates a new structured error
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new structured error with formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type == errType
	}

	return false
}

// GetType returns the error type if it's a structured error
func GetType(err error) ErrorType {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type
	}

	return ErrTypeInternal
}

// GenerationFailed reports that the completion service produced no conforming
// structured result.
func GenerationFailed(message string, cause error) *Error {
	return Wrap(cause, ErrTypeGeneration, message).
		WithSuggestion("Try rephrasing the question with the metric and grouping you want")
}

// ValidationRejected reports a generated query that failed a safety check.
// The reason is kept verbatim for auditing.
func ValidationRejected(reason string) *Error {
	return New(ErrTypeValidationRejected, reason)
}

// ExecutionFailed reports a data store error on an already validated query.
func ExecutionFailed(message string, cause error) *Error {
	return Wrap(cause, ErrTypeExecution, message)
}

// UserMessage returns the text shown to an end user for err. Validation
// reasons pass through unchanged; store and model internals do not.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var structErr *Error
	if !errors.As(err, &structErr) {
		return "something went wrong while answering the question"
	}

	switch structErr.Type {
	case ErrTypeGeneration:
		return "could not understand the question"
	case ErrTypeValidationRejected:
		return structErr.Message
	case ErrTypeExecution:
		return "could not run that analysis"
	case ErrTypeInvalidInput, ErrTypeConfig:
		return structErr.Message
	default:
		return "something went wrong while answering the question"
	}
}

// NewConfigError creates a configuration error with suggestions
func NewConfigError(message, field string) *Error {
	err := New(ErrTypeConfig, message)
	if field != "" {
		err.Message = fmt.Sprintf("%s (field: %s)", message, field)
	}

	return err.
		WithSuggestion("Check your configuration file syntax").
		WithSuggestion("Run with --help to see valid configuration options")
}
