// Package errors provides structured error types for membench.
// Every error carries a category, a code, a message and a retryable flag so
// the job can decide whether to retry, count, or abort.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCategory classifies errors by the phase or component that raised them.
type ErrorCategory string

const (
	ErrCategoryConnection ErrorCategory = "CONNECTION"
	ErrCategoryWrite      ErrorCategory = "WRITE"
	ErrCategoryRead       ErrorCategory = "READ"
	ErrCategoryMismatch   ErrorCategory = "MISMATCH"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Connection codes
	CodeConnectFailed = "CONNECT_FAILED"
	CodeSessionLost   = "SESSION_LOST"

	// Write codes
	CodeWriteFailed = "WRITE_FAILED"

	// Read codes
	CodeReadFailed = "READ_FAILED"

	// Mismatch codes
	CodeValueMismatch = "VALUE_MISMATCH"
	CodeNotMember     = "NOT_MEMBER"

	// Validation codes
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeInvalidRange  = "INVALID_RANGE"
	CodeEmptyIndex    = "EMPTY_INDEX"

	// Storage codes
	CodeUnsupportedBackend = "UNSUPPORTED_BACKEND"
	CodeCorruptDocument    = "CORRUPT_DOCUMENT"
	CodeOperationFailed    = "OPERATION_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// BenchError is the structured error type used throughout membench.
type BenchError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string. Details are rendered as sorted
// key=value pairs between the message and the cause.
func (e *BenchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s:%s] %s", e.Category, e.Code, e.Message)
	if len(e.Details) > 0 {
		b.WriteString(" (")
		b.WriteString(formatDetails(e.Details))
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func formatDetails(details map[string]interface{}) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, details[k])
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *BenchError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *BenchError) Is(target error) bool {
	var t *BenchError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new BenchError.
func New(category ErrorCategory, code, message string) *BenchError {
	return &BenchError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new BenchError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *BenchError {
	return &BenchError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *BenchError) WithDetails(details map[string]interface{}) *BenchError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithDetail returns a copy of the error with key set on top of the
// existing details.
func (e *BenchError) WithDetail(key string, value interface{}) *BenchError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return e.WithDetails(details)
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a BenchError.
func GetCategory(err error) ErrorCategory {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a BenchError.
func GetCode(err error) string {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Only transport-level failures are worth another attempt; a failed write or
// read has already been attributed to a phase and aborts it.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryConnection && code == CodeConnectFailed:
		return true
	case category == ErrCategoryConnection && code == CodeSessionLost:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewConnectionError(code, message string, cause error) *BenchError {
	return Wrap(ErrCategoryConnection, code, message, cause)
}

func NewWriteError(message string, cause error) *BenchError {
	return Wrap(ErrCategoryWrite, CodeWriteFailed, message, cause)
}

func NewReadError(message string, cause error) *BenchError {
	return Wrap(ErrCategoryRead, CodeReadFailed, message, cause)
}

func NewMismatchError(code, message string) *BenchError {
	return New(ErrCategoryMismatch, code, message)
}

func NewValidationError(code, message string) *BenchError {
	return New(ErrCategoryValidation, code, message)
}

func NewStorageError(code, message string, cause error) *BenchError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *BenchError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
