// Package errors defines the coded application errors shared by the
// loader, the query engine and the outer surfaces.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown        = "UNKNOWN_ERROR"
	CodeDatabaseError  = "DATABASE_ERROR"
	CodeStorageError   = "STORAGE_ERROR"
	CodeLoadError      = "LOAD_ERROR"
	CodeEmptyFile      = "EMPTY_FILE"
	CodeParseError     = "PARSE_ERROR"
	CodeQueryError     = "QUERY_ERROR"
	CodeQueryCancelled = "QUERY_CANCELLED"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeTimeout        = "TIMEOUT_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeAlreadyExists  = "ALREADY_EXISTS"
	CodeConfigError    = "CONFIG_ERROR"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances, usable as errors.Is targets.
var (
	ErrDatabaseError  = New(CodeDatabaseError, "database error")
	ErrStorageError   = New(CodeStorageError, "storage error")
	ErrLoadError      = New(CodeLoadError, "heap dump load error")
	ErrEmptyFile      = New(CodeEmptyFile, "empty file")
	ErrParseError     = New(CodeParseError, "parse error")
	ErrQueryError     = New(CodeQueryError, "query error")
	ErrQueryCancelled = New(CodeQueryCancelled, "query cancelled")
	ErrInvalidInput   = New(CodeInvalidInput, "invalid input")
	ErrTimeout        = New(CodeTimeout, "operation timeout")
	ErrNotFound       = New(CodeNotFound, "resource not found")
	ErrAlreadyExists  = New(CodeAlreadyExists, "resource already exists")
	ErrConfigError    = New(CodeConfigError, "configuration error")
)

// IsDatabaseError checks if the error is a database error.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabaseError)
}

// IsStorageError checks if the error is a storage error.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageError)
}

// IsParseError checks if the error is a heap dump or query syntax error.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParseError)
}

// IsQueryError checks if the error is a query evaluation error.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrQueryError)
}

// IsCancelled checks if a query was cancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrQueryCancelled)
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error reports a duplicate resource.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// HTTPStatus maps an error code to the HTTP status reported by the web API.
func HTTPStatus(err error) int {
	switch GetErrorCode(err) {
	case CodeParseError, CodeInvalidInput, CodeQueryError:
		return 400
	case CodeNotFound:
		return 404
	case CodeAlreadyExists:
		return 409
	case CodeTimeout:
		return 504
	case CodeQueryCancelled:
		return 499
	}
	return 500
}
