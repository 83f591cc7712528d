package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeDatabaseError, "connection failed"),
			expected: "[DATABASE_ERROR] connection failed",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeStorageError, "download failed", errors.New("network timeout")),
			expected: "[STORAGE_ERROR] download failed: network timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeQueryError, "query failed", underlying)

	assert.Equal(t, underlying, err.Unwrap())
	assert.ErrorIs(t, err, underlying)
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeDatabaseError, "error 1")
	err2 := New(CodeDatabaseError, "error 2")
	err3 := New(CodeStorageError, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"database error", ErrDatabaseError, IsDatabaseError, true},
		{"wrapped database error", Wrap(CodeDatabaseError, "db", errors.New("refused")), IsDatabaseError, true},
		{"storage is not database", ErrStorageError, IsDatabaseError, false},
		{"nil error", nil, IsDatabaseError, false},
		{"storage error", Wrap(CodeStorageError, "cos", errors.New("403")), IsStorageError, true},
		{"parse error", Wrap(CodeParseError, "invalid query", errors.New("1:8: unexpected")), IsParseError, true},
		{"query error behind fmt wrapping", fmt.Errorf("run: %w", New(CodeQueryError, "boom")), IsQueryError, true},
		{"cancelled", ErrQueryCancelled, IsCancelled, true},
		{"query error is not cancelled", ErrQueryError, IsCancelled, false},
		{"not found", New(CodeNotFound, "snapshot missing"), IsNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeParseError, GetErrorCode(Wrap(CodeParseError, "bad", nil)))
	assert.Equal(t, CodeQueryCancelled, GetErrorCode(fmt.Errorf("x: %w", ErrQueryCancelled)))
	assert.Equal(t, CodeUnknown, GetErrorCode(errors.New("plain")))
	assert.Equal(t, CodeUnknown, GetErrorCode(nil))
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "invalid query", GetErrorMessage(Wrap(CodeParseError, "invalid query", errors.New("x"))))
	assert.Equal(t, "plain", GetErrorMessage(errors.New("plain")))
	assert.Equal(t, "", GetErrorMessage(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrParseError, 400},
		{ErrQueryError, 400},
		{ErrInvalidInput, 400},
		{ErrNotFound, 404},
		{ErrAlreadyExists, 409},
		{ErrTimeout, 504},
		{ErrQueryCancelled, 499},
		{ErrDatabaseError, 500},
		{errors.New("plain"), 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), GetErrorCode(tt.err))
	}
}
