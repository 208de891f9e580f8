package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/Runemoro/knit/internal/mapping"
)

// ErrorCode represents a knit error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound     ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrMappingsDisabled ErrorCode = "MAPPINGS_DISABLED" // 409
	ErrNothingToUndo    ErrorCode = "NOTHING_TO_UNDO"   // 409
	ErrConflict         ErrorCode = "CONFLICT"          // 409
	ErrMalformedMapping ErrorCode = "MALFORMED_MAPPING" // 422
	ErrCancelled        ErrorCode = "CANCELLED"         // 499
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// KnitError represents a structured error with code, status, and details.
type KnitError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *KnitError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *KnitError {
	return &KnitError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a mapping entity that does not exist.
func NewNotFound(identifier string) *KnitError {
	return &KnitError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("mapping not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing file or directory.
func NewFileNotFound(path string) *KnitError {
	return &KnitError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewMappingsDisabled creates a 409 error for operations that need a
// mapping directory when none is configured.
func NewMappingsDisabled() *KnitError {
	return &KnitError{
		Code:    ErrMappingsDisabled,
		Status:  409,
		Message: "no mapping directory configured; set mappings_dir or KNIT_MAPPINGS_DIR",
	}
}

// NewNothingToUndo creates a 409 error when the rename journal has no
// active entries.
func NewNothingToUndo() *KnitError {
	return &KnitError{
		Code:    ErrNothingToUndo,
		Status:  409,
		Message: "no rename to undo",
	}
}

// NewConflict creates a 409 error for renames that collide with an
// existing entity.
func NewConflict(msg string) *KnitError {
	return &KnitError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewMalformedMapping creates a 422 error for a mapping file that cannot be
// parsed.
func NewMalformedMapping(file string, line int, msg string) *KnitError {
	details := map[string]any{"file": file}
	if line > 0 {
		details["line"] = line
	}
	return &KnitError{
		Code:    ErrMalformedMapping,
		Status:  422,
		Message: msg,
		Details: details,
	}
}

// FromFormat converts a mapping format error.
func FromFormat(err *mapping.FormatError) *KnitError {
	return NewMalformedMapping(err.File, err.Line, err.Message)
}

// NewCancelled creates a 499 error when the caller gave up.
func NewCancelled() *KnitError {
	return &KnitError{
		Code:    ErrCancelled,
		Status:  499,
		Message: "request cancelled",
	}
}

// NewInternal creates a 500 error for unexpected internal errors. The
// message stays generic; the cause is kept in Details for logging.
func NewInternal(err error) *KnitError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &KnitError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is (or wraps) a KnitError with the given code.
func Is(err error, code ErrorCode) bool {
	var kErr *KnitError
	if stderrors.As(err, &kErr) {
		return kErr.Code == code
	}
	return false
}
