package errors

import (
	"fmt"
	"testing"

	"github.com/Runemoro/knit/internal/mapping"
)

func TestKnitError_Error(t *testing.T) {
	err := &KnitError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "mapping not found",
	}

	expected := "NOT_FOUND: mapping not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("class is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "class is required" {
		t.Errorf("Message = %q, want %q", err.Message, "class is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("a/B#c:I")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "a/B#c:I" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "a/B#c:I")
	}
}

func TestNewFileNotFound(t *testing.T) {
	err := NewFileNotFound("/tmp/missing")

	if err.Code != ErrFileNotFound || err.Status != 404 {
		t.Errorf("got %s/%d, want FILE_NOT_FOUND/404", err.Code, err.Status)
	}
	if err.Details["path"] != "/tmp/missing" {
		t.Errorf("Details[path] = %v", err.Details["path"])
	}
}

func TestConflictCodes(t *testing.T) {
	tests := []struct {
		err  *KnitError
		code ErrorCode
	}{
		{NewMappingsDisabled(), ErrMappingsDisabled},
		{NewNothingToUndo(), ErrNothingToUndo},
		{NewConflict("class a/B already exists"), ErrConflict},
	}
	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
		}
		if tt.err.Status != 409 {
			t.Errorf("%s: Status = %d, want 409", tt.code, tt.err.Status)
		}
	}
}

func TestNewMalformedMapping(t *testing.T) {
	t.Run("with line", func(t *testing.T) {
		err := FromFormat(&mapping.FormatError{File: "a/B.mapping", Line: 4, Message: "indented too much"})

		if err.Code != ErrMalformedMapping {
			t.Errorf("Code = %q, want %q", err.Code, ErrMalformedMapping)
		}
		if err.Status != 422 {
			t.Errorf("Status = %d, want 422", err.Status)
		}
		if err.Details["file"] != "a/B.mapping" || err.Details["line"] != 4 {
			t.Errorf("Details = %v", err.Details)
		}
	})

	t.Run("without line", func(t *testing.T) {
		err := NewMalformedMapping("a/B.mapping", 0, "no entries in file")
		if _, ok := err.Details["line"]; ok {
			t.Errorf("Details[line] set for structural error: %v", err.Details)
		}
	})
}

func TestNewCancelled(t *testing.T) {
	err := NewCancelled()
	if err.Code != ErrCancelled || err.Status != 499 {
		t.Errorf("got %s/%d, want CANCELLED/499", err.Code, err.Status)
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		originalErr := fmt.Errorf("disk full")
		err := NewInternal(originalErr)

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "disk full" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "disk full")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if !Is(err, ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if Is(err, ErrConflict) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-KnitError", func(t *testing.T) {
		err := fmt.Errorf("plain error")
		if Is(err, ErrNotFound) {
			t.Error("Is() = true, want false for non-KnitError")
		}
	})

	t.Run("wrapped KnitError", func(t *testing.T) {
		inner := NewNotFound("test")
		wrapped := fmt.Errorf("renames[0]: %w", inner)
		if !Is(wrapped, ErrNotFound) {
			t.Error("Is() = false, want true for wrapped KnitError")
		}
		if Is(wrapped, ErrConflict) {
			t.Error("Is() = true, want false for wrong code on wrapped KnitError")
		}
	})
}
