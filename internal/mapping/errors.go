package mapping

import (
	stderrors "errors"
	"fmt"

	"github.com/Runemoro/knit/internal/tree"
)

// FormatError reports a malformed mapping file. Line is 0 when the problem
// is structural and not tied to a single entry.
type FormatError struct {
	File    string
	Line    int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s (%s)", e.Message, e.File)
	}
	return fmt.Sprintf("%s (%s:%d)", e.Message, e.File, e.Line)
}

// Unwrap returns the underlying parse error, if any.
func (e *FormatError) Unwrap() error { return e.Err }

// newFormatError wraps a tree parse error (or a factory error carrying a
// line) with the file it came from.
func newFormatError(file string, err error) error {
	var perr *tree.ParseError
	if stderrors.As(err, &perr) {
		return &FormatError{File: file, Line: perr.Line, Message: perr.Message, Err: err}
	}
	return err
}
