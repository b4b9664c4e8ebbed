package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes: 0 iff status is exact_match, 1 for any other divergence
// status, 2 for operational failure.
const (
	ExitSuccess      = 0
	ExitDivergence   = 1
	ExitOperationErr = 2
)

// ExitError carries the exit code an operation should terminate the
// process with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an ExitError with no wrapped cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code and message.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err, defaulting to
// ExitOperationErr for errors that were never classified.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitOperationErr
}

// OutputFormatter renders CLI results as JSON or text. JSON output is
// the direct serialization of the result value, never wrapped in an
// envelope.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Success renders data: json.Marshal directly for "json" format, or
// data's Stringer/text form for "text".
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetEscapeHTML(false)
		return enc.Encode(data)
	}
	if s, ok := data.(fmt.Stringer); ok {
		fmt.Fprintln(f.Writer, s.String())
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}
