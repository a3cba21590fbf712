// Package errors defines the structured error taxonomy of the importer.
// Every pipeline operation reports one of these codes so that the CLI and the
// HTTP API can turn it into a single human-readable message.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes.
const (
	CodeDecode       = "DECODE_ERROR"
	CodeEmptyData    = "EMPTY_DATA"
	CodeValidation   = "VALIDATION_ERROR"
	CodeSubmission   = "SUBMISSION_ERROR"
	CodeNetwork      = "NETWORK_ERROR"
	CodeInvalidState = "INVALID_STATE"
	CodeInvalidInput = "INVALID_INPUT"
	CodeEmptyBatch   = "EMPTY_BATCH"
	CodeStale        = "STALE_SESSION"
	CodeUnknown      = "UNKNOWN"
)

// AppError represents a structured application error.
type AppError struct {
	Code    string
	Message string

	// Status is the HTTP status returned by the collector, when there was one.
	Status int

	// Details carries the collector's field-level error payload, if any.
	Details map[string]any

	Cause error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorCode implements Coder.
func (e *AppError) ErrorCode() string {
	return e.Code
}

// Coder is implemented by errors that carry one of the codes above.
type Coder interface {
	ErrorCode() string
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a new AppError with a formatted message.
func Newf(code, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code string, err error, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

// GetCode returns the code of the first Coder in err's chain, or CodeUnknown.
func GetCode(err error) string {
	var c Coder
	if stderrors.As(err, &c) {
		return c.ErrorCode()
	}
	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && GetCode(err) == code
}

// Message returns the text shown to the user for err. AppErrors show their
// own message without the wrapped cause.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// Decode reports a file that could not be read as a spreadsheet.
func Decode(cause error, format string, args ...any) *AppError {
	return Wrap(CodeDecode, cause, fmt.Sprintf(format, args...))
}

// EmptyData reports a sheet with a header row but no data rows.
func EmptyData() *AppError {
	return New(CodeEmptyData, "the file must contain at least one data row besides the header")
}

// Submission reports a non-success response from the collector.
func Submission(status int, message string) *AppError {
	return &AppError{Code: CodeSubmission, Message: message, Status: status}
}

// Network reports a request that never produced a response.
func Network(cause error) *AppError {
	return Wrap(CodeNetwork, cause, "could not reach the donations service")
}

// InvalidState reports an operation attempted in the wrong pipeline state.
func InvalidState(op, state string) *AppError {
	return Newf(CodeInvalidState, "cannot %s while the import is in the %s step", op, state)
}

// InvalidInput reports a bad argument from the user.
func InvalidInput(format string, args ...any) *AppError {
	return Newf(CodeInvalidInput, format, args...)
}

// EmptyBatch reports a submission with nothing left to import.
func EmptyBatch() *AppError {
	return New(CodeEmptyBatch, "there is no data to import")
}

// ErrStale is returned when a decode or submission resolves after its
// session was reset or superseded.
var ErrStale = New(CodeStale, "the import session changed before the operation finished")
