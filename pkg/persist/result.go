// Package persist holds the pieces every catalog format shares: the Result
// value returned by each load/save, the byte stream abstraction formats are
// written against, and the per-catalog format registry.
package persist

import (
	"errors"
	"fmt"

	"github.com/crystal-mush/gorom/pkg/growable"
)

// Status classifies the outcome of a load or save.
type Status int

const (
	StatusOK Status = iota
	StatusIOError
	StatusFormatError
	StatusUnsupported
	StatusInternalError
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusIOError:
		return "I/O error"
	case StatusFormatError:
		return "format error"
	case StatusUnsupported:
		return "unsupported"
	case StatusInternalError:
		return "internal error"
	default:
		return "unknown"
	}
}

// NoLine marks a Result that is not tied to a source line.
const NoLine = -1

// Result is the value returned by every load and save.
type Result struct {
	Status  Status
	Message string
	Line    int // 1-based; NoLine when not applicable
}

// OK returns a successful result.
func OK() Result { return Result{Status: StatusOK, Line: NoLine} }

// IOErr wraps an I/O failure.
func IOErr(err error) Result {
	return Result{Status: StatusIOError, Message: err.Error(), Line: NoLine}
}

// FormatErr reports a structural mismatch at line.
func FormatErr(line int, format string, args ...any) Result {
	return Result{Status: StatusFormatError, Message: fmt.Sprintf(format, args...), Line: line}
}

// UnsupportedErr reports an operation/format/stream combination that is not
// implemented.
func UnsupportedErr(format string, args ...any) Result {
	return Result{Status: StatusUnsupported, Message: fmt.Sprintf(format, args...), Line: NoLine}
}

// InternalErr reports an invariant violation or resource exhaustion.
func InternalErr(format string, args ...any) Result {
	return Result{Status: StatusInternalError, Message: fmt.Sprintf(format, args...), Line: NoLine}
}

// IsOK reports whether the result is successful.
func (r Result) IsOK() bool { return r.Status == StatusOK }

// String renders the result the way administrative commands print it.
func (r Result) String() string {
	if r.Status == StatusOK {
		if r.Message != "" {
			return "ok: " + r.Message
		}
		return "ok"
	}
	if r.Line > 0 {
		return fmt.Sprintf("%s at line %d: %s", r.Status, r.Line, r.Message)
	}
	if r.Message == "" {
		return r.Status.String()
	}
	return fmt.Sprintf("%s: %s", r.Status, r.Message)
}

// Err converts a failed result into an error (nil when OK).
func (r Result) Err() error {
	if r.IsOK() {
		return nil
	}
	return &Error{Status: r.Status, Msg: r.Message, Line: r.Line}
}

// WithMessage returns a copy of r carrying msg.
func (r Result) WithMessage(msg string) Result {
	r.Message = msg
	return r
}

// Error is the error type parsers return; it carries the status it maps to.
type Error struct {
	Status Status
	Msg    string
	Line   int
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d: %s", e.Status, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Msg)
}

// Errorf builds a format *Error at line.
func Errorf(line int, format string, args ...any) error {
	return &Error{Status: StatusFormatError, Msg: fmt.Sprintf(format, args...), Line: line}
}

// Unsupportedf builds an unsupported *Error.
func Unsupportedf(format string, args ...any) error {
	return &Error{Status: StatusUnsupported, Msg: fmt.Sprintf(format, args...), Line: NoLine}
}

// ResultOf maps an error returned by a format or stream onto a Result.
func ResultOf(err error) Result {
	if err == nil {
		return OK()
	}
	var pe *Error
	if errors.As(err, &pe) {
		line := pe.Line
		if line == 0 {
			line = NoLine
		}
		return Result{Status: pe.Status, Message: pe.Msg, Line: line}
	}
	if errors.Is(err, growable.ErrCapacity) {
		return InternalErr("%v", err)
	}
	// Anything else came from the stream or the filesystem.
	return IOErr(err)
}
