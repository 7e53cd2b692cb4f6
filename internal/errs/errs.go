// Package errs defines the closed error taxonomy shared by every LibEtude
// subsystem. A single Error type carries a Kind, the call site that raised
// it, and a short message, so a caller never has to pattern-match on
// subsystem-specific error types.
package errs

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind is a closed set of failure categories. New kinds are never added by
// callers; the set here is the complete taxonomy.
type Kind int

const (
	OK Kind = iota
	InvalidArgument
	OutOfMemory
	IO
	Corrupt
	IncompatibleVersion
	IncompatibleBase
	Unsupported
	NotFound
	InvalidState
	InvalidDiagram
	BufferSizeMismatch
	Hardware
	Internal
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "OK"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case OutOfMemory:
		return "OUT_OF_MEMORY"
	case IO:
		return "IO"
	case Corrupt:
		return "CORRUPT"
	case IncompatibleVersion:
		return "INCOMPATIBLE_VERSION"
	case IncompatibleBase:
		return "INCOMPATIBLE_BASE"
	case Unsupported:
		return "UNSUPPORTED"
	case NotFound:
		return "NOT_FOUND"
	case InvalidState:
		return "INVALID_STATE"
	case InvalidDiagram:
		return "INVALID_DIAGRAM"
	case BufferSizeMismatch:
		return "BUFFER_SIZE_MISMATCH"
	case Hardware:
		return "HARDWARE"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Error is the single error record used across the module. It never panics
// the library on user input; it is always returned as a regular error value.
type Error struct {
	Kind    Kind
	File    string
	Line    int
	Func    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("libetude: %s: %s (at %s:%d in %s): %v", e.Kind, e.Message, e.File, e.Line, e.Func, e.Cause)
	}
	return fmt.Sprintf("libetude: %s: %s (at %s:%d in %s)", e.Kind, e.Message, e.File, e.Line, e.Func)
}

// Unwrap allows errors.Is/errors.As to reach a wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, errs.New(errs.Corrupt, "")) style checks work without
// comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func site(skip int) (file string, line int, fn string) {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown", 0, "unknown"
	}
	f := runtime.FuncForPC(pc)
	if f != nil {
		fn = f.Name()
	}
	return file, line, fn
}

// New creates an Error of the given kind with a message, capturing the
// caller's site.
func New(kind Kind, message string) *Error {
	file, line, fn := site(1)
	return &Error{Kind: kind, File: file, Line: line, Func: fn, Message: message}
}

// Wrap creates an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	file, line, fn := site(1)
	return &Error{Kind: kind, File: file, Line: line, Func: fn, Message: message, Cause: cause}
}

// Newf formats message the way fmt.Sprintf does before building the Error.
func Newf(kind Kind, format string, args ...any) *Error {
	file, line, fn := site(1)
	return &Error{Kind: kind, File: file, Line: line, Func: fn, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// returns Internal otherwise. Useful for callers translating errors across
// an API boundary that only cares about the Kind.
func KindOf(err error) Kind {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
