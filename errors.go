package libetude

import "github.com/libetude/libetude/internal/errs"

// Error is the error type returned by every fallible operation in this
// package: a closed-taxonomy kind, the call site that raised it, and a
// short message. It wraps internal/errs.Error directly rather than
// reintroducing a parallel type at the public boundary.
type Error = errs.Error

// Kind is the closed set of failure categories a libetude operation can
// report, per spec §4.G/§7.
type Kind = errs.Kind

// Error kinds. These re-export internal/errs.Kind's taxonomy so callers
// never need to import the internal package.
const (
	KindInvalidArgument     = errs.InvalidArgument
	KindOutOfMemory         = errs.OutOfMemory
	KindIO                  = errs.IO
	KindCorrupt             = errs.Corrupt
	KindIncompatibleVersion = errs.IncompatibleVersion
	KindIncompatibleBase    = errs.IncompatibleBase
	KindUnsupported         = errs.Unsupported
	KindNotFound            = errs.NotFound
	KindInvalidState        = errs.InvalidState
	KindInvalidDiagram      = errs.InvalidDiagram
	KindBufferSizeMismatch  = errs.BufferSizeMismatch
	KindHardware            = errs.Hardware
	KindInternal            = errs.Internal
)

// KindOf extracts the Kind from err, returning KindInternal if err is not
// (and does not wrap) a libetude Error.
func KindOf(err error) Kind {
	return errs.KindOf(err)
}
