package memory

import (
	"sync"

	"github.com/libetude/libetude/internal/errs"
)

// Scratch is a single aligned scratch buffer used as overlap-safe working
// space for in-place operations: memcpy of overlapping ranges and 3-step
// swaps. Calls are serialized per context when ThreadSafe is set, since the
// scratch buffer itself is shared mutable state.
type Scratch struct {
	mu         sync.Mutex
	buf        []byte
	threadSafe bool
}

// NewScratch allocates a scratch buffer of size bytes.
func NewScratch(size int, threadSafe bool) (*Scratch, error) {
	if size <= 0 {
		return nil, errs.New(errs.InvalidArgument, "scratch size must be positive")
	}
	return &Scratch{buf: make([]byte, size), threadSafe: threadSafe}, nil
}

func (s *Scratch) lock() {
	if s.threadSafe {
		s.mu.Lock()
	}
}

func (s *Scratch) unlock() {
	if s.threadSafe {
		s.mu.Unlock()
	}
}

// overlaps reports whether two byte ranges of the same underlying array
// alias each other.
func overlaps(dst, src []byte) bool {
	if len(dst) == 0 || len(src) == 0 {
		return false
	}
	dstStart, dstEnd := addrRange(dst)
	srcStart, srcEnd := addrRange(src)
	return dstStart < srcEnd && srcStart < dstEnd
}

// CopyOverlapping copies src into dst, which may alias the same backing
// array. Non-overlapping ranges are copied directly without touching the
// scratch buffer; overlapping ranges are staged through scratch first.
func (s *Scratch) CopyOverlapping(dst, src []byte) error {
	if len(dst) < len(src) {
		return errs.New(errs.BufferSizeMismatch, "destination smaller than source")
	}
	if !overlaps(dst, src) {
		copy(dst, src)
		return nil
	}

	s.lock()
	defer s.unlock()

	if len(s.buf) < len(src) {
		return errs.New(errs.OutOfMemory, "scratch buffer smaller than requested copy")
	}
	n := copy(s.buf, src)
	copy(dst, s.buf[:n])
	return nil
}

// Swap3Step exchanges the contents of a and b (which must be equal length)
// using the scratch buffer as temporary storage: scratch=a; a=b; b=scratch.
func (s *Scratch) Swap3Step(a, b []byte) error {
	if len(a) != len(b) {
		return errs.New(errs.BufferSizeMismatch, "swap requires equal-length ranges")
	}

	s.lock()
	defer s.unlock()

	if len(s.buf) < len(a) {
		return errs.New(errs.OutOfMemory, "scratch buffer smaller than requested swap")
	}
	n := copy(s.buf, a)
	copy(a, b)
	copy(b, s.buf[:n])
	return nil
}

// Len returns the scratch buffer's capacity in bytes.
func (s *Scratch) Len() int {
	return len(s.buf)
}
