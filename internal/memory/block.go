// Package memory implements LibEtude's pooled allocator: a dynamic free-list
// pool, a fixed-size bitmap pool, a size-classed reuse cache, an in-place
// scratch context for overlap-safe copies, and fragmentation/leak analysis.
//
// Blocks never carry raw pointers to their neighbors. Per Design Note §9,
// the pointer-heavy intrusive free list of the original allocator is
// reexpressed as an arena (a single []byte) plus an index-linked block
// table, which keeps the allocator free of unsafe.Pointer arithmetic.
package memory

import "time"

// blockIndex is a 1-based index into a Pool's block table; 0 means "none".
type blockIndex int

const noBlock blockIndex = 0

// block is one allocation unit inside a dynamic Pool's arena.
type block struct {
	offset int  // byte offset into the arena
	size   int  // payload size in bytes, excluding any header accounting
	free   bool

	prev blockIndex // physical neighbor (arena order), not free-list order
	next blockIndex

	freePrev blockIndex // free-list neighbors, valid only when free
	freeNext blockIndex

	// Debug bookkeeping, populated only when the pool is created with
	// leak tracking enabled.
	site      string
	allocated time.Time
}

// FitStrategy selects how a dynamic Pool chooses among candidate free
// blocks.
type FitStrategy int

const (
	FirstFit FitStrategy = iota
	BestFit
	WorstFit
	NextFit
)

func (s FitStrategy) String() string {
	switch s {
	case FirstFit:
		return "first-fit"
	case BestFit:
		return "best-fit"
	case WorstFit:
		return "worst-fit"
	case NextFit:
		return "next-fit"
	default:
		return "unknown"
	}
}
