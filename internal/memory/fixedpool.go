package memory

import (
	"sync"

	"github.com/libetude/libetude/internal/errs"
)

// FixedPoolConfig configures a FixedPool.
type FixedPoolConfig struct {
	// Total is the total arena size in bytes; Total/BlockSize slots are
	// carved out (the remainder, if any, is unused padding).
	Total int
	// BlockSize is the fixed slot size. Allocations larger than BlockSize
	// always fail.
	BlockSize int
	Alignment int
	ThreadSafe bool
}

// FixedPool partitions its arena into N = Total/BlockSize equal slots
// tracked by an occupancy bitmap. Allocation scans for the first clear bit.
type FixedPool struct {
	mu sync.Mutex

	cfg       FixedPoolConfig
	arena     []byte
	blockBase int // arena offset of slot 0, after base alignment padding
	numSlots  int
	bitmap    []uint64

	used       int
	peak       int
	allocCount int64
	freeCount  int64
}

// NewFixedPool creates a fixed-size-slot pool.
func NewFixedPool(cfg FixedPoolConfig) (*FixedPool, error) {
	if cfg.Total <= 0 || cfg.BlockSize <= 0 {
		return nil, errs.New(errs.InvalidArgument, "total and block size must be positive")
	}
	if cfg.Alignment <= 0 || cfg.Alignment&(cfg.Alignment-1) != 0 {
		return nil, errs.New(errs.InvalidArgument, "alignment must be a power of two")
	}

	arena := make([]byte, cfg.Total+cfg.Alignment)
	start, _ := addrRange(arena)
	base := alignUp(int(start), cfg.Alignment) - int(start)
	numSlots := cfg.Total / cfg.BlockSize
	if numSlots <= 0 {
		return nil, errs.New(errs.InvalidArgument, "block size larger than pool")
	}

	return &FixedPool{
		cfg:       cfg,
		arena:     arena,
		blockBase: base,
		numSlots:  numSlots,
		bitmap:    make([]uint64, (numSlots+63)/64),
	}, nil
}

func (fp *FixedPool) lock() {
	if fp.cfg.ThreadSafe {
		fp.mu.Lock()
	}
}

func (fp *FixedPool) unlock() {
	if fp.cfg.ThreadSafe {
		fp.mu.Unlock()
	}
}

// Alloc returns one slot. Requests larger than BlockSize are refused.
func (fp *FixedPool) Alloc(size int) (*Allocation, error) {
	if size <= 0 {
		return nil, errs.New(errs.InvalidArgument, "allocation size must be positive")
	}
	if size > fp.cfg.BlockSize {
		return nil, errs.New(errs.InvalidArgument, "allocation exceeds fixed block size")
	}

	fp.lock()
	defer fp.unlock()

	slot := fp.firstClearBit()
	if slot < 0 {
		return nil, errs.New(errs.OutOfMemory, "fixed pool exhausted")
	}
	fp.setBit(slot)

	fp.used += fp.cfg.BlockSize
	if fp.used > fp.peak {
		fp.peak = fp.used
	}
	fp.allocCount++

	off := fp.blockBase + slot*fp.cfg.BlockSize
	return &Allocation{Data: fp.arena[off : off+size], idx: blockIndex(slot + 1)}, nil
}

// Free releases a slot back to the pool.
func (fp *FixedPool) Free(a *Allocation) error {
	if a == nil {
		return errs.New(errs.InvalidArgument, "nil allocation")
	}

	fp.lock()
	defer fp.unlock()

	slot := int(a.idx) - 1
	if slot < 0 || slot >= fp.numSlots {
		return errs.New(errs.InvalidArgument, "allocation does not belong to this pool")
	}
	if !fp.testBit(slot) {
		return errs.New(errs.InvalidArgument, "double free detected")
	}
	fp.clearBit(slot)

	fp.used -= fp.cfg.BlockSize
	fp.freeCount++
	a.Data = nil
	return nil
}

func (fp *FixedPool) firstClearBit() int {
	for w, word := range fp.bitmap {
		if word == ^uint64(0) {
			continue
		}
		for b := 0; b < 64; b++ {
			slot := w*64 + b
			if slot >= fp.numSlots {
				return -1
			}
			if word&(1<<uint(b)) == 0 {
				return slot
			}
		}
	}
	return -1
}

func (fp *FixedPool) setBit(slot int)   { fp.bitmap[slot/64] |= 1 << uint(slot%64) }
func (fp *FixedPool) clearBit(slot int) { fp.bitmap[slot/64] &^= 1 << uint(slot%64) }
func (fp *FixedPool) testBit(slot int) bool {
	return fp.bitmap[slot/64]&(1<<uint(slot%64)) != 0
}

// Stats returns a read-only snapshot of the fixed pool's utilization.
func (fp *FixedPool) Stats() Stats {
	fp.lock()
	defer fp.unlock()

	total := fp.numSlots * fp.cfg.BlockSize
	var ratio float64
	if total > 0 {
		ratio = float64(fp.used) / float64(total)
	}
	return Stats{
		Total:              total,
		Used:               fp.used,
		Peak:               fp.peak,
		AllocCount:         fp.allocCount,
		FreeCount:          fp.freeCount,
		FragmentationRatio: ratio,
	}
}
