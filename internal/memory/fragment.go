package memory

// FragmentationReport summarizes free-space fragmentation within a dynamic
// pool's arena.
type FragmentationReport struct {
	TotalFree             int
	LargestFree           int
	NumFreeBlocks         int
	ExternalFragmentation float64
	Wasted                int
}

// FragmentationReport walks the free list and computes the report defined
// in spec §4.A: total free bytes, the largest single free block, the free
// block count, and the external fragmentation ratio
// `1 - largest/total` (0 when there is no free space at all).
func (p *Pool) FragmentationReport() FragmentationReport {
	p.lock()
	defer p.unlock()
	return p.fragmentationReportLocked()
}

func (p *Pool) fragmentationReportLocked() FragmentationReport {
	var total, largest, count int
	for idx := p.freeHead; idx != noBlock; idx = p.blocks[idx].freeNext {
		sz := p.blocks[idx].size
		total += sz
		if sz > largest {
			largest = sz
		}
		count++
	}

	var extFrag float64
	if total > 0 {
		extFrag = 1 - float64(largest)/float64(total)
	}

	return FragmentationReport{
		TotalFree:             total,
		LargestFree:           largest,
		NumFreeBlocks:         count,
		ExternalFragmentation: extFrag,
		Wasted:                total - largest,
	}
}

// Compact merges every physically-adjacent pair of free blocks. It never
// moves a used block (relocating used blocks, "aggressive" compaction, is
// left for a later pass per spec §4.A) and never reduces Stats().Used.
func (p *Pool) Compact() FragmentationReport {
	p.lock()
	defer p.unlock()

	// Walk the arena in physical order and coalesce consecutive free runs.
	// Splits keep the original block at the lower offset, so block 1 stays
	// at offset 0; the scan finds it as the block with no physical
	// predecessor.
	var head blockIndex
	for idx := blockIndex(1); int(idx) < len(p.blocks); idx++ {
		if p.blocks[idx].prev == noBlock {
			head = idx
			break
		}
	}

	for idx := head; idx != noBlock; {
		if p.blocks[idx].free {
			for p.blocks[idx].next != noBlock && p.blocks[p.blocks[idx].next].free {
				p.coalesceForward(idx)
			}
		}
		idx = p.blocks[idx].next
	}

	return p.fragmentationReportLocked()
}
