package memory

import (
	"sync"
	"time"

	"github.com/libetude/libetude/internal/errs"
)

// SmartManagerConfig configures a SmartManager.
type SmartManagerConfig struct {
	Pool                PoolConfig
	Reuse               ReuseCacheConfig
	ScratchSize         int
	CompactionThreshold float64 // external fragmentation ratio that triggers a compaction check
	CompactionEvery      int     // check every Nth allocation (0 defaults to 100)
}

// SmartManager composes a dynamic Pool, a ReuseCache in front of it, and an
// in-place Scratch, and adds adaptive compaction: every CompactionEvery-th
// allocation, if fragmentation exceeds CompactionThreshold, Compact runs
// automatically.
type SmartManager struct {
	mu sync.Mutex

	pool    *Pool
	reuse   *ReuseCache
	scratch *Scratch

	threshold float64
	every     int
	allocSeq  int64

	sizeHistogram map[int]int64
	lastAccess    map[int]time.Time
}

// NewSmartManager builds a SmartManager from cfg.
func NewSmartManager(cfg SmartManagerConfig) (*SmartManager, error) {
	pool, err := NewPool(cfg.Pool)
	if err != nil {
		return nil, err
	}
	cfg.Reuse.Underlying = pool
	reuse, err := NewReuseCache(cfg.Reuse)
	if err != nil {
		return nil, err
	}
	scratchSize := cfg.ScratchSize
	if scratchSize <= 0 {
		scratchSize = 64 << 10
	}
	scratch, err := NewScratch(scratchSize, cfg.Pool.ThreadSafe)
	if err != nil {
		return nil, err
	}

	every := cfg.CompactionEvery
	if every <= 0 {
		every = 100
	}

	return &SmartManager{
		pool:          pool,
		reuse:         reuse,
		scratch:       scratch,
		threshold:     cfg.CompactionThreshold,
		every:         every,
		sizeHistogram: make(map[int]int64),
		lastAccess:    make(map[int]time.Time),
	}, nil
}

// Alloc tries the reuse cache first, and periodically checks fragmentation
// to decide whether a compaction pass is warranted.
func (sm *SmartManager) Alloc(size int) (*Allocation, error) {
	if size <= 0 {
		return nil, errs.New(errs.InvalidArgument, "allocation size must be positive")
	}

	a, err := sm.reuse.Alloc(size)
	if err != nil {
		return nil, err
	}

	sm.mu.Lock()
	sm.allocSeq++
	sm.sizeHistogram[size]++
	sm.lastAccess[size] = time.Now()
	seq := sm.allocSeq
	sm.mu.Unlock()

	if sm.every > 0 && seq%int64(sm.every) == 0 {
		if sm.pool.FragmentationReport().ExternalFragmentation > sm.threshold {
			sm.pool.Compact()
		}
	}

	return a, nil
}

// Free returns an allocation to the reuse cache.
func (sm *SmartManager) Free(a *Allocation, size int) error {
	return sm.reuse.Free(a, size)
}

// Scratch exposes the manager's in-place scratch context.
func (sm *SmartManager) Scratch() *Scratch {
	return sm.scratch
}

// Pool exposes the underlying dynamic pool, for stats and fragmentation
// reporting.
func (sm *SmartManager) Pool() *Pool {
	return sm.pool
}

// SizeHistogram returns a snapshot of how many allocations have been made
// at each requested size. The manager only records these counts; nothing
// in it changes the pool's fit strategy based on them.
func (sm *SmartManager) SizeHistogram() map[int]int64 {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make(map[int]int64, len(sm.sizeHistogram))
	for k, v := range sm.sizeHistogram {
		out[k] = v
	}
	return out
}
