package lef

import (
	"math"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/libetude/libetude/internal/errs"
	"github.com/libetude/libetude/internal/memory"
)

// StreamingModel reads header and index upfront, then loads individual
// layer payloads on demand into an LRU cache bounded by a byte budget,
// evicting in LRU order while usage is over the budget. Eviction stops once
// one entry remains, so a single layer larger than the budget stays cached
// alone and usage then exceeds the budget. Evicted layers release their pool
// allocation; explicit UnloadLayer evicts without waiting for the budget to
// be hit.
type StreamingModel struct {
	*Model

	mu          sync.Mutex
	pool        *memory.Pool
	cache       *lru.Cache[int32, *memory.Allocation]
	cacheBudget int
	cacheBytes  int
	file        *os.File
}

// OpenStreaming opens path for on-demand layer loading. Decompressed layer
// payloads are drawn from pool and cached as long as their combined size
// fits within cacheBudget bytes; loading a layer that would push usage over
// the budget evicts least-recently-used layers (freeing their pool
// allocations) until it fits again or only the newly loaded layer is left.
func OpenStreaming(path string, pool *memory.Pool, cacheBudget int) (*StreamingModel, error) {
	if cacheBudget <= 0 {
		return nil, errs.New(errs.InvalidArgument, "cache budget must be positive")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "open failed", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IO, "stat failed", err)
	}

	model, err := Open(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	sm := &StreamingModel{Model: model, pool: pool, file: f, cacheBudget: cacheBudget}
	// The LRU itself is not entry-count bounded — sm.cacheBytes enforces
	// the real budget after every insert — so give it headroom no real
	// model's layer count will reach.
	cache, err := lru.NewWithEvict[int32, *memory.Allocation](math.MaxInt32, sm.onEvict)
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.Internal, "lru cache init failed", err)
	}
	sm.cache = cache
	return sm, nil
}

func (sm *StreamingModel) onEvict(_ int32, a *memory.Allocation) {
	sm.cacheBytes -= len(a.Data)
	_ = sm.pool.Free(a)
}

// CacheUsage reports the total bytes currently held by cached layers.
func (sm *StreamingModel) CacheUsage() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.cacheBytes
}

// LoadLayer returns the decompressed, CRC-verified bytes of layer id,
// reading and decompressing from the file on a cache miss and caching the
// result; a cache hit returns the already-decompressed bytes directly.
func (sm *StreamingModel) LoadLayer(id int32) ([]byte, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if a, ok := sm.cache.Get(id); ok {
		return a.Data, nil
	}

	e, err := sm.Layer(id)
	if err != nil {
		return nil, err
	}
	data, err := sm.ReadLayer(e)
	if err != nil {
		return nil, err
	}

	a, err := sm.pool.Alloc(len(data))
	if err != nil {
		return nil, err
	}
	copy(a.Data, data)
	sm.cache.Add(id, a)
	sm.cacheBytes += len(a.Data)

	for sm.cacheBytes > sm.cacheBudget && sm.cache.Len() > 1 {
		if _, _, ok := sm.cache.RemoveOldest(); !ok {
			break
		}
	}
	return a.Data, nil
}

// UnloadLayer evicts id from the cache on demand, freeing its pool
// allocation immediately rather than waiting for budget pressure.
func (sm *StreamingModel) UnloadLayer(id int32) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cache.Remove(id)
}

// Close releases every cached layer allocation and closes the file.
func (sm *StreamingModel) Close() error {
	sm.mu.Lock()
	sm.cache.Purge()
	sm.mu.Unlock()
	return sm.file.Close()
}
