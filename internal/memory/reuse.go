package memory

import (
	"sync"
	"time"

	"github.com/libetude/libetude/internal/errs"
)

// Allocator is the minimal interface a ReuseCache falls through to on a
// miss. Both Pool and FixedPool satisfy it.
type Allocator interface {
	Alloc(size int) (*Allocation, error)
	Free(a *Allocation) error
}

// ReuseCacheConfig configures a ReuseCache.
type ReuseCacheConfig struct {
	MinSize      int
	MaxSize      int
	BucketCap    int           // max buffers retained per size class
	MaxIdle      time.Duration // age at which a bucket entry is dropped by Cleanup
	Underlying   Allocator
}

type bucketEntry struct {
	alloc *Allocation
	freed time.Time
}

// ReuseCache is a thread-safe pool of per-size-class buckets. Each class is
// a power-of-two rounding of a requested size, clamped to [MinSize, MaxSize].
type ReuseCache struct {
	mu sync.Mutex

	cfg     ReuseCacheConfig
	buckets map[int][]bucketEntry

	hits     int64
	requests int64
}

// NewReuseCache creates a reuse cache in front of cfg.Underlying.
func NewReuseCache(cfg ReuseCacheConfig) (*ReuseCache, error) {
	if cfg.Underlying == nil {
		return nil, errs.New(errs.InvalidArgument, "reuse cache requires an underlying allocator")
	}
	if cfg.MinSize <= 0 || cfg.MaxSize < cfg.MinSize {
		return nil, errs.New(errs.InvalidArgument, "invalid reuse cache size range")
	}
	if cfg.BucketCap <= 0 {
		cfg.BucketCap = 16
	}
	return &ReuseCache{cfg: cfg, buckets: make(map[int][]bucketEntry)}, nil
}

func sizeClass(size, min, max int) int {
	if size < min {
		size = min
	}
	if size > max {
		return size // oversize requests are not bucketed, passed straight through
	}
	c := 1
	for c < size {
		c <<= 1
	}
	return c
}

// Alloc rounds size up to its size class and returns a cached buffer if the
// class's bucket is non-empty, else falls through to the underlying
// allocator.
func (rc *ReuseCache) Alloc(size int) (*Allocation, error) {
	if size <= 0 {
		return nil, errs.New(errs.InvalidArgument, "allocation size must be positive")
	}

	if size > rc.cfg.MaxSize {
		rc.mu.Lock()
		rc.requests++
		rc.mu.Unlock()
		return rc.cfg.Underlying.Alloc(size)
	}
	cls := sizeClass(size, rc.cfg.MinSize, rc.cfg.MaxSize)

	rc.mu.Lock()
	rc.requests++
	bucket := rc.buckets[cls]
	if len(bucket) > 0 {
		entry := bucket[len(bucket)-1]
		rc.buckets[cls] = bucket[:len(bucket)-1]
		rc.hits++
		rc.mu.Unlock()
		entry.alloc.Data = entry.alloc.Data[:size]
		return entry.alloc, nil
	}
	rc.mu.Unlock()

	return rc.cfg.Underlying.Alloc(cls)
}

// Free pushes a into the matching bucket when under capacity, else returns
// it to the underlying allocator immediately.
func (rc *ReuseCache) Free(a *Allocation, size int) error {
	if a == nil {
		return errs.New(errs.InvalidArgument, "nil allocation")
	}
	if size > rc.cfg.MaxSize {
		return rc.cfg.Underlying.Free(a)
	}
	cls := sizeClass(size, rc.cfg.MinSize, rc.cfg.MaxSize)

	rc.mu.Lock()
	bucket := rc.buckets[cls]
	if len(bucket) < rc.cfg.BucketCap {
		rc.buckets[cls] = append(bucket, bucketEntry{alloc: a, freed: time.Now()})
		rc.mu.Unlock()
		return nil
	}
	rc.mu.Unlock()

	return rc.cfg.Underlying.Free(a)
}

// HitRate returns hits/requests, or 0 if no requests have been made yet.
func (rc *ReuseCache) HitRate() float64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.requests == 0 {
		return 0
	}
	return float64(rc.hits) / float64(rc.requests)
}

// Cleanup drops half of each bucket whose oldest entries exceed MaxIdle, or
// all of it when force is true.
func (rc *ReuseCache) Cleanup(force bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := time.Now()
	for cls, bucket := range rc.buckets {
		if len(bucket) == 0 {
			continue
		}
		stale := force
		if !stale && now.Sub(bucket[0].freed) > rc.cfg.MaxIdle {
			stale = true
		}
		if !stale {
			continue
		}
		drop := len(bucket) / 2
		if force {
			drop = len(bucket)
		}
		for _, e := range bucket[:drop] {
			_ = rc.cfg.Underlying.Free(e.alloc)
		}
		rc.buckets[cls] = bucket[drop:]
	}
}
