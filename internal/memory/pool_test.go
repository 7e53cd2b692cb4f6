package memory

import "testing"

func TestPoolAllocFreeRoundTrip(t *testing.T) {
	strategies := []FitStrategy{FirstFit, BestFit, WorstFit, NextFit}
	for _, strat := range strategies {
		t.Run(strat.String(), func(t *testing.T) {
			p, err := NewPool(PoolConfig{Size: 4096, Alignment: 32, Strategy: strat, MinBlockSize: 16, ThreadSafe: true})
			if err != nil {
				t.Fatalf("NewPool: %v", err)
			}

			before := p.Stats().Used

			sizes := []int{64, 128, 256, 128, 64}
			var allocs []*Allocation
			for _, sz := range sizes {
				a, err := p.Alloc(sz)
				if err != nil {
					t.Fatalf("Alloc(%d): %v", sz, err)
				}
				allocs = append(allocs, a)
			}

			for _, a := range allocs {
				if err := p.Free(a); err != nil {
					t.Fatalf("Free: %v", err)
				}
			}

			after := p.Stats().Used
			if after != before {
				t.Errorf("used size did not round-trip: before=%d after=%d", before, after)
			}
		})
	}
}

func TestPoolFragmentationScenario(t *testing.T) {
	p, err := NewPool(PoolConfig{Size: 4096, Alignment: 32, Strategy: FirstFit, MinBlockSize: 16, ThreadSafe: true})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	sizes := []int{64, 128, 256, 128, 64}
	var allocs []*Allocation
	for _, sz := range sizes {
		a, err := p.Alloc(sz)
		if err != nil {
			t.Fatalf("Alloc(%d): %v", sz, err)
		}
		allocs = append(allocs, a)
	}

	for _, i := range []int{0, 2, 4} {
		if err := p.Free(allocs[i]); err != nil {
			t.Fatalf("Free(%d): %v", i, err)
		}
	}

	report := p.FragmentationReport()
	if report.NumFreeBlocks < 2 || report.NumFreeBlocks > 3 {
		t.Errorf("num free blocks = %d, want in {2,3}", report.NumFreeBlocks)
	}
	if report.LargestFree < 256 {
		t.Errorf("largest free = %d, want >= 256", report.LargestFree)
	}
	if report.ExternalFragmentation > 0.75 {
		t.Errorf("external fragmentation = %f, want <= 0.75", report.ExternalFragmentation)
	}

	usedBefore := p.Stats().Used
	p.Compact()
	usedAfter := p.Stats().Used
	if usedAfter != usedBefore {
		t.Errorf("compaction changed used size: before=%d after=%d", usedBefore, usedAfter)
	}
}

func TestPoolDoubleFreeDetected(t *testing.T) {
	p, err := NewPool(DefaultPoolConfig())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	a, err := p.Alloc(64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := p.Free(a); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := p.Free(a); err == nil {
		t.Error("expected double-free error, got nil")
	}
}

func TestPoolOutOfMemory(t *testing.T) {
	p, err := NewPool(PoolConfig{Size: 128, Alignment: 16, Strategy: FirstFit, MinBlockSize: 8, ThreadSafe: true})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if _, err := p.Alloc(1024); err == nil {
		t.Error("expected out-of-memory error, got nil")
	}
}

func TestFixedPoolRejectsOversize(t *testing.T) {
	fp, err := NewFixedPool(FixedPoolConfig{Total: 1024, BlockSize: 64, Alignment: 16, ThreadSafe: true})
	if err != nil {
		t.Fatalf("NewFixedPool: %v", err)
	}
	if _, err := fp.Alloc(128); err == nil {
		t.Error("expected refusal for allocation larger than block size")
	}
	a, err := fp.Alloc(64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := fp.Free(a); err != nil {
		t.Fatalf("Free: %v", err)
	}
}

func TestReuseCacheHitRate(t *testing.T) {
	p, err := NewPool(DefaultPoolConfig())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	rc, err := NewReuseCache(ReuseCacheConfig{MinSize: 64, MaxSize: 4096, BucketCap: 4, Underlying: p})
	if err != nil {
		t.Fatalf("NewReuseCache: %v", err)
	}

	a, err := rc.Alloc(100)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := rc.Free(a, 100); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if _, err := rc.Alloc(100); err != nil {
		t.Fatalf("Alloc (hit): %v", err)
	}

	if rate := rc.HitRate(); rate <= 0 {
		t.Errorf("hit rate = %f, want > 0", rate)
	}
}

func TestScratchCopyOverlapping(t *testing.T) {
	s, err := NewScratch(64, true)
	if err != nil {
		t.Fatalf("NewScratch: %v", err)
	}
	buf := []byte("abcdefgh")
	if err := s.CopyOverlapping(buf[2:], buf[:6]); err != nil {
		t.Fatalf("CopyOverlapping: %v", err)
	}
	want := "ababcdef"
	if string(buf) != want {
		t.Errorf("buf = %q, want %q", buf, want)
	}
}

func TestLeakReport(t *testing.T) {
	p, err := NewPool(PoolConfig{Size: 4096, Alignment: 32, Strategy: FirstFit, MinBlockSize: 16, ThreadSafe: true, TrackLeaks: true})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if _, err := p.Alloc(64); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	report := p.LeakReport(0)
	if report.ActiveCount != 1 {
		t.Errorf("active count = %d, want 1", report.ActiveCount)
	}
	if len(report.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(report.Entries))
	}
	if report.Entries[0].Bytes != 64 {
		t.Errorf("leaked bytes = %d, want 64", report.Entries[0].Bytes)
	}
}
