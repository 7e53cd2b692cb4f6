package lef

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/libetude/libetude/internal/memory"
)

func writeStreamingTestModel(t *testing.T, sizes []int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.lef")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	meta := &ModelMeta{
		Name:    "libetude-voice-streaming-test",
		Version: "1.0.0",
		Author:  "libetude",
		Audio:   AudioConfig{SampleRate: 24000, Channels: 1, HopSize: 256, MelBins: 80},
	}
	layers := make([]LayerInput, len(sizes))
	for i, sz := range sizes {
		layers[i] = LayerInput{ID: int32(i), Kind: 1, Data: bytes.Repeat([]byte{byte(i + 1)}, sz), Codec: CodecNone}
	}
	if err := Write(f, 1, 0, meta, layers); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return path
}

func newStreamingPool(t *testing.T) *memory.Pool {
	t.Helper()
	pool, err := memory.NewPool(memory.PoolConfig{
		Size: 1 << 20, Alignment: 32, Strategy: memory.FirstFit, MinBlockSize: 32, ThreadSafe: true,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return pool
}

// TestStreamingCacheEvictsByByteBudget matches spec.md scenario 5: layers
// sized [4096, 8192, 2048] with cache budget 6144. Loading 0 then 2 must
// stay within budget; requesting 1 must evict layer 0 (LRU) first.
func TestStreamingCacheEvictsByByteBudget(t *testing.T) {
	path := writeStreamingTestModel(t, []int{4096, 8192, 2048})
	pool := newStreamingPool(t)

	sm, err := OpenStreaming(path, pool, 6144)
	if err != nil {
		t.Fatalf("OpenStreaming: %v", err)
	}
	defer sm.Close()

	if _, err := sm.LoadLayer(0); err != nil {
		t.Fatalf("LoadLayer(0): %v", err)
	}
	if usage := sm.CacheUsage(); usage > 6144 {
		t.Fatalf("cache usage after loading layer 0 = %d, want <= 6144", usage)
	}

	if _, err := sm.LoadLayer(2); err != nil {
		t.Fatalf("LoadLayer(2): %v", err)
	}
	if usage := sm.CacheUsage(); usage > 6144 {
		t.Fatalf("cache usage after loading layer 2 = %d, want <= 6144", usage)
	}

	if !sm.cache.Contains(0) {
		t.Fatal("layer 0 should still be cached before requesting layer 1")
	}

	if _, err := sm.LoadLayer(1); err != nil {
		t.Fatalf("LoadLayer(1): %v", err)
	}

	if sm.cache.Contains(0) {
		t.Error("layer 0 should have been evicted (LRU) once layer 1 was requested")
	}
	if !sm.cache.Contains(1) {
		t.Error("layer 1 (the layer just requested) should remain cached")
	}

	// Layer 1 alone (8192 bytes) exceeds the 6144 budget, so usage cannot
	// stay within budget without freeing the allocation this call just
	// returned; eviction still drains every other entry to get as close
	// to the budget as safely possible.
	if usage := sm.CacheUsage(); usage != 8192 {
		t.Errorf("cache usage after loading oversized layer 1 = %d, want 8192", usage)
	}
}

func TestStreamingUnloadLayerFreesImmediately(t *testing.T) {
	path := writeStreamingTestModel(t, []int{128, 128})
	pool := newStreamingPool(t)

	sm, err := OpenStreaming(path, pool, 4096)
	if err != nil {
		t.Fatalf("OpenStreaming: %v", err)
	}
	defer sm.Close()

	if _, err := sm.LoadLayer(0); err != nil {
		t.Fatalf("LoadLayer(0): %v", err)
	}
	if sm.CacheUsage() != 128 {
		t.Fatalf("cache usage = %d, want 128", sm.CacheUsage())
	}

	sm.UnloadLayer(0)
	if sm.CacheUsage() != 0 {
		t.Errorf("cache usage after UnloadLayer = %d, want 0", sm.CacheUsage())
	}
}

func TestStreamingLoadLayerRereadsAfterEviction(t *testing.T) {
	path := writeStreamingTestModel(t, []int{4096, 8192, 2048})
	pool := newStreamingPool(t)

	sm, err := OpenStreaming(path, pool, 6144)
	if err != nil {
		t.Fatalf("OpenStreaming: %v", err)
	}
	defer sm.Close()

	first, err := sm.LoadLayer(0)
	if err != nil {
		t.Fatalf("LoadLayer(0): %v", err)
	}
	want := append([]byte(nil), first...)

	if _, err := sm.LoadLayer(2); err != nil {
		t.Fatalf("LoadLayer(2): %v", err)
	}
	if _, err := sm.LoadLayer(1); err != nil {
		t.Fatalf("LoadLayer(1): %v", err)
	}
	if sm.cache.Contains(0) {
		t.Fatal("layer 0 should have been evicted")
	}

	again, err := sm.LoadLayer(0)
	if err != nil {
		t.Fatalf("re-LoadLayer(0): %v", err)
	}
	if !bytes.Equal(again, want) {
		t.Error("re-loaded layer 0 bytes differ from the original load")
	}
}
