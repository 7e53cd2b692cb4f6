package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/libetude/libetude/internal/memory"
)

func newTestPool(t *testing.T) *memory.Pool {
	t.Helper()
	p, err := memory.NewPool(memory.PoolConfig{Size: 1 << 20, Alignment: 32, Strategy: memory.FirstFit, MinBlockSize: 16, ThreadSafe: true})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return p
}

func TestTensorStrideConsistency(t *testing.T) {
	p := newTestPool(t)
	tn, err := New(p, F32, []int{2, 3, 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Release()

	if !tn.Contiguous() {
		t.Fatal("freshly allocated tensor should be contiguous")
	}
	want := []int{48, 16, 4}
	got := tn.Strides()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("strides[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestTensorViewsShareRefcount(t *testing.T) {
	p := newTestPool(t)
	tn, err := New(p, F32, []int{4, 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	view, err := tn.Slice(0, 1, 3)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if tn.RefCount() != 2 {
		t.Fatalf("refcount after Slice = %d, want 2", tn.RefCount())
	}
	if err := view.Release(); err != nil {
		t.Fatalf("Release view: %v", err)
	}
	if tn.RefCount() != 1 {
		t.Fatalf("refcount after releasing view = %d, want 1", tn.RefCount())
	}
	if err := tn.Release(); err != nil {
		t.Fatalf("Release owner: %v", err)
	}
}

func TestTensorReshapeNonContiguousCopies(t *testing.T) {
	p := newTestPool(t)
	tn, err := New(p, F32, []int{2, 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Release()

	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			setAt(tn.data, tn.strides, tn.dtype, []int{i, j}, float64(i*3+j))
		}
	}

	transposed, err := tn.Transpose(0, 1)
	if err != nil {
		t.Fatalf("Transpose: %v", err)
	}
	defer transposed.Release()
	if transposed.Contiguous() {
		t.Fatal("transposed 2x3->3x2 view should not be contiguous")
	}

	reshaped, err := transposed.Reshape([]int{6})
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	defer reshaped.Release()

	want := []float64{0, 3, 1, 4, 2, 5}
	for i, w := range want {
		got := getAt(reshaped.data, reshaped.strides, reshaped.dtype, []int{i})
		if got != w {
			t.Errorf("reshaped[%d] = %v, want %v", i, got, w)
		}
	}
}

func TestReduceSumAxis(t *testing.T) {
	p := newTestPool(t)
	tn, err := New(p, F32, []int{2, 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Release()

	vals := [][]float64{{1, 2, 3}, {4, 5, 6}}
	for i, row := range vals {
		for j, v := range row {
			setAt(tn.data, tn.strides, tn.dtype, []int{i, j}, v)
		}
	}

	sum, err := Reduce(tn, 1, ReduceSum, false)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	defer sum.Release()

	want := []float64{6, 15}
	for i, w := range want {
		got := getAt(sum.data, sum.strides, sum.dtype, []int{i})
		if got != w {
			t.Errorf("sum[%d] = %v, want %v", i, got, w)
		}
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	p := newTestPool(t)
	tn, err := New(p, F32, []int{3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Release()

	for i, v := range []float64{1, 2, 3} {
		setAt(tn.data, tn.strides, tn.dtype, []int{i}, v)
	}

	out, err := Softmax(tn, 0, nil)
	if err != nil {
		t.Fatalf("Softmax: %v", err)
	}
	defer out.Release()

	var sum float64
	for i := 0; i < 3; i++ {
		sum += getAt(out.data, out.strides, out.dtype, []int{i})
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("softmax sum = %v, want 1", sum)
	}
}

func TestMatMulIdentity(t *testing.T) {
	p := newTestPool(t)
	a, err := New(p, F32, []int{2, 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Release()
	ident, err := New(p, F32, []int{2, 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ident.Release()

	vals := [][]float64{{1, 2}, {3, 4}}
	for i, row := range vals {
		for j, v := range row {
			setAt(a.data, a.strides, a.dtype, []int{i, j}, v)
		}
	}
	setAt(ident.data, ident.strides, ident.dtype, []int{0, 0}, 1)
	setAt(ident.data, ident.strides, ident.dtype, []int{1, 1}, 1)

	out, err := MatMul(a, ident, nil)
	if err != nil {
		t.Fatalf("MatMul: %v", err)
	}
	defer out.Release()

	for i, row := range vals {
		for j, want := range row {
			got := getAt(out.data, out.strides, out.dtype, []int{i, j})
			if got != want {
				t.Errorf("out[%d][%d] = %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestBF16RoundTripIdempotent(t *testing.T) {
	values := []float32{0, 1, -1, 3.14159, 1e10, -1e-10}
	for _, x := range values {
		b := ToBF16(x)
		f := FromBF16(b)
		b2 := ToBF16(f)
		if b != b2 {
			t.Errorf("bf16(%v) not idempotent: %x vs %x", x, b, b2)
		}
	}
}

func TestQuantizeDequantizeRoundTrip(t *testing.T) {
	qmin, qmax := Int8Range()
	vals := []float32{-10, -5, 5, 10}
	p := ComputeQuantParams(-10, 10, qmin, qmax, true)
	for _, x := range vals {
		q := Quantize(x, p)
		xr := Dequantize(q, p)
		if math.Abs(float64(x-xr)) > float64(2*p.Scale) {
			t.Errorf("quantize/dequantize(%v) = %v, outside 2*scale=%v", x, xr, 2*p.Scale)
		}
	}
}

func TestBroadcastShape(t *testing.T) {
	cases := []struct {
		a, b, want []int
	}{
		{[]int{3, 1}, []int{1, 4}, []int{3, 4}},
		{[]int{5}, []int{3, 5}, []int{3, 5}},
		{[]int{2, 3}, []int{2, 3}, []int{2, 3}},
	}
	for _, c := range cases {
		got, err := BroadcastShape(c.a, c.b)
		if err != nil {
			t.Fatalf("BroadcastShape(%v,%v): %v", c.a, c.b, err)
		}
		if !shapeEqual(got, c.want) {
			t.Errorf("BroadcastShape(%v,%v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}

	if _, err := BroadcastShape([]int{2, 3}, []int{4, 3}); err == nil {
		t.Error("expected error for incompatible shapes")
	}
}

func TestAddBroadcast(t *testing.T) {
	p := newTestPool(t)
	a, err := New(p, F32, []int{2, 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Release()
	b, err := New(p, F32, []int{1, 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Release()

	Fill(a, 1)
	setAt(b.data, b.strides, b.dtype, []int{0, 0}, 10)
	setAt(b.data, b.strides, b.dtype, []int{0, 1}, 20)

	out, err := Add(a, b, nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	defer out.Release()

	want := [][]float64{{11, 21}, {11, 21}}
	for i, row := range want {
		for j, w := range row {
			got := getAt(out.data, out.strides, out.dtype, []int{i, j})
			if got != w {
				t.Errorf("out[%d][%d] = %v, want %v", i, j, got, w)
			}
		}
	}
}

func TestFillNormalApproximatesDistribution(t *testing.T) {
	p := newTestPool(t)
	tn, err := New(p, F32, []int{2000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Release()

	src := rand.New(rand.NewSource(1))
	FillNormal(tn, src, 0, 1)

	var sum float64
	forEachIndex(tn.shape, func(idx []int) {
		sum += getAt(tn.data, tn.strides, tn.dtype, idx)
	})
	mean := sum / float64(tn.size)
	if math.Abs(mean) > 0.2 {
		t.Errorf("sample mean = %v, want close to 0", mean)
	}
}

func TestInt4PackedRoundTrip(t *testing.T) {
	p := newTestPool(t)
	tn, err := New(p, Int4Packed, []int{5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tn.Release()

	want := []float64{0, 5, 15, 8, 3}
	for i, v := range want {
		setAt(tn.data, tn.strides, tn.dtype, []int{i}, v)
	}
	for i, w := range want {
		got := getAt(tn.data, tn.strides, tn.dtype, []int{i})
		if got != w {
			t.Errorf("int4[%d] = %v, want %v", i, got, w)
		}
	}
}
