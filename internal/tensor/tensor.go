package tensor

import (
	"sync/atomic"

	"github.com/libetude/libetude/internal/errs"
	"github.com/libetude/libetude/internal/memory"
)

// tensorMagic marks live Tensor metadata for corruption detection.
const tensorMagic uint32 = 0x4c455442 // "LETB"

const maxNDim = 8

// Tensor is a dense multi-dimensional typed buffer with stride-based views.
// A Tensor created by New owns its storage (it was drawn from a Pool); a
// Tensor created by a view operation (Reshape, Slice, Transpose, ...)
// aliases its parent's data and shares its reference count.
//
// Only the owning goroutine mutates a Tensor's metadata; shape and strides
// are immutable after creation (spec §5). Tensors are not internally
// synchronized: readers may share a Tensor, writers require exclusive
// access, and the caller owns that discipline.
type Tensor struct {
	magic uint32

	shape   []int
	strides []int // byte strides
	dtype   DType
	size    int64 // total element count

	data []byte

	owns   bool
	pool   *memory.Pool
	alloc  *memory.Allocation
	parent *Tensor
	refs   *int32 // shared across a tensor and all of its views

	name string
}

func product(shape []int) int64 {
	n := int64(1)
	for _, s := range shape {
		n *= int64(s)
	}
	return n
}

func rowMajorStrides(shape []int, elemSize int) []int {
	n := len(shape)
	strides := make([]int, n)
	if n == 0 {
		return strides
	}
	strides[n-1] = elemSize
	for i := n - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * shape[i+1]
	}
	return strides
}

func validateShape(shape []int) error {
	if len(shape) == 0 || len(shape) > maxNDim {
		return errs.Newf(errs.InvalidArgument, "ndim must be in [1,%d], got %d", maxNDim, len(shape))
	}
	for i, s := range shape {
		if s <= 0 {
			return errs.Newf(errs.InvalidArgument, "shape[%d]=%d must be positive", i, s)
		}
	}
	return nil
}

// New creates a tensor of the given dtype and shape, drawing its storage
// from pool. Int4Packed tensors are always contiguous and pack two values
// per byte, low nibble first.
func New(pool *memory.Pool, dtype DType, shape []int) (*Tensor, error) {
	if pool == nil {
		return nil, errs.New(errs.InvalidArgument, "tensor requires a pool")
	}
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	shapeCopy := append([]int(nil), shape...)
	size := product(shapeCopy)
	byteSize := PackedByteSize(dtype, int(size))
	if byteSize <= 0 {
		return nil, invalidDType(dtype)
	}

	a, err := pool.Alloc(byteSize)
	if err != nil {
		return nil, err
	}

	elemSize := ElemSize(dtype)
	if dtype == Int4Packed {
		elemSize = 1 // strides are not meaningful for a packed type; contiguity is definitional
	}

	refs := int32(1)
	t := &Tensor{
		magic:   tensorMagic,
		shape:   shapeCopy,
		strides: rowMajorStrides(shapeCopy, elemSize),
		dtype:   dtype,
		size:    size,
		data:    a.Data,
		owns:    true,
		pool:    pool,
		alloc:   a,
		refs:    &refs,
	}
	return t, nil
}

// Shape returns the tensor's shape. The returned slice must not be mutated.
func (t *Tensor) Shape() []int { return t.shape }

// Strides returns the tensor's byte strides. The returned slice must not be
// mutated.
func (t *Tensor) Strides() []int { return t.strides }

// DType returns the tensor's element type.
func (t *Tensor) DType() DType { return t.dtype }

// Size returns the total element count (product of shape).
func (t *Tensor) Size() int64 { return t.size }

// NDim returns the number of dimensions.
func (t *Tensor) NDim() int { return len(t.shape) }

// DataSize returns the tensor's payload size in bytes.
func (t *Tensor) DataSize() int { return len(t.data) }

// Bytes returns the tensor's raw backing bytes.
func (t *Tensor) Bytes() []byte { return t.data }

// Name returns the tensor's optional debug name.
func (t *Tensor) Name() string { return t.name }

// SetName sets the tensor's optional debug name.
func (t *Tensor) SetName(name string) { t.name = name }

// Owns reports whether this tensor owns its storage (as opposed to being a
// view over a parent's storage).
func (t *Tensor) Owns() bool { return t.owns }

// RefCount returns the current shared reference count across this tensor
// and all of its views.
func (t *Tensor) RefCount() int32 { return atomic.LoadInt32(t.refs) }

// valid reports whether the tensor's metadata is intact.
func (t *Tensor) valid() bool { return t != nil && t.magic == tensorMagic }

// Contiguous reports whether strides are the row-major product of element
// size and trailing shape, i.e. this tensor has no gaps between elements.
// Int4Packed tensors are always contiguous by definition.
func (t *Tensor) Contiguous() bool {
	if t.dtype == Int4Packed {
		return true
	}
	want := rowMajorStrides(t.shape, ElemSize(t.dtype))
	if len(want) != len(t.strides) {
		return false
	}
	for i := range want {
		if want[i] != t.strides[i] {
			return false
		}
	}
	return true
}

// Retain increments the shared reference count and returns the same
// Tensor, for call sites that want to hand out an additional reference to
// an existing view without creating a new one.
func (t *Tensor) Retain() *Tensor {
	atomic.AddInt32(t.refs, 1)
	return t
}

// Release decrements the shared reference count and frees the owning
// tensor's storage once it reaches zero. It is safe to call Release on a
// view; the underlying storage is only freed when the last reference
// (view or owner) across the family is released.
func (t *Tensor) Release() error {
	if !t.valid() {
		return nil
	}
	n := atomic.AddInt32(t.refs, -1)
	t.magic = 0
	if n > 0 {
		return nil
	}

	root := t
	for root.parent != nil {
		root = root.parent
	}
	if root.owns && root.alloc != nil && root.pool != nil {
		return root.pool.Free(root.alloc)
	}
	return nil
}

// newView constructs a view tensor that shares data, pool, and refcount
// with parent, per spec §3 ("views alias a parent and participate in
// reference counting").
func (t *Tensor) newView(shape, strides []int, data []byte) *Tensor {
	root := t
	atomic.AddInt32(t.refs, 1)
	return &Tensor{
		magic:   tensorMagic,
		shape:   shape,
		strides: strides,
		dtype:   t.dtype,
		size:    product(shape),
		data:    data,
		owns:    false,
		pool:    t.pool,
		parent:  root,
		refs:    t.refs,
	}
}
