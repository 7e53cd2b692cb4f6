package tensor

import (
	"github.com/libetude/libetude/internal/errs"
)

// Reshape returns a view with a new shape over the same data. Reshape
// requires source contiguity; per spec §4.B a non-contiguous source forces
// a copy instead of aliasing.
func (t *Tensor) Reshape(shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if product(shape) != t.size {
		return nil, errs.Newf(errs.InvalidArgument, "reshape element count mismatch: have %d want %d", t.size, product(shape))
	}

	if !t.Contiguous() {
		return t.copyReshaped(shape)
	}

	elemSize := ElemSize(t.dtype)
	if t.dtype == Int4Packed {
		elemSize = 1
	}
	strides := rowMajorStrides(shape, elemSize)
	return t.newView(append([]int(nil), shape...), strides, t.data), nil
}

// copyReshaped materializes a contiguous copy of t with the given shape,
// used when the source is not contiguous.
func (t *Tensor) copyReshaped(shape []int) (*Tensor, error) {
	out, err := New(t.pool, t.dtype, shape)
	if err != nil {
		return nil, err
	}
	if err := copyDense(out, t); err != nil {
		_ = out.Release()
		return nil, err
	}
	return out, nil
}

// Slice returns a view over [start, end) along axis, sharing data with the
// parent. Empty ranges are rejected.
func (t *Tensor) Slice(axis, start, end int) (*Tensor, error) {
	if axis < 0 || axis >= len(t.shape) {
		return nil, errs.Newf(errs.InvalidArgument, "axis %d out of range", axis)
	}
	if start < 0 {
		start = 0
	}
	if end > t.shape[axis] {
		end = t.shape[axis]
	}
	if start >= end {
		return nil, errs.New(errs.InvalidArgument, "slice range is empty")
	}

	newShape := append([]int(nil), t.shape...)
	newShape[axis] = end - start

	byteOffset := start * t.strides[axis]
	if t.dtype == Int4Packed {
		// strides are element-index strides for a packed type; slicing at an
		// odd nibble boundary would require re-packing the whole view, so
		// only byte-aligned (even) offsets are supported as a plain view.
		if byteOffset%2 != 0 {
			return nil, errs.New(errs.InvalidArgument, "int4-packed slice must start on a byte boundary")
		}
		byteOffset /= 2
	}
	if byteOffset > len(t.data) {
		return nil, errs.New(errs.InvalidArgument, "slice out of range")
	}

	strides := append([]int(nil), t.strides...)
	return t.newView(newShape, strides, t.data[byteOffset:]), nil
}

// Transpose swaps two axes, producing a view with permuted strides.
func (t *Tensor) Transpose(axis1, axis2 int) (*Tensor, error) {
	n := len(t.shape)
	if axis1 < 0 || axis1 >= n || axis2 < 0 || axis2 >= n {
		return nil, errs.New(errs.InvalidArgument, "transpose axis out of range")
	}
	shape := append([]int(nil), t.shape...)
	strides := append([]int(nil), t.strides...)
	shape[axis1], shape[axis2] = shape[axis2], shape[axis1]
	strides[axis1], strides[axis2] = strides[axis2], strides[axis1]
	return t.newView(shape, strides, t.data), nil
}

// Permute reorders all axes according to perm, a permutation of
// [0, ndim).
func (t *Tensor) Permute(perm []int) (*Tensor, error) {
	n := len(t.shape)
	if len(perm) != n {
		return nil, errs.New(errs.InvalidArgument, "permute length mismatch")
	}
	seen := make([]bool, n)
	for _, p := range perm {
		if p < 0 || p >= n || seen[p] {
			return nil, errs.New(errs.InvalidArgument, "permute is not a valid permutation")
		}
		seen[p] = true
	}

	shape := make([]int, n)
	strides := make([]int, n)
	for i, p := range perm {
		shape[i] = t.shape[p]
		strides[i] = t.strides[p]
	}
	return t.newView(shape, strides, t.data), nil
}

// ExpandDims inserts a size-1 axis at position axis.
func (t *Tensor) ExpandDims(axis int) (*Tensor, error) {
	n := len(t.shape)
	if axis < 0 || axis > n {
		return nil, errs.New(errs.InvalidArgument, "expand_dims axis out of range")
	}

	shape := make([]int, 0, n+1)
	strides := make([]int, 0, n+1)
	shape = append(shape, t.shape[:axis]...)
	shape = append(shape, 1)
	shape = append(shape, t.shape[axis:]...)

	// The new axis's stride is irrelevant for addressing (size 1), but we
	// pick the stride that would make the tensor contiguous if everything
	// else already is: the stride of the dimension that follows it times
	// that dimension's size.
	var newStride int
	if axis < n {
		newStride = t.strides[axis] * t.shape[axis]
	} else if n > 0 {
		newStride = ElemSize(t.dtype)
	} else {
		newStride = ElemSize(t.dtype)
	}
	strides = append(strides, t.strides[:axis]...)
	strides = append(strides, newStride)
	strides = append(strides, t.strides[axis:]...)

	return t.newView(shape, strides, t.data), nil
}

// Squeeze removes all size-1 axes.
func (t *Tensor) Squeeze() (*Tensor, error) {
	shape := make([]int, 0, len(t.shape))
	strides := make([]int, 0, len(t.shape))
	for i, s := range t.shape {
		if s == 1 {
			continue
		}
		shape = append(shape, s)
		strides = append(strides, t.strides[i])
	}
	if len(shape) == 0 {
		shape = []int{1}
		strides = []int{ElemSize(t.dtype)}
	}
	return t.newView(shape, strides, t.data), nil
}
