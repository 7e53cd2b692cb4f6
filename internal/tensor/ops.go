package tensor

import (
	"github.com/libetude/libetude/internal/errs"
)

// copyDense copies src's logical elements into dst in row-major order. dst
// must be contiguous and have the same shape as src; src may be strided.
func copyDense(dst, src *Tensor) error {
	if product(dst.shape) != product(src.shape) {
		return errs.New(errs.InvalidArgument, "copyDense shape mismatch")
	}
	if dst.dtype != src.dtype {
		return errs.New(errs.InvalidArgument, "copyDense dtype mismatch")
	}

	// Walk src in its own shape order and dst in a matching flattened
	// row-major order: same element count, so a shared counter over src's
	// index space and dst's natural row-major indexing lines up.
	dstIdx := make([]int, len(dst.shape))
	forEachIndex(src.shape, func(srcIdx []int) {
		v := getAt(src.data, src.strides, src.dtype, srcIdx)
		setAt(dst.data, dst.strides, dst.dtype, dstIdx, v)
		incIndex(dstIdx, dst.shape)
	})
	return nil
}

// incIndex advances idx by one in row-major order over shape, wrapping.
func incIndex(idx, shape []int) {
	for i := len(shape) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < shape[i] {
			return
		}
		idx[i] = 0
	}
}

// BinOp identifies an element-wise binary operation.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
)

// Add computes a+b element-wise with broadcasting, writing into out if
// non-nil, otherwise allocating a new result tensor from a's pool.
func Add(a, b, out *Tensor) (*Tensor, error) { return binOp(OpAdd, a, b, out) }

// Sub computes a-b element-wise with broadcasting.
func Sub(a, b, out *Tensor) (*Tensor, error) { return binOp(OpSub, a, b, out) }

// Mul computes a*b element-wise with broadcasting.
func Mul(a, b, out *Tensor) (*Tensor, error) { return binOp(OpMul, a, b, out) }

// Div computes a/b element-wise with broadcasting. Division by zero yields
// zero rather than Inf/NaN, per spec §4.C.
func Div(a, b, out *Tensor) (*Tensor, error) { return binOp(OpDiv, a, b, out) }

func applyBin(op BinOp, x, y float64) float64 {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		if y == 0 {
			return 0
		}
		return x / y
	default:
		return 0
	}
}

func binOp(op BinOp, a, b, out *Tensor) (*Tensor, error) {
	if a.dtype != b.dtype {
		return nil, errs.New(errs.InvalidArgument, "binary op dtype mismatch")
	}
	shape, err := BroadcastShape(a.shape, b.shape)
	if err != nil {
		return nil, err
	}

	if out == nil {
		out, err = New(a.pool, a.dtype, shape)
		if err != nil {
			return nil, err
		}
	} else if !shapeEqual(out.shape, shape) {
		return nil, errs.New(errs.InvalidArgument, "binary op output shape mismatch")
	}

	aStrides := broadcastStrides(a.shape, a.strides, shape)
	bStrides := broadcastStrides(b.shape, b.strides, shape)

	forEachIndex(shape, func(idx []int) {
		x := getAt(a.data, aStrides, a.dtype, idx)
		y := getAt(b.data, bStrides, b.dtype, idx)
		setAt(out.data, out.strides, out.dtype, idx, applyBin(op, x, y))
	})
	return out, nil
}

// AddScalar adds s to every element of a, writing into out if non-nil.
func AddScalar(a *Tensor, s float64, out *Tensor) (*Tensor, error) {
	return scalarOp(OpAdd, a, s, out)
}

// MulScalar multiplies every element of a by s, writing into out if non-nil.
func MulScalar(a *Tensor, s float64, out *Tensor) (*Tensor, error) {
	return scalarOp(OpMul, a, s, out)
}

func scalarOp(op BinOp, a *Tensor, s float64, out *Tensor) (*Tensor, error) {
	var err error
	if out == nil {
		out, err = New(a.pool, a.dtype, a.shape)
		if err != nil {
			return nil, err
		}
	} else if !shapeEqual(out.shape, a.shape) {
		return nil, errs.New(errs.InvalidArgument, "scalar op output shape mismatch")
	}
	forEachIndex(a.shape, func(idx []int) {
		v := getAt(a.data, a.strides, a.dtype, idx)
		setAt(out.data, out.strides, out.dtype, idx, applyBin(op, v, s))
	})
	return out, nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
