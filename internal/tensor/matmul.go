package tensor

import "github.com/libetude/libetude/internal/errs"

// MatMul computes the 2D matrix product a[M,K] x b[K,N] = out[M,N]. a and b
// must share a dtype; out is allocated from a's pool when nil.
func MatMul(a, b, out *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, errs.New(errs.InvalidArgument, "matmul requires rank-2 tensors")
	}
	if a.dtype != b.dtype {
		return nil, errs.New(errs.InvalidArgument, "matmul dtype mismatch")
	}
	m, k := a.shape[0], a.shape[1]
	k2, n := b.shape[0], b.shape[1]
	if k != k2 {
		return nil, errs.Newf(errs.InvalidArgument, "matmul inner dim mismatch: %d vs %d", k, k2)
	}

	var err error
	if out == nil {
		out, err = New(a.pool, a.dtype, []int{m, n})
		if err != nil {
			return nil, err
		}
	} else if !shapeEqual(out.shape, []int{m, n}) {
		return nil, errs.New(errs.InvalidArgument, "matmul output shape mismatch")
	}

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for p := 0; p < k; p++ {
				av := getAt(a.data, a.strides, a.dtype, []int{i, p})
				bv := getAt(b.data, b.strides, b.dtype, []int{p, j})
				sum += av * bv
			}
			setAt(out.data, out.strides, out.dtype, []int{i, j}, sum)
		}
	}
	return out, nil
}
