package tensor

import (
	"math"

	"github.com/libetude/libetude/internal/errs"
)

// Softmax computes a numerically stable softmax of t along axis, writing
// into out if non-nil. Each slice along axis sums to 1.
func Softmax(t *Tensor, axis int, out *Tensor) (*Tensor, error) {
	if axis < 0 || axis >= len(t.shape) {
		return nil, errs.Newf(errs.InvalidArgument, "axis %d out of range", axis)
	}

	var err error
	if out == nil {
		out, err = New(t.pool, t.dtype, t.shape)
		if err != nil {
			return nil, err
		}
	} else if !shapeEqual(out.shape, t.shape) {
		return nil, errs.New(errs.InvalidArgument, "softmax output shape mismatch")
	}

	n := t.shape[axis]
	outer := make([]int, len(t.shape))
	for i := range outer {
		outer[i] = t.shape[i]
	}
	outer[axis] = 1

	forEachIndex(outer, func(base []int) {
		idx := append([]int(nil), base...)

		maxV := math.Inf(-1)
		for i := 0; i < n; i++ {
			idx[axis] = i
			v := getAt(t.data, t.strides, t.dtype, idx)
			if v > maxV {
				maxV = v
			}
		}

		var sum float64
		exps := make([]float64, n)
		for i := 0; i < n; i++ {
			idx[axis] = i
			v := getAt(t.data, t.strides, t.dtype, idx)
			e := math.Exp(v - maxV)
			exps[i] = e
			sum += e
		}

		for i := 0; i < n; i++ {
			idx[axis] = i
			val := 0.0
			if sum > 0 {
				val = exps[i] / sum
			}
			setAt(out.data, out.strides, out.dtype, idx, val)
		}
	})

	return out, nil
}
