package tensor

import "github.com/libetude/libetude/internal/errs"

// BroadcastShape computes the broadcast result shape of a and b per spec
// §4.C: shapes are aligned at their trailing dimension, and for each aligned
// pair of dims the sizes must be equal or one of them must be 1, in which
// case the result takes the other (possibly larger) size.
func BroadcastShape(a, b []int) ([]int, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		da, db := 1, 1
		if i < len(a) {
			da = a[len(a)-1-i]
		}
		if i < len(b) {
			db = b[len(b)-1-i]
		}
		switch {
		case da == db:
			out[n-1-i] = da
		case da == 1:
			out[n-1-i] = db
		case db == 1:
			out[n-1-i] = da
		default:
			return nil, errs.Newf(errs.InvalidArgument, "shapes %v and %v are not broadcastable", a, b)
		}
	}
	return out, nil
}

// broadcastStrides expands strides for a tensor of shape `shape` so that it
// can be indexed by a multi-index over the (larger) broadcast shape `target`:
// dimensions that were size 1 (or absent) get a zero stride, so every index
// along that axis reads the same element.
func broadcastStrides(shape, strides, target []int) []int {
	n := len(target)
	out := make([]int, n)
	offset := n - len(shape)
	for i := 0; i < n; i++ {
		si := i - offset
		if si < 0 || shape[si] == 1 {
			out[i] = 0
			continue
		}
		out[i] = strides[si]
	}
	return out
}
