package tensor

import (
	"math"

	"github.com/libetude/libetude/internal/errs"
)

// QuantParams describes an affine quantization mapping between a real range
// [Min,Max] and an integer range [QMin,QMax].
type QuantParams struct {
	Scale     float32
	ZeroPoint int32
	Min       float32
	Max       float32
	QMin      int32
	QMax      int32
	Symmetric bool
}

// QuantInfo bundles quantization params with the tensor's original element
// type, so a quantized tensor can be dequantized back to its source dtype.
type QuantInfo struct {
	Params   QuantParams
	OrigType DType
}

// Int8Range is the quantization range used for int8 tensors.
func Int8Range() (qmin, qmax int32) { return -128, 127 }

// Int4Range is the quantization range used for int4-packed tensors.
func Int4Range() (qmin, qmax int32) { return 0, 15 }

// ComputeQuantParams derives (scale, zero_point) from a calibrated real
// range and target integer range, per spec §4.B.
func ComputeQuantParams(rmin, rmax float32, qmin, qmax int32, symmetric bool) QuantParams {
	p := QuantParams{Min: rmin, Max: rmax, QMin: qmin, QMax: qmax, Symmetric: symmetric}
	if symmetric {
		bound := math.Abs(float64(rmin))
		if math.Abs(float64(rmax)) > bound {
			bound = math.Abs(float64(rmax))
		}
		if bound == 0 {
			p.Scale = 1
		} else {
			p.Scale = float32(bound) / float32(qmax)
		}
		p.ZeroPoint = 0
		return p
	}

	span := rmax - rmin
	if span <= 0 {
		p.Scale = 1
	} else {
		p.Scale = span / float32(qmax-qmin)
	}
	z := int32(math.Round(float64(qmin) - float64(rmin)/float64(p.Scale)))
	p.ZeroPoint = int32(ClampInt(int64(z), int64(qmin), int64(qmax)))
	return p
}

// Quantize maps a real value to the quantized integer domain.
func Quantize(x float32, p QuantParams) int32 {
	q := int64(math.Round(float64(x)/float64(p.Scale))) + int64(p.ZeroPoint)
	return int32(ClampInt(q, int64(p.QMin), int64(p.QMax)))
}

// Dequantize maps a quantized integer back to the real domain.
func Dequantize(q int32, p QuantParams) float32 {
	return p.Scale * float32(q-p.ZeroPoint)
}

// QuantizeTensor quantizes src (must be F32) into a newly allocated tensor
// of dtype (Int8 or Int4Packed) using p for every element, returning only
// the quantized tensor. Per-channel quantization is QuantizePerChannel.
func QuantizeTensor(src *Tensor, dtype DType, p QuantParams) (*Tensor, error) {
	if src.dtype != F32 {
		return nil, errs.New(errs.InvalidArgument, "quantize requires an f32 source")
	}
	if dtype != Int8 && dtype != Int4Packed {
		return nil, errs.New(errs.InvalidArgument, "quantize target must be int8 or int4")
	}
	out, err := New(src.pool, dtype, src.shape)
	if err != nil {
		return nil, err
	}
	forEachIndex(src.shape, func(idx []int) {
		x := float32(getAt(src.data, src.strides, src.dtype, idx))
		q := Quantize(x, p)
		setAt(out.data, out.strides, out.dtype, idx, float64(q))
	})
	return out, nil
}

// DequantizeTensor dequantizes src (Int8 or Int4Packed) into a newly
// allocated F32 tensor using p.
func DequantizeTensor(src *Tensor, p QuantParams) (*Tensor, error) {
	if src.dtype != Int8 && src.dtype != Int4Packed {
		return nil, errs.New(errs.InvalidArgument, "dequantize source must be int8 or int4")
	}
	out, err := New(src.pool, F32, src.shape)
	if err != nil {
		return nil, err
	}
	forEachIndex(src.shape, func(idx []int) {
		q := int32(getAt(src.data, src.strides, src.dtype, idx))
		x := Dequantize(q, p)
		setAt(out.data, out.strides, out.dtype, idx, float64(x))
	})
	return out, nil
}

// QuantizePerChannel computes and applies independent quantization params
// along axis, returning the quantized tensor and one QuantParams per
// channel (in channel order).
func QuantizePerChannel(src *Tensor, dtype DType, axis int, qmin, qmax int32, symmetric bool) (*Tensor, []QuantParams, error) {
	if src.dtype != F32 {
		return nil, nil, errs.New(errs.InvalidArgument, "quantize requires an f32 source")
	}
	if axis < 0 || axis >= len(src.shape) {
		return nil, nil, errs.Newf(errs.InvalidArgument, "axis %d out of range", axis)
	}

	out, err := New(src.pool, dtype, src.shape)
	if err != nil {
		return nil, nil, err
	}

	channels := src.shape[axis]
	params := make([]QuantParams, channels)

	for c := 0; c < channels; c++ {
		view, err := src.Slice(axis, c, c+1)
		if err != nil {
			return nil, nil, err
		}
		rmin, rmax := minMax(view)
		p := ComputeQuantParams(rmin, rmax, qmin, qmax, symmetric)
		params[c] = p
		_ = view.Release()
	}

	forEachIndex(src.shape, func(idx []int) {
		c := idx[axis]
		x := float32(getAt(src.data, src.strides, src.dtype, idx))
		q := Quantize(x, params[c])
		setAt(out.data, out.strides, out.dtype, idx, float64(q))
	})

	return out, params, nil
}

func minMax(t *Tensor) (float32, float32) {
	minV := float32(math.Inf(1))
	maxV := float32(math.Inf(-1))
	forEachIndex(t.shape, func(idx []int) {
		v := float32(getAt(t.data, t.strides, t.dtype, idx))
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	})
	return minV, maxV
}
