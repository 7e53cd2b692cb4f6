// Package tensor implements LibEtude's multi-dimensional typed buffers:
// stride-based views, broadcasting, element-wise and reduction operations,
// matmul/softmax, and quantization/dequantization across f32/bf16/int8/
// int4-packed (plus uint8/int32/int64/f16 as auxiliary storage types).
package tensor

import (
	"math"

	"github.com/x448/float16"

	"github.com/libetude/libetude/internal/errs"
)

// DType identifies a tensor's element type.
type DType int

const (
	F32 DType = iota
	BF16
	Int8
	Int4Packed
	Uint8
	Int32
	Int64
	F16
)

func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case BF16:
		return "bf16"
	case Int8:
		return "int8"
	case Int4Packed:
		return "int4"
	case Uint8:
		return "uint8"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case F16:
		return "f16"
	default:
		return "unknown"
	}
}

// ElemSize returns the per-element size in bytes for fixed-width types.
// Int4Packed has no integral per-element size; callers must use
// PackedByteSize for that type instead.
func ElemSize(d DType) int {
	switch d {
	case F32, Int32:
		return 4
	case BF16, F16:
		return 2
	case Int8, Uint8:
		return 1
	case Int64:
		return 8
	default:
		return 0
	}
}

// PackedByteSize returns the number of bytes needed to store count elements
// of d, accounting for Int4Packed's two-values-per-byte layout.
func PackedByteSize(d DType, count int) int {
	if d == Int4Packed {
		return (count + 1) / 2
	}
	return ElemSize(d) * count
}

// ToBF16 truncates a float32 to its high 16 bits (sign + 8-bit exponent +
// 7-bit mantissa), per spec §4.B: bf16 is the high half of IEEE-754 f32.
func ToBF16(f float32) uint16 {
	bits := math.Float32bits(f)
	return uint16(bits >> 16)
}

// FromBF16 expands a bf16 value back to float32 by left-shifting into the
// high 16 bits and zero-filling the mantissa's low bits.
func FromBF16(b uint16) float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// ToF16 converts a float32 to IEEE binary16.
func ToF16(f float32) uint16 {
	return uint16(float16.Fromfloat32(f))
}

// FromF16 converts an IEEE binary16 value back to float32.
func FromF16(b uint16) float32 {
	return float16.Frombits(b).Float32()
}

// ClampInt clamps v to [lo, hi], used when converting to narrower integer
// types per spec §4.B ("clamping for out-of-range integers").
func ClampInt(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func invalidDType(d DType) error {
	return errs.Newf(errs.InvalidArgument, "unsupported dtype %s", d)
}
