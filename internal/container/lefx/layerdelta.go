package lefx

import (
	"encoding/binary"
	"math"

	"github.com/libetude/libetude/internal/errs"
)

// BlendMode selects how an extension layer's delta combines with the
// base layer's weights.
type BlendMode int32

const (
	BlendReplace BlendMode = iota
	BlendAddScaled
	BlendLerp
)

// layerDeltaHeaderSize is the fixed on-disk size of one LayerDelta's
// metadata, not counting its variable-length payload.
const layerDeltaHeaderSize = 4 + 4 + 4 + 8

// LayerDelta is one extension layer: the base layer it modifies, how to
// blend its payload in, and the payload itself.
type LayerDelta struct {
	BaseLayerID int32
	Blend       BlendMode
	Weight      float32
	Data        []byte
}

// Encode serializes d's metadata header followed by its raw payload.
func (d *LayerDelta) Encode() []byte {
	b := make([]byte, layerDeltaHeaderSize+len(d.Data))
	off := 0
	binary.LittleEndian.PutUint32(b[off:], uint32(d.BaseLayerID))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(d.Blend))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], math.Float32bits(d.Weight))
	off += 4
	binary.LittleEndian.PutUint64(b[off:], uint64(len(d.Data)))
	off += 8
	copy(b[off:], d.Data)
	return b
}

// DecodeLayerDelta parses one LayerDelta starting at b[0], returning the
// delta and the number of bytes consumed.
func DecodeLayerDelta(b []byte) (*LayerDelta, int, error) {
	if len(b) < layerDeltaHeaderSize {
		return nil, 0, errs.New(errs.Corrupt, "lefx layer delta truncated")
	}
	d := &LayerDelta{}
	off := 0
	d.BaseLayerID = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	d.Blend = BlendMode(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	d.Weight = math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	size := binary.LittleEndian.Uint64(b[off:])
	off += 8
	if uint64(len(b)-off) < size {
		return nil, 0, errs.New(errs.Corrupt, "lefx layer delta payload truncated")
	}
	d.Data = append([]byte(nil), b[off:off+int(size)]...)
	off += int(size)
	return d, off, nil
}

// Apply blends d's delta into base (the base layer's current weights,
// read as little-endian f32 values) in place, per spec §4.E's three blend
// modes.
func Apply(base []float32, d *LayerDelta) error {
	vals, err := bytesToF32(d.Data)
	if err != nil {
		return err
	}
	if len(vals) != len(base) {
		return errs.Newf(errs.InvalidArgument, "lefx delta length %d does not match base layer length %d", len(vals), len(base))
	}
	switch d.Blend {
	case BlendReplace:
		copy(base, vals)
	case BlendAddScaled:
		for i := range base {
			base[i] += d.Weight * vals[i]
		}
	case BlendLerp:
		for i := range base {
			base[i] = base[i]*(1-d.Weight) + vals[i]*d.Weight
		}
	default:
		return errs.Newf(errs.InvalidArgument, "unknown blend mode %d", d.Blend)
	}
	return nil
}

func bytesToF32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errs.New(errs.Corrupt, "lefx delta payload is not a whole number of f32 values")
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
