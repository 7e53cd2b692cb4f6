package lefx

import "github.com/libetude/libetude/internal/errs"

// BaseIdentity is the subset of a loaded LEF model's identity lefx needs to
// validate a binding against.
type BaseIdentity struct {
	ModelHash uint32
	Name      string
	Version   string
}

// Extension is a parsed LEFX file: its header and the layer deltas it
// carries.
type Extension struct {
	Header *Header
	Deltas []LayerDelta
}

// Decode parses a full LEFX byte stream: header, then LayerCount deltas
// back to back.
func Decode(b []byte) (*Extension, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}

	deltas := make([]LayerDelta, 0, h.LayerCount)
	off := headerSize
	for i := uint32(0); i < h.LayerCount; i++ {
		d, n, err := DecodeLayerDelta(b[off:])
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, *d)
		off += n
	}
	return &Extension{Header: h, Deltas: deltas}, nil
}

// Bind validates ext against the loaded base model's identity, per spec
// §4.E: a mismatch on hash, name, or version fails with IncompatibleBase.
func Bind(ext *Extension, base BaseIdentity) error {
	if ext.Header.BaseModelHash != base.ModelHash {
		return errs.Newf(errs.IncompatibleBase, "extension base hash %x does not match loaded model hash %x", ext.Header.BaseModelHash, base.ModelHash)
	}
	if ext.Header.BaseModelName != base.Name {
		return errs.Newf(errs.IncompatibleBase, "extension base name %q does not match loaded model %q", ext.Header.BaseModelName, base.Name)
	}
	if ext.Header.BaseModelVer != base.Version {
		return errs.Newf(errs.IncompatibleBase, "extension base version %q does not match loaded model %q", ext.Header.BaseModelVer, base.Version)
	}
	return nil
}

// DeltasForLayer returns every delta in ext targeting baseLayerID, in file
// order (callers apply them in that order).
func (e *Extension) DeltasForLayer(baseLayerID int32) []LayerDelta {
	var out []LayerDelta
	for _, d := range e.Deltas {
		if d.BaseLayerID == baseLayerID {
			out = append(out, d)
		}
	}
	return out
}

// Encode serializes ext's header (with a finalized CRC) followed by every
// delta, producing bytes Decode can parse back.
func Encode(ext *Extension) []byte {
	ext.Header.LayerCount = uint32(len(ext.Deltas))
	ext.Header.Finalize()

	out := ext.Header.Encode()
	for i := range ext.Deltas {
		out = append(out, ext.Deltas[i].Encode()...)
	}
	return out
}
