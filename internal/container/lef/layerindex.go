package lef

import (
	"encoding/binary"

	"github.com/libetude/libetude/internal/errs"
)

// LayerKind identifies a layer's role within the model graph.
type LayerKind int32

// QuantKind identifies a layer's storage quantization.
type QuantKind int32

const (
	QuantNone QuantKind = iota
	QuantInt8
	QuantInt4
)

// layerEntrySize is the fixed on-disk size of one LayerEntry.
const layerEntrySize = 4 + 4 + 4 + 4 + 8 + 8 + 8 + 4 + 4 + 8

// LayerEntry is one entry in LEF's layer index: where a layer's payload
// lives, how large it is compressed/uncompressed, its integrity checksum,
// and which other layers it depends on.
type LayerEntry struct {
	ID               int32
	Kind             LayerKind
	Quant            QuantKind
	Codec            Codec
	Offset           uint64
	UncompressedSize uint64
	CompressedSize   uint64
	CRC32            uint32
	DependencyCount  uint32
	DependencyOffset uint64
}

// Encode serializes e to its fixed-size on-disk form.
func (e *LayerEntry) Encode() []byte {
	b := make([]byte, layerEntrySize)
	off := 0
	binary.LittleEndian.PutUint32(b[off:], uint32(e.ID))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.Kind))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.Quant))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.Codec))
	off += 4
	binary.LittleEndian.PutUint64(b[off:], e.Offset)
	off += 8
	binary.LittleEndian.PutUint64(b[off:], e.UncompressedSize)
	off += 8
	binary.LittleEndian.PutUint64(b[off:], e.CompressedSize)
	off += 8
	binary.LittleEndian.PutUint32(b[off:], e.CRC32)
	off += 4
	binary.LittleEndian.PutUint32(b[off:], e.DependencyCount)
	off += 4
	binary.LittleEndian.PutUint64(b[off:], e.DependencyOffset)
	return b
}

// DecodeLayerEntry parses a LayerEntry from its fixed-size on-disk form.
func DecodeLayerEntry(b []byte) (*LayerEntry, error) {
	if len(b) < layerEntrySize {
		return nil, errs.New(errs.Corrupt, "lef layer index entry truncated")
	}
	e := &LayerEntry{}
	off := 0
	e.ID = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.Kind = LayerKind(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.Quant = QuantKind(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.Codec = Codec(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.Offset = binary.LittleEndian.Uint64(b[off:])
	off += 8
	e.UncompressedSize = binary.LittleEndian.Uint64(b[off:])
	off += 8
	e.CompressedSize = binary.LittleEndian.Uint64(b[off:])
	off += 8
	e.CRC32 = binary.LittleEndian.Uint32(b[off:])
	off += 4
	e.DependencyCount = binary.LittleEndian.Uint32(b[off:])
	off += 4
	e.DependencyOffset = binary.LittleEndian.Uint64(b[off:])
	return e, nil
}

// EncodeLayerIndex serializes a full ordered slice of entries back to back.
func EncodeLayerIndex(entries []LayerEntry) []byte {
	b := make([]byte, 0, layerEntrySize*len(entries))
	for i := range entries {
		b = append(b, entries[i].Encode()...)
	}
	return b
}

// DecodeLayerIndex parses count entries from b.
func DecodeLayerIndex(b []byte, count int) ([]LayerEntry, error) {
	entries := make([]LayerEntry, count)
	for i := 0; i < count; i++ {
		start := i * layerEntrySize
		end := start + layerEntrySize
		if end > len(b) {
			return nil, errs.New(errs.Corrupt, "lef layer index truncated")
		}
		e, err := DecodeLayerEntry(b[start:end])
		if err != nil {
			return nil, err
		}
		entries[i] = *e
	}
	return entries, nil
}
