package lef

import (
	"hash/crc32"
	"io"

	"github.com/libetude/libetude/internal/errs"
)

// LayerInput describes one layer to be written: its uncompressed payload,
// kind/quantization, dependency list, and the codec to compress it with
// (CodecNone stores it as-is).
type LayerInput struct {
	ID           int32
	Kind         LayerKind
	Quant        QuantKind
	Dependencies []int32
	Data         []byte
	Codec        Codec
}

// Write serializes meta and layers to w (which must support Seek, since
// the writer reserves placeholder space for the header and layer index and
// patches them after payloads are written), per spec §4.E's two-pass
// writer: header placeholder -> meta -> layer-index placeholder -> payloads
// -> rewind and patch offsets/sizes/CRC/model hash.
func Write(w io.WriteSeeker, major, minor uint16, meta *ModelMeta, layers []LayerInput) error {
	// Pass 1: reserve header space.
	headerOff, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return errs.Wrap(errs.IO, "seek failed", err)
	}
	if _, err := w.Write(make([]byte, headerSize)); err != nil {
		return errs.Wrap(errs.IO, "header placeholder write failed", err)
	}

	metaOff, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return errs.Wrap(errs.IO, "seek failed", err)
	}
	if _, err := w.Write(meta.Encode()); err != nil {
		return errs.Wrap(errs.IO, "meta write failed", err)
	}

	layerIndexOff, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return errs.Wrap(errs.IO, "seek failed", err)
	}
	entries := make([]LayerEntry, len(layers))
	if _, err := w.Write(make([]byte, layerEntrySize*len(layers))); err != nil {
		return errs.Wrap(errs.IO, "layer index placeholder write failed", err)
	}

	dataOff, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return errs.Wrap(errs.IO, "seek failed", err)
	}

	payloads := make(map[int32][]byte, len(layers))
	for i, l := range layers {
		compressed, err := Compress(l.Codec, l.Data)
		if err != nil {
			return err
		}
		payloads[l.ID] = compressed

		offset, err := w.Seek(0, io.SeekCurrent)
		if err != nil {
			return errs.Wrap(errs.IO, "seek failed", err)
		}
		if _, err := w.Write(compressed); err != nil {
			return errs.Wrap(errs.IO, "layer payload write failed", err)
		}

		depOffset := uint64(0)
		if len(l.Dependencies) > 0 {
			depOffset, err = w.Seek(0, io.SeekCurrent)
			if err != nil {
				return errs.Wrap(errs.IO, "seek failed", err)
			}
			if err := writeDependencies(w, l.Dependencies); err != nil {
				return err
			}
		}

		entries[i] = LayerEntry{
			ID:               l.ID,
			Kind:             l.Kind,
			Quant:            l.Quant,
			Codec:            l.Codec,
			Offset:           uint64(offset),
			UncompressedSize: uint64(len(l.Data)),
			CompressedSize:   uint64(len(compressed)),
			CRC32:            crc32.ChecksumIEEE(compressed),
			DependencyCount:  uint32(len(l.Dependencies)),
			DependencyOffset: depOffset,
		}
	}

	fileSize, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return errs.Wrap(errs.IO, "seek failed", err)
	}

	// Pass 2: patch the layer index with real offsets/sizes.
	if _, err := w.Seek(layerIndexOff, io.SeekStart); err != nil {
		return errs.Wrap(errs.IO, "seek failed", err)
	}
	if _, err := w.Write(EncodeLayerIndex(entries)); err != nil {
		return errs.Wrap(errs.IO, "layer index patch failed", err)
	}

	hdr := &Header{
		Major:            major,
		Minor:            minor,
		ModelHash:        ComputeModelHash(meta, payloads),
		MetaOffset:       uint64(metaOff),
		LayerIndexOffset: uint64(layerIndexOff),
		LayerCount:       uint32(len(layers)),
		DataOffset:       uint64(dataOff),
		FileSize:         uint64(fileSize),
	}
	for _, l := range layers {
		if l.Codec != CodecNone {
			hdr.Flags |= FlagCompressed
		}
		if l.Quant != QuantNone {
			hdr.Flags |= FlagQuantized
		}
	}
	encoded := hdr.Encode()
	hdr.CRC32 = computeHeaderCRC(encoded)
	encoded = hdr.Encode()

	if _, err := w.Seek(headerOff, io.SeekStart); err != nil {
		return errs.Wrap(errs.IO, "seek failed", err)
	}
	if _, err := w.Write(encoded); err != nil {
		return errs.Wrap(errs.IO, "header patch failed", err)
	}

	if _, err := w.Seek(fileSize, io.SeekStart); err != nil {
		return errs.Wrap(errs.IO, "seek failed", err)
	}
	return nil
}

func writeDependencies(w io.Writer, deps []int32) error {
	b := make([]byte, 4*len(deps))
	for i, d := range deps {
		off := i * 4
		b[off] = byte(d)
		b[off+1] = byte(d >> 8)
		b[off+2] = byte(d >> 16)
		b[off+3] = byte(d >> 24)
	}
	if _, err := w.Write(b); err != nil {
		return errs.Wrap(errs.IO, "dependency list write failed", err)
	}
	return nil
}
