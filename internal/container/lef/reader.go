package lef

import (
	"hash/crc32"
	"io"

	"github.com/libetude/libetude/internal/errs"
)

// ReaderVersion is the version this build of the reader supports.
const (
	ReaderMajor uint16 = 1
	ReaderMinor uint16 = 0
)

// Model is a parsed LEF file: header, metadata, and layer index, with
// accessors to fetch individual layer payloads from an underlying
// io.ReaderAt (a plain file, an mmap region, or any other random-access
// source).
type Model struct {
	Header *Header
	Meta   *ModelMeta
	Layers []LayerEntry

	src io.ReaderAt
}

// Open parses the header, metadata, and layer index from src, validating
// magic, version compatibility, and header CRC before trusting any offset.
func Open(src io.ReaderAt, size int64) (*Model, error) {
	hdrBuf := make([]byte, headerSize)
	if _, err := src.ReadAt(hdrBuf, 0); err != nil {
		return nil, errs.Wrap(errs.IO, "header read failed", err)
	}
	hdr, err := DecodeHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	if err := CheckVersion(hdr.Major, hdr.Minor, ReaderMajor, ReaderMinor); err != nil {
		return nil, err
	}
	if int64(hdr.FileSize) != size {
		return nil, errs.Newf(errs.Corrupt, "lef file size mismatch: header says %d, actual %d", hdr.FileSize, size)
	}

	metaBuf := make([]byte, metaSize)
	if _, err := src.ReadAt(metaBuf, int64(hdr.MetaOffset)); err != nil {
		return nil, errs.Wrap(errs.IO, "model meta read failed", err)
	}
	meta, err := DecodeModelMeta(metaBuf)
	if err != nil {
		return nil, err
	}

	idxBuf := make([]byte, layerEntrySize*int(hdr.LayerCount))
	if _, err := src.ReadAt(idxBuf, int64(hdr.LayerIndexOffset)); err != nil {
		return nil, errs.Wrap(errs.IO, "layer index read failed", err)
	}
	layers, err := DecodeLayerIndex(idxBuf, int(hdr.LayerCount))
	if err != nil {
		return nil, err
	}

	return &Model{Header: hdr, Meta: meta, Layers: layers, src: src}, nil
}

// Layer returns the LayerEntry for id, or an error if no such layer exists.
func (m *Model) Layer(id int32) (*LayerEntry, error) {
	for i := range m.Layers {
		if m.Layers[i].ID == id {
			return &m.Layers[i], nil
		}
	}
	return nil, errs.Newf(errs.NotFound, "no layer with id %d", id)
}

// ReadLayer reads, CRC-verifies, and (if the entry declares a codec)
// decompresses the payload of the given layer entry.
func (m *Model) ReadLayer(e *LayerEntry) ([]byte, error) {
	raw := make([]byte, e.CompressedSize)
	if _, err := m.src.ReadAt(raw, int64(e.Offset)); err != nil {
		return nil, errs.Wrap(errs.IO, "layer payload read failed", err)
	}
	if got := crc32.ChecksumIEEE(raw); got != e.CRC32 {
		return nil, errs.Newf(errs.Corrupt, "layer %d CRC mismatch: got %x want %x", e.ID, got, e.CRC32)
	}
	return Decompress(e.Codec, raw, int(e.UncompressedSize))
}
