package lef

import (
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/libetude/libetude/internal/errs"
)

// MappedModel is a LEF model opened by memory-mapping the whole file; layer
// accessors return slices pointing directly into the mapping. The mapping
// is read-only for its lifetime.
type MappedModel struct {
	*Model
	mapping mmap.MMap
	file    *os.File
}

// OpenMapped memory-maps path and parses its LEF header/meta/layer index.
func OpenMapped(path string) (*MappedModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "open failed", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IO, "stat failed", err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IO, "mmap failed", err)
	}

	model, err := Open(&byteReaderAt{m}, info.Size())
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}

	return &MappedModel{Model: model, mapping: m, file: f}, nil
}

// LayerBytes returns a slice pointing directly into the mapping for the
// given layer's raw (still-compressed, if applicable) bytes, with no copy.
func (mm *MappedModel) LayerBytes(e *LayerEntry) []byte {
	return mm.mapping[e.Offset : e.Offset+e.CompressedSize]
}

// Close unmaps the file and releases the underlying file descriptor.
func (mm *MappedModel) Close() error {
	if err := mm.mapping.Unmap(); err != nil {
		return errs.Wrap(errs.IO, "munmap failed", err)
	}
	return mm.file.Close()
}

// byteReaderAt adapts a []byte to io.ReaderAt for Open.
type byteReaderAt struct {
	b []byte
}

func (r *byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || int(off) > len(r.b) {
		return 0, errs.New(errs.IO, "read offset out of range")
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, errs.New(errs.IO, "short read")
	}
	return n, nil
}
