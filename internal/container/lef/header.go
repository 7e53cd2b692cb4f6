// Package lef implements the LEF (LibEtude model) binary container: a
// little-endian header/meta/layer-index/payload layout with CRC32
// integrity, a two-pass writer, and both memory-mapped and streaming
// (bounded-cache) readers.
package lef

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/libetude/libetude/internal/errs"
)

// Magic identifies a LEF file. Distinct from the LEFX extension magic so
// the two container kinds can never be confused.
const Magic = "LEF\x00"

// headerSize is the fixed on-disk size of Header, in bytes.
const headerSize = 4 + 2 + 2 + 4 + 4 + 8 + 8 + 4 + 8 + 8 + 4

// Flag bits within Header.Flags.
const (
	FlagCompressed uint32 = 1 << 0
	FlagQuantized  uint32 = 1 << 1
	FlagExtended   uint32 = 1 << 2
)

// Header is LEF's fixed-size file header.
type Header struct {
	Major            uint16
	Minor            uint16
	Flags            uint32
	ModelHash        uint32
	MetaOffset       uint64
	LayerIndexOffset uint64
	LayerCount       uint32
	DataOffset       uint64
	FileSize         uint64
	CRC32            uint32
}

// Encode serializes h to its fixed-size on-disk form. The CRC32 field is
// written as given (callers compute it over the zeroed-CRC encoding first).
func (h *Header) Encode() []byte {
	b := make([]byte, headerSize)
	off := 0
	copy(b[off:off+4], Magic)
	off += 4
	binary.LittleEndian.PutUint16(b[off:], h.Major)
	off += 2
	binary.LittleEndian.PutUint16(b[off:], h.Minor)
	off += 2
	binary.LittleEndian.PutUint32(b[off:], h.Flags)
	off += 4
	binary.LittleEndian.PutUint32(b[off:], h.ModelHash)
	off += 4
	binary.LittleEndian.PutUint64(b[off:], h.MetaOffset)
	off += 8
	binary.LittleEndian.PutUint64(b[off:], h.LayerIndexOffset)
	off += 8
	binary.LittleEndian.PutUint32(b[off:], h.LayerCount)
	off += 4
	binary.LittleEndian.PutUint64(b[off:], h.DataOffset)
	off += 8
	binary.LittleEndian.PutUint64(b[off:], h.FileSize)
	off += 8
	binary.LittleEndian.PutUint32(b[off:], h.CRC32)
	off += 4
	return b
}

// crcField is the byte offset of the CRC32 field within the encoded header.
const crcField = headerSize - 4

// computeHeaderCRC returns the IEEE CRC32 of the header's encoding with the
// CRC32 field zeroed, per spec §4.E.
func computeHeaderCRC(encoded []byte) uint32 {
	tmp := make([]byte, len(encoded))
	copy(tmp, encoded)
	for i := crcField; i < crcField+4; i++ {
		tmp[i] = 0
	}
	return crc32.ChecksumIEEE(tmp)
}

// DecodeHeader parses a Header from its fixed-size on-disk form, validating
// the magic and the header CRC before returning. Version compatibility is
// not checked here; CheckVersion does that.
func DecodeHeader(b []byte) (*Header, error) {
	if len(b) < headerSize {
		return nil, errs.New(errs.Corrupt, "lef header truncated")
	}
	if string(b[0:4]) != Magic {
		return nil, errs.New(errs.Corrupt, "lef magic mismatch")
	}

	h := &Header{}
	off := 4
	h.Major = binary.LittleEndian.Uint16(b[off:])
	off += 2
	h.Minor = binary.LittleEndian.Uint16(b[off:])
	off += 2
	h.Flags = binary.LittleEndian.Uint32(b[off:])
	off += 4
	h.ModelHash = binary.LittleEndian.Uint32(b[off:])
	off += 4
	h.MetaOffset = binary.LittleEndian.Uint64(b[off:])
	off += 8
	h.LayerIndexOffset = binary.LittleEndian.Uint64(b[off:])
	off += 8
	h.LayerCount = binary.LittleEndian.Uint32(b[off:])
	off += 4
	h.DataOffset = binary.LittleEndian.Uint64(b[off:])
	off += 8
	h.FileSize = binary.LittleEndian.Uint64(b[off:])
	off += 8
	h.CRC32 = binary.LittleEndian.Uint32(b[off:])

	if got := computeHeaderCRC(b[:headerSize]); got != h.CRC32 {
		return nil, errs.Newf(errs.Corrupt, "lef header CRC mismatch: got %x want %x", got, h.CRC32)
	}
	return h, nil
}

// CheckVersion validates major-equal, minor-forward-compatible semantics
// per spec §4.E: a reader at (major, minor) can open a file whose major
// matches exactly and whose minor is <= the reader's.
func CheckVersion(fileMajor, fileMinor, readerMajor, readerMinor uint16) error {
	if fileMajor != readerMajor {
		return errs.Newf(errs.IncompatibleVersion, "lef major version %d.%d incompatible with reader %d.%d", fileMajor, fileMinor, readerMajor, readerMinor)
	}
	if fileMinor > readerMinor {
		return errs.Newf(errs.IncompatibleVersion, "lef minor version %d newer than reader %d", fileMinor, readerMinor)
	}
	return nil
}
