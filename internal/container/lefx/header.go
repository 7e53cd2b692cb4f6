// Package lefx implements LEFX, LibEtude's extension container: per-layer
// deltas that bind to and blend with a base LEF model identified by hash
// and name/version.
package lefx

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/libetude/libetude/internal/errs"
)

// Magic distinguishes an extension file from a base LEF file.
const Magic = "LEFX"

const (
	baseNameMax    = 64
	baseVersionMax = 16
)

// headerSize is the fixed on-disk size of Header.
const headerSize = 4 + 2 + 2 + 4 + baseNameMax + baseVersionMax + 4 + 4

// Header is LEFX's fixed-size extension header.
type Header struct {
	Major          uint16
	Minor          uint16
	BaseModelHash  uint32
	BaseModelName  string
	BaseModelVer   string
	LayerCount     uint32
	CRC32          uint32
}

const crcField = headerSize - 4

func (h *Header) Encode() []byte {
	b := make([]byte, headerSize)
	off := 0
	copy(b[off:off+4], Magic)
	off += 4
	binary.LittleEndian.PutUint16(b[off:], h.Major)
	off += 2
	binary.LittleEndian.PutUint16(b[off:], h.Minor)
	off += 2
	binary.LittleEndian.PutUint32(b[off:], h.BaseModelHash)
	off += 4
	n := copy(b[off:off+baseNameMax], h.BaseModelName)
	for i := n; i < baseNameMax; i++ {
		b[off+i] = 0
	}
	off += baseNameMax
	n = copy(b[off:off+baseVersionMax], h.BaseModelVer)
	for i := n; i < baseVersionMax; i++ {
		b[off+i] = 0
	}
	off += baseVersionMax
	binary.LittleEndian.PutUint32(b[off:], h.LayerCount)
	off += 4
	binary.LittleEndian.PutUint32(b[off:], h.CRC32)
	return b
}

func computeHeaderCRC(encoded []byte) uint32 {
	tmp := make([]byte, len(encoded))
	copy(tmp, encoded)
	for i := crcField; i < crcField+4; i++ {
		tmp[i] = 0
	}
	return crc32.ChecksumIEEE(tmp)
}

func cstr(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// DecodeHeader parses a Header, validating magic and header CRC.
func DecodeHeader(b []byte) (*Header, error) {
	if len(b) < headerSize {
		return nil, errs.New(errs.Corrupt, "lefx header truncated")
	}
	if string(b[0:4]) != Magic {
		return nil, errs.New(errs.Corrupt, "lefx magic mismatch")
	}

	h := &Header{}
	off := 4
	h.Major = binary.LittleEndian.Uint16(b[off:])
	off += 2
	h.Minor = binary.LittleEndian.Uint16(b[off:])
	off += 2
	h.BaseModelHash = binary.LittleEndian.Uint32(b[off:])
	off += 4
	h.BaseModelName = cstr(b[off : off+baseNameMax])
	off += baseNameMax
	h.BaseModelVer = cstr(b[off : off+baseVersionMax])
	off += baseVersionMax
	h.LayerCount = binary.LittleEndian.Uint32(b[off:])
	off += 4
	h.CRC32 = binary.LittleEndian.Uint32(b[off:])

	if got := computeHeaderCRC(b[:headerSize]); got != h.CRC32 {
		return nil, errs.Newf(errs.Corrupt, "lefx header CRC mismatch: got %x want %x", got, h.CRC32)
	}
	return h, nil
}

// Finalize computes and sets h.CRC32 over h's own encoding.
func (h *Header) Finalize() {
	h.CRC32 = computeHeaderCRC(h.Encode())
}
