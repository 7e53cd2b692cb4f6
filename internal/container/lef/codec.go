package lef

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/libetude/libetude/internal/errs"
)

// Codec identifies a layer payload's compression, independent of the
// file-level "compressed" flag (a file may mix compressed and
// stored-as-is layers).
type Codec int32

const (
	CodecNone Codec = iota
	CodecLZ4
	CodecZstd
)

// Compress encodes data under codec, returning the compressed bytes.
func Compress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, errs.Wrap(errs.IO, "lz4 compress failed", err)
		}
		if err := w.Close(); err != nil {
			return nil, errs.Wrap(errs.IO, "lz4 compress close failed", err)
		}
		return buf.Bytes(), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, errs.Wrap(errs.IO, "zstd encoder init failed", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, errs.Newf(errs.Unsupported, "unknown codec %d", codec)
	}
}

// Decompress decodes data under codec back to uncompressedSize bytes.
func Decompress(codec Codec, data []byte, uncompressedSize int) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil
	case CodecLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		out := make([]byte, uncompressedSize)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, errs.Wrap(errs.Corrupt, "lz4 decompress failed", err)
		}
		return out, nil
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errs.Wrap(errs.IO, "zstd decoder init failed", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, errs.Wrap(errs.Corrupt, "zstd decompress failed", err)
		}
		return out, nil
	default:
		return nil, errs.Newf(errs.Unsupported, "unknown codec %d", codec)
	}
}
