// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how a Store encodes the document on disk.
//
// Uncompressed files are plain JSON and stay hand-editable. Compressed
// files start with a one-byte tag and the uvarint length of the
// uncompressed document. Tag bytes are control characters, so they can
// never be mistaken for the first byte of a JSON text.
type Compression byte

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
	CompressionLZ4  Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", byte(c))
	}
}

// ParseCompression converts a config name to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, zstd, or lz4)", name)
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("document: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDocumentSize))
	if err != nil {
		panic("document: zstd decoder initialization failed: " + err.Error())
	}
}

// MaxDocumentSize bounds the uncompressed size of a stored document.
const MaxDocumentSize = 64 << 20

// lz4MaxRatio is the largest expansion an lz4 block can encode.
const lz4MaxRatio = 255

// ErrCorrupt is returned when a compressed document file has a
// damaged header or body.
var ErrCorrupt = errors.New("document: corrupt compressed file")

func encode(data []byte, compression Compression) ([]byte, error) {
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("document is %d bytes, limit is %d", len(data), MaxDocumentSize)
	}
	if compression == CompressionNone {
		return data, nil
	}

	header := binary.AppendUvarint([]byte{byte(compression)}, uint64(len(data)))
	switch compression {
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, header), nil
	case CompressionLZ4:
		destination := make([]byte, len(header)+lz4.CompressBlockBound(len(data)))
		copy(destination, header)
		written, err := lz4.CompressBlock(data, destination[len(header):], nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if written == 0 {
			// lz4 declines incompressible input; store it plain.
			return data, nil
		}
		return destination[:len(header)+written], nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}
}

// decode reverses encode, recognising the format from the first byte.
func decode(data []byte) ([]byte, Compression, error) {
	if len(data) == 0 {
		return data, CompressionNone, nil
	}
	compression := Compression(data[0])
	if compression != CompressionZstd && compression != CompressionLZ4 {
		return data, CompressionNone, nil
	}

	// The size comes from the file, so bound it before allocating.
	size, n := binary.Uvarint(data[1:])
	if n <= 0 {
		return nil, compression, fmt.Errorf("%w: truncated length header", ErrCorrupt)
	}
	body := data[1+n:]
	if size > MaxDocumentSize {
		return nil, compression, fmt.Errorf("%w: declared size %d exceeds limit %d", ErrCorrupt, size, MaxDocumentSize)
	}
	if compression == CompressionLZ4 && size > uint64(len(body))*lz4MaxRatio {
		return nil, compression, fmt.Errorf("%w: declared size %d too large for %d-byte lz4 body", ErrCorrupt, size, len(body))
	}

	switch compression {
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, compression, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}
		if uint64(len(result)) != size {
			return nil, compression, fmt.Errorf("%w: zstd produced %d bytes, expected %d", ErrCorrupt, len(result), size)
		}
		return result, compression, nil
	default:
		result := make([]byte, size)
		read, err := lz4.UncompressBlock(body, result)
		if err != nil {
			return nil, compression, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
		}
		if uint64(read) != size {
			return nil, compression, fmt.Errorf("%w: lz4 produced %d bytes, expected %d", ErrCorrupt, read, size)
		}
		return result, compression, nil
	}
}
