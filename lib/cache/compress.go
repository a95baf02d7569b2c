// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a stored body is compressed. The values
// are written to the database and must not change.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a configured compression name. An empty
// name selects zstd, which suits JSON.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("cache: unknown compression %q (want zstd, lz4 or none)", name)
	}
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("cache: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("cache: zstd decoder initialization failed: " + err.Error())
	}
}

var errIncompressible = errors.New("cache: data is incompressible")

// compress returns the encoded body and the compression actually used.
// Bodies that do not shrink are stored as is.
func compress(data []byte, preferred Compression) ([]byte, Compression, error) {
	var encoded []byte
	var err error
	switch preferred {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		encoded, err = compressLZ4(data)
	case CompressionZstd:
		encoded, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("cache: unsupported compression %s", preferred)
	}
	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return encoded, preferred, nil
}

func decompress(data []byte, compression Compression, size int) ([]byte, error) {
	switch compression {
	case CompressionNone:
		if len(data) != size {
			return nil, fmt.Errorf("cache: stored body is %d bytes, expected %d", len(data), size)
		}
		return data, nil
	case CompressionLZ4:
		body := make([]byte, size)
		read, err := lz4.UncompressBlock(data, body)
		if err != nil {
			return nil, fmt.Errorf("cache: lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("cache: lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return body, nil
	case CompressionZstd:
		body, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("cache: zstd decompress: %w", err)
		}
		if len(body) != size {
			return nil, fmt.Errorf("cache: zstd decompress: got %d bytes, expected %d", len(body), size)
		}
		return body, nil
	default:
		return nil, fmt.Errorf("cache: unsupported compression %s", compression)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: lz4 compress: %w", err)
	}
	// Zero means lz4 judged the input incompressible.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func compressZstd(data []byte) ([]byte, error) {
	encoded := zstdEncoder.EncodeAll(data, nil)
	if len(encoded) >= len(data) {
		return nil, errIncompressible
	}
	return encoded, nil
}
