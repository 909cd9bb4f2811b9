package checkpoint

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the block compression of a checkpoint payload.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD block compression (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

func (c Compression) valid() bool {
	return c <= CompressionZSTD
}

// ParseCompression parses "none", "lz4" or "zstd". The empty string means none.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", s)
	}
}

const (
	defaultBlockSize = 256 * 1024
	blockHeaderSize  = 8
)

// ZSTD encoder/decoder pools
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}

	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}

	dec, _ := zstd.NewReader(nil)

	return dec
}

// compressBlocks splits data into blocks of blockSize and compresses each.
// Block format: [UncompressedSize uint32][CompressedSize uint32][Data...].
// CompressedSize 0 marks a block stored uncompressed. With CompressionNone
// data is returned unchanged.
func compressBlocks(data []byte, c Compression, blockSize int) ([]byte, error) {
	if c == CompressionNone {
		return data, nil
	}

	out := make([]byte, 0, len(data)/2+blockHeaderSize)

	for start := 0; start < len(data); start += blockSize {
		block := data[start:min(start+blockSize, len(data))]

		compressed, err := compressBlock(block, c)
		if err != nil {
			return nil, err
		}

		// If compression doesn't help (ratio > 0.9), store uncompressed
		if len(compressed) == 0 || float64(len(compressed)) > float64(len(block))*0.9 {
			out = binary.LittleEndian.AppendUint32(out, uint32(len(block)))
			out = binary.LittleEndian.AppendUint32(out, 0)
			out = append(out, block...)

			continue
		}

		out = binary.LittleEndian.AppendUint32(out, uint32(len(block)))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(compressed)))
		out = append(out, compressed...)
	}

	return out, nil
}

func compressBlock(block []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(block)))

		n, err := lz4.CompressBlock(block, buf, nil)
		if err != nil {
			return nil, err
		}

		return buf[:n], nil // n == 0 means incompressible
	case CompressionZSTD:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)

		return enc.EncodeAll(block, nil), nil
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

// decompressBlocks reverses compressBlocks. size is the expected decoded size.
func decompressBlocks(stored []byte, c Compression, size uint64) ([]byte, error) {
	if c == CompressionNone {
		if uint64(len(stored)) != size {
			return nil, ErrTruncated
		}

		return stored, nil
	}

	out := make([]byte, 0, size)

	for off := 0; off < len(stored); {
		if len(stored)-off < blockHeaderSize {
			return nil, fmt.Errorf("%w: block too small for header", ErrTruncated)
		}

		rawSize := int(binary.LittleEndian.Uint32(stored[off:]))
		compSize := int(binary.LittleEndian.Uint32(stored[off+4:]))
		off += blockHeaderSize

		if uint64(len(out)+rawSize) > size {
			return nil, fmt.Errorf("%w: block exceeds payload size", ErrCorrupt)
		}

		if compSize == 0 {
			if len(stored)-off < rawSize {
				return nil, fmt.Errorf("%w: block extends beyond data", ErrTruncated)
			}

			out = append(out, stored[off:off+rawSize]...)
			off += rawSize

			continue
		}

		if len(stored)-off < compSize {
			return nil, fmt.Errorf("%w: compressed block extends beyond data", ErrTruncated)
		}

		block, err := decompressBlock(stored[off:off+compSize], c, rawSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}

		out = append(out, block...)
		off += compSize
	}

	if uint64(len(out)) != size {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrCorrupt, len(out), size)
	}

	return out, nil
}

func decompressBlock(src []byte, c Compression, rawSize int) ([]byte, error) {
	result := make([]byte, rawSize)

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(src, result)
		if err != nil {
			return nil, err
		}

		if n != rawSize {
			return nil, fmt.Errorf("decompressed size mismatch: %d != %d", n, rawSize)
		}

		return result, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		decoded, err := dec.DecodeAll(src, result[:0])
		if err != nil {
			return nil, err
		}

		if len(decoded) != rawSize {
			return nil, fmt.Errorf("decompressed size mismatch: %d != %d", len(decoded), rawSize)
		}

		return decoded, nil
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}
