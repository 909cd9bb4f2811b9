package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic identifies vecgroup checkpoint files (ASCII: "VGCK").
	Magic = 0x4B434756
	// Version is the current checkpoint format version.
	Version = 1
	// HeaderSize is the size of the fixed header in bytes.
	HeaderSize = 64

	checksumOffset = 44
)

// Kind identifies the payload of a checkpoint.
type Kind uint8

const (
	// KindEmbeddings is a row-major float32 matrix.
	KindEmbeddings Kind = 1
	// KindGraph is a node list followed by canonical edges.
	KindGraph Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindEmbeddings:
		return "embeddings"
	case KindGraph:
		return "graph"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	// ErrCorrupt is wrapped by every decode failure.
	ErrCorrupt = errors.New("checkpoint corrupt")

	ErrInvalidMagic   = fmt.Errorf("%w: invalid magic number", ErrCorrupt)
	ErrInvalidVersion = fmt.Errorf("%w: unsupported version", ErrCorrupt)
	ErrInvalidKind    = fmt.Errorf("%w: unexpected kind", ErrCorrupt)
	ErrTruncated      = fmt.Errorf("%w: truncated", ErrCorrupt)

	// ErrRaggedMatrix is returned when embedding rows differ in length.
	ErrRaggedMatrix = errors.New("embedding rows differ in dimension")
)

// Header is the 64-byte header at the start of every checkpoint.
//
//	off  size  field
//	  0     4  Magic
//	  4     4  Version
//	  8     1  Kind
//	  9     1  Compression
//	 10     2  padding
//	 12     8  Count (rows or nodes)
//	 20     8  Aux (dimension or edges)
//	 28     8  PayloadSize (decoded payload bytes)
//	 36     8  StoredSize (bytes after the header)
//	 44     4  Checksum (CRC32 of header[0:44] and the stored bytes)
//	 48    16  reserved
type Header struct {
	Magic       uint32
	Version     uint32
	Kind        Kind
	Compression Compression
	Count       uint64
	Aux         uint64
	PayloadSize uint64
	StoredSize  uint64
	Checksum    uint32
}

// MarshalBinary encodes the header in little-endian order.
func (h *Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)

	binary.LittleEndian.PutUint32(b[0:], h.Magic)
	binary.LittleEndian.PutUint32(b[4:], h.Version)
	b[8] = byte(h.Kind)
	b[9] = byte(h.Compression)
	binary.LittleEndian.PutUint64(b[12:], h.Count)
	binary.LittleEndian.PutUint64(b[20:], h.Aux)
	binary.LittleEndian.PutUint64(b[28:], h.PayloadSize)
	binary.LittleEndian.PutUint64(b[36:], h.StoredSize)
	binary.LittleEndian.PutUint32(b[checksumOffset:], h.Checksum)

	return b, nil
}

// UnmarshalBinary decodes a header. It only checks the length; use validate
// for the semantic checks.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return ErrTruncated
	}

	h.Magic = binary.LittleEndian.Uint32(b[0:])
	h.Version = binary.LittleEndian.Uint32(b[4:])
	h.Kind = Kind(b[8])
	h.Compression = Compression(b[9])
	h.Count = binary.LittleEndian.Uint64(b[12:])
	h.Aux = binary.LittleEndian.Uint64(b[20:])
	h.PayloadSize = binary.LittleEndian.Uint64(b[28:])
	h.StoredSize = binary.LittleEndian.Uint64(b[36:])
	h.Checksum = binary.LittleEndian.Uint32(b[checksumOffset:])

	return nil
}

func (h *Header) validate(kind Kind) error {
	if h.Magic != Magic {
		return ErrInvalidMagic
	}

	if h.Version != Version {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, h.Version)
	}

	if h.Kind != kind {
		return fmt.Errorf("%w: got %s, want %s", ErrInvalidKind, h.Kind, kind)
	}

	if !h.Compression.valid() {
		return fmt.Errorf("%w: unknown compression %d", ErrCorrupt, h.Compression)
	}

	return nil
}

// encodeFrame compresses payload and returns the complete checkpoint bytes.
func encodeFrame(kind Kind, count, aux uint64, payload []byte, c Compression) ([]byte, error) {
	stored, err := compressBlocks(payload, c, defaultBlockSize)
	if err != nil {
		return nil, err
	}

	h := Header{
		Magic:       Magic,
		Version:     Version,
		Kind:        kind,
		Compression: c,
		Count:       count,
		Aux:         aux,
		PayloadSize: uint64(len(payload)),
		StoredSize:  uint64(len(stored)),
	}

	hb, _ := h.MarshalBinary()
	binary.LittleEndian.PutUint32(hb[checksumOffset:], Checksum(hb[:checksumOffset], stored))

	return append(hb, stored...), nil
}

// decodeFrame verifies data and returns its header and decoded payload.
// expected reports the payload size implied by the header counts.
func decodeFrame(data []byte, kind Kind, expected func(h *Header) (uint64, bool)) (*Header, []byte, error) {
	var h Header
	if err := h.UnmarshalBinary(data); err != nil {
		return nil, nil, err
	}

	if err := h.validate(kind); err != nil {
		return nil, nil, err
	}

	stored := data[HeaderSize:]
	if uint64(len(stored)) != h.StoredSize {
		return nil, nil, fmt.Errorf("%w: stored %d bytes, header says %d", ErrTruncated, len(stored), h.StoredSize)
	}

	if sum := Checksum(data[:checksumOffset], stored); sum != h.Checksum {
		return nil, nil, &ChecksumMismatchError{Expected: h.Checksum, Actual: sum}
	}

	want, ok := expected(&h)
	if !ok || want != h.PayloadSize {
		return nil, nil, fmt.Errorf("%w: payload size %d does not match counts", ErrCorrupt, h.PayloadSize)
	}

	payload, err := decompressBlocks(stored, h.Compression, h.PayloadSize)
	if err != nil {
		return nil, nil, err
	}

	return &h, payload, nil
}
