package checkpoint

import (
	"fmt"
	"hash/crc32"
)

// Checksums use CRC32 (IEEE polynomial). CRC32 detects accidental
// corruption only; it is not a tamper check.

// Checksum returns the CRC32 of the concatenation of parts.
func Checksum(parts ...[]byte) uint32 {
	h := crc32.NewIEEE()
	for _, p := range parts {
		_, _ = h.Write(p)
	}

	return h.Sum32()
}

// ChecksumMismatchError is returned when checksum verification fails.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// Unwrap makes checksum mismatches match ErrCorrupt.
func (e *ChecksumMismatchError) Unwrap() error { return ErrCorrupt }
