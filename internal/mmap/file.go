package mmap

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned by reads on a closed File.
	ErrClosed = errors.New("mmap: file is closed")
	// ErrNegativeOffset is returned by ReadAt for offsets below zero.
	ErrNegativeOffset = errors.New("mmap: negative offset")
)

// File is a read-only mapping of a whole file.
type File struct {
	data    []byte
	release func() error
	closed  atomic.Bool
}

// Map maps the file at path read-only. Empty files yield an empty File
// without a mapping.
func Map(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &File{}, nil
	}

	if size > math.MaxInt {
		return nil, fmt.Errorf("mmap: %s: size %d exceeds address space", path, size)
	}

	data, release, err := mapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("mmap: %s: %w", path, err)
	}

	return &File{data: data, release: release}, nil
}

// Bytes returns the mapped contents, or nil once the File is closed.
// The slice must not be used after Close.
func (m *File) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}

	return m.data
}

// Len returns the mapped length in bytes.
func (m *File) Len() int { return len(m.data) }

// ReadAt implements io.ReaderAt.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}

	if off < 0 {
		return 0, ErrNegativeOffset
	}

	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}

	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// Sequential hints that the contents will be read front to back soon.
// It is a no-op where the platform has no such hint.
func (m *File) Sequential() {
	if m.closed.Load() || len(m.data) == 0 {
		return
	}

	adviseSequential(m.data)
}

// Close releases the mapping. Subsequent calls return nil.
func (m *File) Close() error {
	if m.closed.Swap(true) || m.release == nil {
		return nil
	}

	return m.release()
}
