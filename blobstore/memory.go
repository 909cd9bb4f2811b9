package blobstore

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps blobs in process memory. It backs tests and dry runs
// whose outputs are not needed afterwards. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Open returns a snapshot of the named blob. Later writes do not affect it.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	return sliceBlob(data), nil
}

// Put runs write against a buffer and publishes the buffer only if write
// and ctx both succeed, so a failed write leaves the previous blob.
func (m *MemoryStore) Put(ctx context.Context, name string, write WriteFunc) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.blobs[name] = buf.Bytes()
	m.mu.Unlock()

	return nil
}

// Delete removes the named blob. Missing blobs are ignored.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()

	return nil
}

// List returns the sorted names starting with prefix.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	return names, nil
}

// sliceBlob serves an immutable byte slice. Stored slices are replaced on
// Put and never written to, so readers share them without copying.
type sliceBlob []byte

func (b sliceBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return bytes.NewReader(b).ReadAt(p, off)
}

func (b sliceBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= int64(len(b)) {
		return nil, io.EOF
	}

	end := min(off+length, int64(len(b)))

	return io.NopCloser(bytes.NewReader(b[off:end])), nil
}

func (b sliceBlob) Size() int64 { return int64(len(b)) }

func (sliceBlob) Close() error { return nil }
