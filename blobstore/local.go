package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hupe1980/vecgroup/internal/fs"
	"github.com/hupe1980/vecgroup/internal/mmap"
)

// Compile time check to ensure LocalStore satisfies the Store interface.
var _ Store = (*LocalStore)(nil)

const tempInfix = ".tmp-"

// LocalOptions configures a LocalStore.
type LocalOptions struct {
	// FileSystem used for writes. Defaults to fs.Default.
	FileSystem fs.FileSystem
}

// LocalStore implements Store using the local file system.
type LocalStore struct {
	root string
	fs   fs.FileSystem
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
// The directory is created on the first write.
func NewLocalStore(root string, optFns ...func(o *LocalOptions)) *LocalStore {
	opts := LocalOptions{FileSystem: fs.Default}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &LocalStore{root: root, fs: opts.FileSystem}
}

// Root returns the store's root directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Map(s.path(name))
	if err != nil {
		return nil, err
	}

	// Checkpoints are decoded front to back.
	m.Sequential()

	return &localBlob{m: m}, nil
}

// Put writes a blob atomically: temp file, fsync, rename, directory fsync.
func (s *LocalStore) Put(ctx context.Context, name string, write WriteFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	final := s.path(name)
	dir := filepath.Dir(final)

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, tmpPath, err := s.fs.CreateTemp(dir, filepath.Base(final)+tempInfix+"*")
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmpPath)
		}
	}()

	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.fs.Rename(tmpPath, final); err != nil {
		return err
	}

	return s.syncDir(dir)
}

func (s *LocalStore) syncDir(dir string) error {
	d, err := s.fs.OpenFile(dir, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}

	return nil
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := s.fs.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// List returns the sorted names of the blobs in the root directory that
// start with prefix. Temporary files are skipped.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.Contains(name, tempInfix) || !strings.HasPrefix(name, prefix) {
			continue
		}

		names = append(names, name)
	}

	slices.Sort(names)

	return names, nil
}

type localBlob struct {
	m *mmap.File
}

func (b *localBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	return b.m.ReadAt(p, off)
}

func (b *localBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	data := b.m.Bytes()
	if off < 0 || off >= int64(len(data)) {
		return nil, io.EOF
	}

	end := min(off+length, int64(len(data)))

	return io.NopCloser(bytes.NewReader(data[off:end])), nil
}

func (b *localBlob) Close() error {
	return b.m.Close()
}

func (b *localBlob) Size() int64 {
	return int64(b.m.Len())
}

func (b *localBlob) Bytes() ([]byte, error) {
	return b.m.Bytes(), nil
}
