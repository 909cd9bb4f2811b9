package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "graph.vgck")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	return path
}

func TestMap(t *testing.T) {
	content := []byte("VGCK checkpoint payload")

	f, err := Map(writeTemp(t, content))
	require.NoError(t, err)
	defer f.Close()

	f.Sequential()

	assert.Equal(t, len(content), f.Len())
	assert.Equal(t, content, f.Bytes())

	tests := []struct {
		name string
		off  int64
		size int
		want string
		err  error
	}{
		{"inside", 5, 10, "checkpoint", nil},
		{"tail", 16, 10, "payload", io.EOF},
		{"past end", 100, 4, "", io.EOF},
		{"negative", -1, 4, "", ErrNegativeOffset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.size)
			n, err := f.ReadAt(buf, tt.off)
			assert.Equal(t, tt.err, err)
			assert.Equal(t, tt.want, string(buf[:n]))
		})
	}
}

func TestMap_Empty(t *testing.T) {
	f, err := Map(writeTemp(t, nil))
	require.NoError(t, err)

	f.Sequential()

	assert.Zero(t, f.Len())
	assert.Empty(t, f.Bytes())
	assert.NoError(t, f.Close())
}

func TestMap_Close(t *testing.T) {
	f, err := Map(writeTemp(t, make([]byte, 4096)))
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	assert.Nil(t, f.Bytes())

	_, err = f.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMap_Missing(t *testing.T) {
	_, err := Map(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
