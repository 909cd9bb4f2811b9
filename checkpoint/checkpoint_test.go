package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecgroup/blobstore"
	"github.com/hupe1980/vecgroup/graph"
	"github.com/hupe1980/vecgroup/internal/fs"
	"github.com/hupe1980/vecgroup/model"
	"github.com/hupe1980/vecgroup/resource"
)

var compressions = []Compression{CompressionNone, CompressionLZ4, CompressionZSTD}

func randomMatrix(rows, dim int, seed uint64) [][]float32 {
	rng := rand.New(rand.NewPCG(seed, 0))

	vecs := make([][]float32, rows)
	for i := range vecs {
		vecs[i] = make([]float32, dim)
		for j := range vecs[i] {
			vecs[i][j] = rng.Float32()*2 - 1
		}
	}

	return vecs
}

func sampleGraph() *graph.Graph {
	g := graph.New()
	for _, id := range []int64{42, 7, 13, 99, 1000} {
		g.AddNode(id)
	}

	g.AddEdge(42, 7, 0.75)
	g.AddEdge(13, 42, 1.0/3.0)
	g.AddEdge(7, 13, 0)
	g.AddEdge(99, 7, math.Nextafter(0.5, 1))
	// 1000 stays isolated

	return g
}

func assertSameGraph(t *testing.T, want, got *graph.Graph) {
	t.Helper()

	assert.Equal(t, want.Nodes(), got.Nodes())
	assert.Equal(t, want.Edges(), got.Edges())
}

func TestEmbeddingsRoundTrip(t *testing.T) {
	vecs := randomMatrix(50, 16, 1)

	for _, c := range compressions {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeEmbeddings(&buf, vecs, c))

			got, err := DecodeEmbeddings(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, vecs, got)
		})
	}
}

func TestEmbeddingsCompressible(t *testing.T) {
	vecs := make([][]float32, 2000)
	for i := range vecs {
		vecs[i] = []float32{1, 0, 0, 0, 0, 0, 0, 0}
	}

	var plain, packed bytes.Buffer
	require.NoError(t, EncodeEmbeddings(&plain, vecs, CompressionNone))
	require.NoError(t, EncodeEmbeddings(&packed, vecs, CompressionZSTD))
	assert.Less(t, packed.Len(), plain.Len())

	got, err := DecodeEmbeddings(packed.Bytes())
	require.NoError(t, err)
	assert.Equal(t, vecs, got)
}

func TestEmbeddingsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeEmbeddings(&buf, nil, CompressionLZ4))
	assert.Equal(t, HeaderSize, buf.Len())

	got, err := DecodeEmbeddings(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEmbeddingsRagged(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeEmbeddings(&buf, [][]float32{{1, 2}, {3}}, CompressionNone)
	require.ErrorIs(t, err, ErrRaggedMatrix)
	assert.Zero(t, buf.Len())
}

func TestGraphRoundTrip(t *testing.T) {
	g := sampleGraph()

	for _, c := range compressions {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeGraph(&buf, g, c))

			got, err := DecodeGraph(buf.Bytes())
			require.NoError(t, err)
			assertSameGraph(t, g, got)
		})
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeGraph(&buf, sampleGraph(), CompressionNone))
	good := buf.Bytes()

	mutate := func(fn func(b []byte) []byte) []byte {
		return fn(bytes.Clone(good))
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"short header", good[:10], ErrTruncated},
		{"truncated payload", good[:len(good)-5], ErrTruncated},
		{"trailing bytes", append(bytes.Clone(good), 0), ErrTruncated},
		{"magic", mutate(func(b []byte) []byte { b[0] ^= 0xff; return b }), ErrInvalidMagic},
		{"version", mutate(func(b []byte) []byte { b[4] = 9; return b }), ErrInvalidVersion},
		{"kind", mutate(func(b []byte) []byte { b[8] = byte(KindEmbeddings); return b }), ErrInvalidKind},
		{"payload bit flip", mutate(func(b []byte) []byte { b[HeaderSize+3] ^= 0x10; return b }), ErrCorrupt},
		{"count", mutate(func(b []byte) []byte { b[12]++; return b }), ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeGraph(tt.data)
			require.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeEmbeddings(&buf, randomMatrix(3, 4, 2), CompressionNone))

	data := buf.Bytes()
	data[len(data)-1] ^= 0x01

	_, err := DecodeEmbeddings(data)

	var mismatch *ChecksumMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.NotEqual(t, mismatch.Expected, mismatch.Actual)
}

func TestHeaderLayout(t *testing.T) {
	h := Header{
		Magic:       Magic,
		Version:     Version,
		Kind:        KindGraph,
		Compression: CompressionZSTD,
		Count:       3,
		Aux:         5,
		PayloadSize: 144,
		StoredSize:  80,
		Checksum:    0xdeadbeef,
	}

	b, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, HeaderSize)
	assert.Equal(t, "VGCK", string(b[:4]))

	var got Header
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, h, got)
}

func TestParseCompression(t *testing.T) {
	for _, c := range compressions {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, got)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}

func TestManager_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store, func(o *Options) { o.Compression = CompressionLZ4 })

	vecs := randomMatrix(10, 8, 3)
	require.NoError(t, m.SaveEmbeddings(ctx, vecs))

	got, ok, err := m.LoadEmbeddings(ctx, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vecs, got)

	g := sampleGraph()
	require.NoError(t, m.SaveGraph(ctx, g))

	gotG, ok, err := m.LoadGraph(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assertSameGraph(t, g, gotG)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{EmbeddingsName, GraphName}, names)
}

func TestManager_Missing(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	_, ok, err := m.LoadEmbeddings(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.LoadGraph(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_StaleEmbeddings(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	require.NoError(t, m.SaveEmbeddings(ctx, randomMatrix(5, 4, 4)))

	_, ok, err := m.LoadEmbeddings(ctx, 6)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_CorruptIsAbsent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store)

	require.NoError(t, blobstore.PutBytes(ctx, store, GraphName, []byte("definitely not a checkpoint")))
	require.NoError(t, blobstore.PutBytes(ctx, store, EmbeddingsName, nil))

	_, ok, err := m.LoadGraph(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.LoadEmbeddings(ctx, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	// A fresh save overwrites the corrupt blob
	require.NoError(t, m.SaveGraph(ctx, sampleGraph()))

	_, ok, err = m.LoadGraph(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManager_Invalidate(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store)

	require.NoError(t, m.SaveEmbeddings(ctx, randomMatrix(2, 2, 5)))
	require.NoError(t, m.SaveGraph(ctx, sampleGraph()))

	require.NoError(t, m.InvalidateGraph(ctx))

	_, ok, err := m.LoadGraph(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.LoadEmbeddings(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Invalidate(ctx))
	require.NoError(t, m.Invalidate(ctx))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestManager_LocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := NewManager(blobstore.NewLocalStore(dir), func(o *Options) {
		o.Compression = CompressionZSTD
		o.Resources = resource.NewController(resource.Config{IOLimitBytesPerSec: 64 << 20})
	})

	g := sampleGraph()
	require.NoError(t, m.SaveGraph(ctx, g))

	got, ok, err := m.LoadGraph(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assertSameGraph(t, g, got)

	// Truncate the file on disk
	path := filepath.Join(dir, GraphName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o600))

	_, ok, err = m.LoadGraph(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_ThrottledRemoteRead(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore(), func(o *Options) {
		o.Compression = CompressionLZ4
		o.Resources = resource.NewController(resource.Config{IOLimitBytesPerSec: 64 << 20})
	})

	vecs := randomMatrix(64, 8, 3)
	require.NoError(t, m.SaveEmbeddings(ctx, vecs))

	got, ok, err := m.LoadEmbeddings(ctx, len(vecs))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vecs, got)
}

func TestManager_WriteFailureIsIOError(t *testing.T) {
	ctx := context.Background()
	ffs := fs.NewFaultyFS(nil)
	store := blobstore.NewLocalStore(t.TempDir(), func(o *blobstore.LocalOptions) { o.FileSystem = ffs })
	m := NewManager(store)

	g := sampleGraph()
	require.NoError(t, m.SaveGraph(ctx, g))

	ffs.AddRule(GraphName, fs.Fault{FailOnRename: true})

	g2 := graph.New()
	g2.AddNode(1)

	err := m.SaveGraph(ctx, g2)

	var ioErr *model.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "write", ioErr.Op)
	assert.Equal(t, GraphName, ioErr.Name)
	assert.ErrorIs(t, err, fs.ErrInjected)

	ffs.ClearRules()

	// The previous checkpoint survives
	got, ok, err := m.LoadGraph(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assertSameGraph(t, g, got)
}

func TestManager_SaveRagged(t *testing.T) {
	m := NewManager(blobstore.NewMemoryStore())

	err := m.SaveEmbeddings(context.Background(), [][]float32{{1}, {1, 2}})
	assert.ErrorIs(t, err, ErrRaggedMatrix)
}
