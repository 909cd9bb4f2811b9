package checkpoint

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/hupe1980/vecgroup/blobstore"
	"github.com/hupe1980/vecgroup/graph"
	"github.com/hupe1980/vecgroup/model"
	"github.com/hupe1980/vecgroup/resource"
)

const (
	// EmbeddingsName is the default blob name of the embeddings checkpoint.
	EmbeddingsName = "embeddings.vgck"
	// GraphName is the default blob name of the graph checkpoint.
	GraphName = "graph.vgck"

	writeBufferSize = 1 << 20
)

// Options configures a Manager.
type Options struct {
	// Compression applied to new checkpoints. Loading detects the
	// compression from the header.
	Compression Compression

	// EmbeddingsName and GraphName override the blob names.
	EmbeddingsName string
	GraphName      string

	// Resources throttles checkpoint writes. Nil disables throttling.
	Resources *resource.Controller

	// Logger receives warnings about stale or corrupt checkpoints.
	Logger *slog.Logger
}

// DefaultOptions contains the default manager configuration.
var DefaultOptions = Options{
	Compression:    CompressionNone,
	EmbeddingsName: EmbeddingsName,
	GraphName:      GraphName,
}

// Manager loads and saves checkpoints in a blob store.
//
// Load methods report ok=false for missing, stale or corrupt checkpoints;
// the error is non-nil only for storage failures.
type Manager struct {
	store  blobstore.Store
	opts   Options
	logger *slog.Logger
}

// NewManager creates a Manager on top of store.
func NewManager(store blobstore.Store, optFns ...func(o *Options)) *Manager {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.EmbeddingsName == "" {
		opts.EmbeddingsName = EmbeddingsName
	}

	if opts.GraphName == "" {
		opts.GraphName = GraphName
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Manager{store: store, opts: opts, logger: logger}
}

// LoadEmbeddings returns the checkpointed embedding matrix if it exists,
// decodes and has exactly rows rows.
func (m *Manager) LoadEmbeddings(ctx context.Context, rows int) ([][]float32, bool, error) {
	name := m.opts.EmbeddingsName

	var vecs [][]float32

	ok, err := m.read(ctx, name, func(data []byte) error {
		var derr error
		vecs, derr = DecodeEmbeddings(data)
		return derr
	})
	if err != nil || !ok {
		return nil, false, err
	}

	if len(vecs) != rows {
		m.logger.Warn("ignoring stale checkpoint", "name", name, "rows", len(vecs), "expected", rows)
		return nil, false, nil
	}

	return vecs, true, nil
}

// SaveEmbeddings atomically replaces the embeddings checkpoint.
func (m *Manager) SaveEmbeddings(ctx context.Context, vecs [][]float32) error {
	if _, err := matrixDimension(vecs); err != nil {
		return err
	}

	return m.write(ctx, m.opts.EmbeddingsName, func(w io.Writer) error {
		return EncodeEmbeddings(w, vecs, m.opts.Compression)
	})
}

// LoadGraph returns the checkpointed graph if it exists and decodes.
// Callers decide whether its node set still matches their input.
func (m *Manager) LoadGraph(ctx context.Context) (*graph.Graph, bool, error) {
	var g *graph.Graph

	ok, err := m.read(ctx, m.opts.GraphName, func(data []byte) error {
		var derr error
		g, derr = DecodeGraph(data)
		return derr
	})
	if err != nil || !ok {
		return nil, false, err
	}

	return g, true, nil
}

// SaveGraph atomically replaces the graph checkpoint.
func (m *Manager) SaveGraph(ctx context.Context, g *graph.Graph) error {
	return m.write(ctx, m.opts.GraphName, func(w io.Writer) error {
		return EncodeGraph(w, g, m.opts.Compression)
	})
}

// InvalidateGraph deletes the graph checkpoint.
func (m *Manager) InvalidateGraph(ctx context.Context) error {
	return m.delete(ctx, m.opts.GraphName)
}

// Invalidate deletes both checkpoints.
func (m *Manager) Invalidate(ctx context.Context) error {
	if err := m.delete(ctx, m.opts.EmbeddingsName); err != nil {
		return err
	}

	return m.delete(ctx, m.opts.GraphName)
}

// read opens name and passes its content to decode while the blob is open.
// Decode failures are logged and reported as a missing checkpoint.
func (m *Manager) read(ctx context.Context, name string, decode func(data []byte) error) (bool, error) {
	b, err := m.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return false, nil
		}

		return false, &model.IOError{Op: "open", Name: name, Err: err}
	}
	defer b.Close()

	data, err := m.readAll(ctx, b)
	if err != nil {
		return false, &model.IOError{Op: "read", Name: name, Err: err}
	}

	if err := decode(data); err != nil {
		m.logger.Warn("ignoring unreadable checkpoint", "name", name, "error", err)
		return false, nil
	}

	return true, nil
}

// readAll reads remote blobs through the I/O limit. Mapped blobs are
// used in place.
func (m *Manager) readAll(ctx context.Context, b blobstore.Blob) ([]byte, error) {
	if _, ok := b.(blobstore.Mappable); ok || m.opts.Resources == nil || b.Size() == 0 {
		return blobstore.ReadAll(ctx, b)
	}

	r, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(m.opts.Resources.Reader(ctx, r))
}

func (m *Manager) write(ctx context.Context, name string, encode func(w io.Writer) error) error {
	err := m.store.Put(ctx, name, func(w io.Writer) error {
		bw := bufio.NewWriterSize(m.opts.Resources.Writer(ctx, w), writeBufferSize)
		if err := encode(bw); err != nil {
			return err
		}

		return bw.Flush()
	})
	if err != nil {
		return &model.IOError{Op: "write", Name: name, Err: err}
	}

	m.logger.Debug("checkpoint written", "name", name, "compression", m.opts.Compression.String())

	return nil
}

func (m *Manager) delete(ctx context.Context, name string) error {
	if err := m.store.Delete(ctx, name); err != nil {
		return &model.IOError{Op: "delete", Name: name, Err: err}
	}

	return nil
}
