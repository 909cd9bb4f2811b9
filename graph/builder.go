package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecgroup/distance"
	"github.com/hupe1980/vecgroup/index"
	"github.com/hupe1980/vecgroup/index/hnsw"
	"github.com/hupe1980/vecgroup/model"
	"github.com/hupe1980/vecgroup/resource"
)

// ErrInvalidTopK is returned when the neighbor count is not positive.
var ErrInvalidTopK = errors.New("graph: top-k must be positive")

// Options configures a Builder.
type Options struct {
	// TopK is the number of neighbors queried per item. The item itself
	// usually occupies one of the slots.
	TopK int

	// LexicalBoost weights the variable-name Jaccard similarity.
	LexicalBoost float64

	// StructuralBoost weights value-format equality.
	StructuralBoost float64

	// IndexFactory creates the neighbor index. Defaults to HNSW.
	IndexFactory index.Factory

	// Resources bounds the worker pool and accounts for the normalized
	// vector copies. Nil means GOMAXPROCS workers and no memory limit.
	Resources *resource.Controller

	// Logger receives progress messages. Nil disables logging.
	Logger *slog.Logger
}

// DefaultOptions contains the default builder configuration.
var DefaultOptions = Options{
	TopK:            20,
	LexicalBoost:    DefaultLexicalBoost,
	StructuralBoost: DefaultStructuralBoost,
}

// Builder turns items with embeddings into a similarity graph.
type Builder struct {
	opts   Options
	scorer Scorer
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(optFns ...func(o *Options)) (*Builder, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.TopK <= 0 {
		return nil, ErrInvalidTopK
	}

	if opts.IndexFactory == nil {
		opts.IndexFactory = hnsw.Factory()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Builder{
		opts:   opts,
		scorer: Scorer{LexicalBoost: opts.LexicalBoost, StructuralBoost: opts.StructuralBoost},
		logger: logger,
	}, nil
}

// discovered is an edge found by a worker, addressed by input position.
type discovered struct {
	i, j   int
	weight float64
}

// Build validates and normalizes the embeddings, indexes them and links every
// item to its nearest neighbors. Every item becomes a node, including items
// without any edge. Items are never modified.
func (b *Builder) Build(ctx context.Context, items []model.Item) (*Graph, error) {
	g := New()
	if len(items) == 0 {
		return g, nil
	}

	dim, err := Validate(items)
	if err != nil {
		return nil, err
	}

	memBytes := int64(len(items)) * int64(dim) * 4
	if err := b.opts.Resources.AcquireMemory(ctx, memBytes); err != nil {
		return nil, err
	}
	defer b.opts.Resources.ReleaseMemory(memBytes)

	start := time.Now()

	vectors, err := b.normalize(ctx, items)
	if err != nil {
		return nil, err
	}

	idx, err := b.opts.IndexFactory(dim)
	if err != nil {
		return nil, fmt.Errorf("graph: create index: %w", err)
	}

	for i, v := range vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if _, err := idx.Add(v); err != nil {
			return nil, fmt.Errorf("graph: index item %d: %w", items[i].ID, err)
		}
	}

	if s, ok := idx.(interface{ Stats() hnsw.Stats }); ok {
		st := s.Stats()
		b.logger.Debug("neighbor index built", "nodes", st.Nodes, "max_level", st.MaxLevel, "duration", time.Since(start))
	}

	parts, err := b.query(ctx, idx, newFeatures(items, vectors))
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		g.AddNode(it.ID)
	}

	// Merge worker-local edge lists sequentially in position order.
	for _, part := range parts {
		for _, d := range part {
			g.AddEdge(items[d.i].ID, items[d.j].ID, d.weight)
		}
	}

	b.logger.Info("similarity graph built",
		"nodes", g.NumNodes(),
		"edges", g.NumEdges(),
		"top_k", b.opts.TopK,
		"duration", time.Since(start),
	)

	return g, nil
}

// Validate checks that every item carries a finite, non-zero embedding of a
// common dimension and returns that dimension. The first offending item is
// reported as a *model.DataError.
func Validate(items []model.Item) (int, error) {
	dim := 0

	for _, it := range items {
		switch {
		case len(it.Embedding) == 0:
			return 0, &model.DataError{ItemID: it.ID, Reason: "missing embedding"}
		case dim != 0 && len(it.Embedding) != dim:
			return 0, &model.DataError{ItemID: it.ID, Reason: fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", dim, len(it.Embedding))}
		case !distance.IsFinite(it.Embedding):
			return 0, &model.DataError{ItemID: it.ID, Reason: "embedding contains non-finite values"}
		case distance.Dot(it.Embedding, it.Embedding) == 0:
			return 0, &model.DataError{ItemID: it.ID, Reason: "embedding has zero norm"}
		}

		dim = len(it.Embedding)
	}

	return dim, nil
}

// chunks splits [0, n) into contiguous ranges, a few per worker.
func (b *Builder) chunks(n int) [][2]int {
	size := max(1, n/(b.opts.Resources.Workers()*4))

	var out [][2]int
	for lo := 0; lo < n; lo += size {
		out = append(out, [2]int{lo, min(lo+size, n)})
	}

	return out
}

func (b *Builder) normalize(ctx context.Context, items []model.Item) ([][]float32, error) {
	vectors := make([][]float32, len(items))

	eg, ctx := errgroup.WithContext(ctx)

	for _, c := range b.chunks(len(items)) {
		eg.Go(func() error {
			if err := b.opts.Resources.AcquireWorker(ctx); err != nil {
				return err
			}
			defer b.opts.Resources.ReleaseWorker()

			for i := c[0]; i < c[1]; i++ {
				v, ok := distance.NormalizeL2Copy(items[i].Embedding)
				if !ok {
					return &model.DataError{ItemID: items[i].ID, Reason: "embedding has zero norm"}
				}

				vectors[i] = v
			}

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}

func (b *Builder) query(ctx context.Context, idx index.NeighborIndex, f *features) ([][]discovered, error) {
	ranges := b.chunks(len(f.vectors))
	parts := make([][]discovered, len(ranges))

	eg, ctx := errgroup.WithContext(ctx)

	for p, c := range ranges {
		eg.Go(func() error {
			if err := b.opts.Resources.AcquireWorker(ctx); err != nil {
				return err
			}
			defer b.opts.Resources.ReleaseWorker()

			local := make([]discovered, 0, (c[1]-c[0])*b.opts.TopK)

			for i := c[0]; i < c[1]; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}

				neighbors, err := idx.Search(f.vectors[i], b.opts.TopK)
				if err != nil {
					return fmt.Errorf("graph: query position %d: %w", i, err)
				}

				for _, n := range neighbors {
					if n.ID == index.NoMatch || n.ID == i {
						continue
					}

					local = append(local, discovered{i: i, j: n.ID, weight: f.pairWeight(b.scorer, i, n.ID)})
				}
			}

			parts[p] = local

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return parts, nil
}
