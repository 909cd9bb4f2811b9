package vecgroup

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/vecgroup/blobstore"
	"github.com/hupe1980/vecgroup/checkpoint"
	"github.com/hupe1980/vecgroup/codec"
	"github.com/hupe1980/vecgroup/community"
	"github.com/hupe1980/vecgroup/graph"
	"github.com/hupe1980/vecgroup/loader"
	"github.com/hupe1980/vecgroup/model"
	"github.com/hupe1980/vecgroup/output"
	"github.com/hupe1980/vecgroup/partition"
)

// EmbeddingSource tells where the embeddings of a run came from.
type EmbeddingSource string

const (
	// EmbeddingsNone means no embeddings were needed (graph checkpoint hit
	// or empty input).
	EmbeddingsNone EmbeddingSource = ""
	// EmbeddingsFromItems means every candidate carried its embedding.
	EmbeddingsFromItems EmbeddingSource = "items"
	// EmbeddingsFromCheckpoint means the embeddings checkpoint was used.
	EmbeddingsFromCheckpoint EmbeddingSource = "checkpoint"
	// EmbeddingsFromEmbedder means the Embedder computed them.
	EmbeddingsFromEmbedder EmbeddingSource = "embedder"
)

// Result describes a completed run.
type Result struct {
	// Communities are the serialized community definitions.
	Communities []model.Community

	// Summary holds the statistics written to the stats report.
	Summary output.Summary

	// Items is the number of loaded candidates.
	Items int

	// Nodes and Edges describe the similarity graph.
	Nodes int
	Edges int

	// Modularity of the community partition.
	Modularity float64

	// GraphFromCheckpoint reports whether the graph was restored.
	GraphFromCheckpoint bool

	// EmbeddingSource tells where the embeddings came from.
	EmbeddingSource EmbeddingSource
}

// Validate checks the grouping parameters.
func (p Params) Validate() error {
	if p.TopKNeighbors < 1 {
		return fmt.Errorf("%w: top_k_neighbors must be >= 1, got %d", ErrInvalidParams, p.TopKNeighbors)
	}

	if p.LexicalBoostFactor < 0 || p.StructuralBoostFactor < 0 {
		return fmt.Errorf("%w: boost factors must be non-negative", ErrInvalidParams)
	}

	if p.Resolution <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %v", ErrInvalidParams, p.Resolution)
	}

	if err := p.partitionOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	return nil
}

func (p Params) partitionOptions() partition.Options {
	return partition.Options{
		MaxSubGroupSize:      p.MaxSubGroupSize,
		MinOrphanGroupSize:   p.MinOrphanGroupSize,
		MinHubSpokeGroupSize: p.MinHubSpokeGroupSize,
	}
}

// Pipeline groups the candidates of one loader into bounded-size
// sub-groups and writes the results to a blob store.
//
// Intermediate results (embeddings and graph) are checkpointed in the same
// store so a rerun over the same candidates skips the expensive stages.
type Pipeline struct {
	loader      loader.Loader
	opts        options
	ckpt        *checkpoint.Manager
	builder     *graph.Builder
	detector    *community.Detector
	partitioner *partition.Partitioner
	writer      *output.Writer
	logger      *Logger
	metrics     MetricsCollector
}

// New creates a Pipeline reading from l and writing checkpoints and
// outputs to store.
func New(l loader.Loader, store blobstore.Store, optFns ...Option) (*Pipeline, error) {
	if l == nil {
		return nil, ErrNoLoader
	}

	if store == nil {
		return nil, ErrNoStore
	}

	opts := options{
		params:           DefaultParams,
		checkpoints:      true,
		compression:      checkpoint.CompressionNone,
		codec:            codec.Default,
		reports:          true,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.logger == nil {
		opts.logger = NoopLogger()
	}

	if opts.metricsCollector == nil {
		opts.metricsCollector = NoopMetricsCollector{}
	}

	params := opts.params
	if err := params.Validate(); err != nil {
		return nil, err
	}

	slogger := opts.logger.Logger

	builder, err := graph.NewBuilder(func(o *graph.Options) {
		o.TopK = params.TopKNeighbors
		o.LexicalBoost = params.LexicalBoostFactor
		o.StructuralBoost = params.StructuralBoostFactor
		o.IndexFactory = opts.indexFactory
		o.Resources = opts.resources
		o.Logger = slogger
	})
	if err != nil {
		return nil, err
	}

	partitioner, err := partition.New(func(o *partition.Options) {
		*o = params.partitionOptions()
		o.Logger = slogger
	})
	if err != nil {
		return nil, err
	}

	detector := community.NewDetector(func(o *community.Options) {
		o.Resolution = params.Resolution
		o.Seed = params.CommunityDetectionSeed
		o.Logger = slogger
	})

	ckpt := checkpoint.NewManager(store, func(o *checkpoint.Options) {
		o.Compression = opts.compression
		o.Resources = opts.resources
		o.Logger = slogger
	})

	writer := output.NewWriter(store, func(o *output.Options) {
		o.Codec = opts.codec
		o.Seed = uint64(params.CommunityDetectionSeed)
		o.Reports = opts.reports
		o.Resources = opts.resources
		o.Logger = slogger
	})

	return &Pipeline{
		loader:      l,
		opts:        opts,
		ckpt:        ckpt,
		builder:     builder,
		detector:    detector,
		partitioner: partitioner,
		writer:      writer,
		logger:      opts.logger,
		metrics:     opts.metricsCollector,
	}, nil
}

// Invalidate deletes both checkpoints so the next run starts from scratch.
func (p *Pipeline) Invalidate(ctx context.Context) error {
	return p.ckpt.Invalidate(ctx)
}

// Run executes the pipeline: load, embeddings, graph, communities,
// sub-groups, outputs. Empty input is not an error and yields empty outputs.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	var items []model.Item

	if err := p.stage(ctx, StageLoad, func() (err error) {
		if items, err = p.loader.Load(ctx); err != nil {
			return err
		}

		return loader.CheckUnique(items)
	}); err != nil {
		return nil, err
	}

	res := &Result{Items: len(items)}

	var communities []model.Community

	if len(items) == 0 {
		p.logger.InfoContext(ctx, "no candidates loaded, writing empty output")
	} else {
		g, err := p.graph(ctx, items, res)
		if err != nil {
			return nil, err
		}

		res.Nodes, res.Edges = g.NumNodes(), g.NumEdges()

		communities, err = p.group(ctx, g, res)
		if err != nil {
			return nil, err
		}
	}

	if err := p.stage(ctx, StageOutput, func() (err error) {
		res.Summary, err = p.writer.Write(ctx, communities, items)
		return err
	}); err != nil {
		return nil, err
	}

	res.Communities = communities

	if res.Communities == nil {
		res.Communities = []model.Community{}
	}

	return res, nil
}

// graph restores the graph from its checkpoint or builds it.
func (p *Pipeline) graph(ctx context.Context, items []model.Item, res *Result) (*graph.Graph, error) {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}

	if p.opts.checkpoints {
		g, ok, err := p.ckpt.LoadGraph(ctx)
		if err != nil {
			return nil, err
		}

		if ok && !g.SameNodes(ids) {
			p.logger.WarnContext(ctx, "graph checkpoint does not match candidates, discarding",
				"checkpoint_nodes", g.NumNodes(),
				"candidates", len(ids),
			)

			if err := p.ckpt.InvalidateGraph(ctx); err != nil {
				return nil, err
			}

			ok = false
		}

		p.metrics.RecordCheckpoint(CheckpointGraph, ok)
		p.logger.LogCheckpoint(ctx, CheckpointGraph, ok)

		if ok {
			res.GraphFromCheckpoint = true

			// Downstream stages follow node order; align it with the input.
			if !slices.Equal(g.Nodes(), ids) {
				g = g.Subgraph(ids)
			}

			return g, nil
		}
	}

	embedded, source, err := p.embeddings(ctx, items)
	if err != nil {
		return nil, err
	}

	res.EmbeddingSource = source

	var g *graph.Graph

	if err := p.stage(ctx, StageGraph, func() (err error) {
		g, err = p.builder.Build(ctx, embedded)
		return err
	}); err != nil {
		return nil, err
	}

	if p.opts.checkpoints {
		if err := p.ckpt.SaveGraph(ctx, g); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// embeddings returns items with embeddings attached, taken from the items
// themselves, the embeddings checkpoint or the Embedder, in that order.
func (p *Pipeline) embeddings(ctx context.Context, items []model.Item) ([]model.Item, EmbeddingSource, error) {
	missing := slices.IndexFunc(items, func(it model.Item) bool { return len(it.Embedding) == 0 })
	if missing < 0 {
		return items, EmbeddingsFromItems, nil
	}

	if p.opts.checkpoints {
		vecs, ok, err := p.ckpt.LoadEmbeddings(ctx, len(items))
		if err != nil {
			return nil, EmbeddingsNone, err
		}

		p.metrics.RecordCheckpoint(CheckpointEmbed, ok)
		p.logger.LogCheckpoint(ctx, CheckpointEmbed, ok)

		if ok {
			return withEmbeddings(items, vecs), EmbeddingsFromCheckpoint, nil
		}
	}

	if p.opts.embedder == nil {
		return nil, EmbeddingsNone, &model.DataError{ItemID: items[missing].ID, Reason: "missing embedding"}
	}

	var vecs [][]float32

	if err := p.stage(ctx, StageEmbed, func() (err error) {
		vecs, err = p.opts.embedder.Embed(ctx, items)
		if err == nil && len(vecs) != len(items) {
			err = &ErrEmbeddingCount{Expected: len(items), Actual: len(vecs)}
		}
		return err
	}); err != nil {
		return nil, EmbeddingsNone, err
	}

	embedded := withEmbeddings(items, vecs)

	// Reject bad vectors before they are persisted.
	if _, err := graph.Validate(embedded); err != nil {
		return nil, EmbeddingsNone, err
	}

	if p.opts.checkpoints {
		if err := p.ckpt.SaveEmbeddings(ctx, vecs); err != nil {
			return nil, EmbeddingsNone, err
		}
	}

	return embedded, EmbeddingsFromEmbedder, nil
}

// group detects communities and partitions each into sub-groups.
func (p *Pipeline) group(ctx context.Context, g *graph.Graph, res *Result) ([]model.Community, error) {
	var detected *community.Result

	if err := p.stage(ctx, StageCommunity, func() (err error) {
		detected, err = p.detector.Detect(ctx, g)
		return err
	}); err != nil {
		return nil, err
	}

	res.Modularity = detected.Modularity

	subGroups := make([][]model.SubGroup, len(detected.Communities))

	if err := p.stage(ctx, StagePartition, func() error {
		for i, members := range detected.Communities {
			if err := ctx.Err(); err != nil {
				return err
			}

			subGroups[i] = p.partitioner.Partition(g, members)
		}

		return nil
	}); err != nil {
		return nil, err
	}

	return output.Assemble(detected.Communities, subGroups), nil
}

// stage runs fn, then reports its duration to the metrics collector and
// the logger.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	p.metrics.RecordStage(name, elapsed, err)
	p.logger.LogStage(ctx, name, elapsed, err)

	return err
}

func withEmbeddings(items []model.Item, vecs [][]float32) []model.Item {
	out := make([]model.Item, len(items))
	for i, it := range items {
		it.Embedding = vecs[i]
		out[i] = it
	}

	return out
}
