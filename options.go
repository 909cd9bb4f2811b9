package vecgroup

import (
	"github.com/hupe1980/vecgroup/checkpoint"
	"github.com/hupe1980/vecgroup/codec"
	"github.com/hupe1980/vecgroup/index"
	"github.com/hupe1980/vecgroup/loader"
	"github.com/hupe1980/vecgroup/resource"
)

// Params holds the grouping parameters recognized by the pipeline.
type Params struct {
	// TopKNeighbors is the number of neighbors queried per item.
	TopKNeighbors int
	// MaxSubGroupSize is the upper bound of a hub-and-spoke group.
	MaxSubGroupSize int
	// MinOrphanGroupSize is the orphan batch size.
	MinOrphanGroupSize int
	// MinHubSpokeGroupSize is the lower bound of a hub-and-spoke group.
	MinHubSpokeGroupSize int
	// LexicalBoostFactor weights the variable-name similarity.
	LexicalBoostFactor float64
	// StructuralBoostFactor weights value-format equality.
	StructuralBoostFactor float64
	// CommunityDetectionSeed fixes tie-breaking in community detection.
	CommunityDetectionSeed int64
	// Resolution is the modularity resolution.
	Resolution float64
}

// DefaultParams are the parameters used when none are given.
var DefaultParams = Params{
	TopKNeighbors:          20,
	MaxSubGroupSize:        200,
	MinOrphanGroupSize:     100,
	MinHubSpokeGroupSize:   10,
	LexicalBoostFactor:     0.2,
	StructuralBoostFactor:  0.15,
	CommunityDetectionSeed: 42,
	Resolution:             1.0,
}

type options struct {
	params           Params
	embedder         loader.Embedder
	checkpoints      bool
	compression      checkpoint.Compression
	codec            codec.Codec
	reports          bool
	indexFactory     index.Factory
	resources        *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Pipeline.
type Option func(*options)

// WithParams replaces all grouping parameters.
func WithParams(p Params) Option {
	return func(o *options) {
		o.params = p
	}
}

// WithTopK sets the number of neighbors queried per item.
func WithTopK(k int) Option {
	return func(o *options) {
		o.params.TopKNeighbors = k
	}
}

// WithSubGroupSizes sets the sub-group size bounds.
func WithSubGroupSizes(maxSize, minOrphan, minHubSpoke int) Option {
	return func(o *options) {
		o.params.MaxSubGroupSize = maxSize
		o.params.MinOrphanGroupSize = minOrphan
		o.params.MinHubSpokeGroupSize = minHubSpoke
	}
}

// WithBoostFactors sets the lexical and structural edge-weight boosts.
func WithBoostFactors(lexical, structural float64) Option {
	return func(o *options) {
		o.params.LexicalBoostFactor = lexical
		o.params.StructuralBoostFactor = structural
	}
}

// WithSeed sets the community detection seed. The same seed drives the
// sampling of the samples report.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.params.CommunityDetectionSeed = seed
	}
}

// WithEmbedder sets the Embedder used when candidates carry no embeddings
// and no valid embeddings checkpoint exists.
func WithEmbedder(e loader.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithCheckpoints enables or disables checkpointing (default: enabled).
func WithCheckpoints(enabled bool) Option {
	return func(o *options) {
		o.checkpoints = enabled
	}
}

// WithCompression sets the block compression of new checkpoints.
func WithCompression(c checkpoint.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCodec configures the codec used for the community definitions.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithReports enables or disables the stats and samples reports
// (default: enabled).
func WithReports(enabled bool) Option {
	return func(o *options) {
		o.reports = enabled
	}
}

// WithIndexFactory sets the neighbor index used by the graph builder.
// Defaults to HNSW.
func WithIndexFactory(f index.Factory) Option {
	return func(o *options) {
		o.indexFactory = f
	}
}

// WithResources sets the resource controller bounding workers, memory and
// storage throughput.
func WithResources(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithMetricsCollector sets a custom metrics collector for monitoring.
//
// Example:
//
//	metrics := &vecgroup.BasicMetricsCollector{}
//	p, _ := vecgroup.New(l, store, vecgroup.WithMetricsCollector(metrics))
//	res, _ := p.Run(ctx)
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger sets a custom logger.
//
// Example:
//
//	logger := vecgroup.NewJSONLogger(slog.LevelInfo)
//	p, _ := vecgroup.New(l, store, vecgroup.WithLogger(logger))
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
