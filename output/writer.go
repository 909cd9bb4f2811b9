package output

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/hupe1980/vecgroup/blobstore"
	"github.com/hupe1980/vecgroup/codec"
	"github.com/hupe1980/vecgroup/model"
	"github.com/hupe1980/vecgroup/resource"
)

const (
	// DefinitionsName is the blob name of the community definitions.
	DefinitionsName = "community_definitions.json"
	// StatsName is the blob name of the statistics report.
	StatsName = "community_stats.txt"
	// SamplesName is the blob name of the samples report.
	SamplesName = "community_samples.txt"
	// AnalysisName is the blob name of the per-community text analysis.
	AnalysisName = "community_analysis.txt"
)

// Options configures a Writer.
type Options struct {
	// Codec encodes the community definitions. Defaults to codec.Default.
	Codec codec.Codec

	// Indent is the JSON indentation.
	Indent string

	// Seed drives the sampling of the samples report.
	Seed uint64

	// Samples controls the samples report.
	Samples SampleOptions

	// Reports enables the statistics, samples and analysis reports.
	Reports bool

	// Resources throttles output writes. Nil disables throttling.
	Resources *resource.Controller

	// Logger receives progress messages. Nil disables logging.
	Logger *slog.Logger
}

// DefaultOptions contains the default writer configuration.
var DefaultOptions = Options{
	Indent:  "  ",
	Seed:    42,
	Samples: DefaultSampleOptions,
	Reports: true,
}

// Writer serializes grouping results into a blob store.
type Writer struct {
	store  blobstore.Store
	opts   Options
	logger *slog.Logger
}

// NewWriter creates a Writer on top of store.
func NewWriter(store blobstore.Store, optFns ...func(o *Options)) *Writer {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Writer{store: store, opts: opts, logger: logger}
}

// EncodeDefinitions returns the JSON encoding of communities. An empty
// grouping encodes as [].
func (w *Writer) EncodeDefinitions(communities []model.Community) ([]byte, error) {
	if communities == nil {
		communities = []model.Community{}
	}

	b, err := w.opts.Codec.MarshalIndent(communities, "", w.opts.Indent)
	if err != nil {
		return nil, err
	}

	return append(b, '\n'), nil
}

// Write stores the community definitions and, if enabled, the reports.
// items supplies the titles shown in the samples report and the fields
// of the analysis report.
func (w *Writer) Write(ctx context.Context, communities []model.Community, items []model.Item) (Summary, error) {
	summary := Summarize(communities)

	defs, err := w.EncodeDefinitions(communities)
	if err != nil {
		return summary, err
	}

	if err := w.put(ctx, DefinitionsName, func(bw io.Writer) error {
		_, err := bw.Write(defs)
		return err
	}); err != nil {
		return summary, err
	}

	w.logger.Info("community definitions saved",
		"name", DefinitionsName,
		"communities", summary.Communities,
		"sub_groups", summary.SubGroups,
	)

	if !w.opts.Reports {
		return summary, nil
	}

	if err := w.put(ctx, StatsName, func(bw io.Writer) error {
		return WriteStats(bw, summary)
	}); err != nil {
		return summary, err
	}

	titles := make(map[int64]string, len(items))
	for _, it := range items {
		titles[it.ID] = it.Title
	}

	rng := rand.New(rand.NewPCG(w.opts.Seed, w.opts.Seed))

	if err := w.put(ctx, SamplesName, func(bw io.Writer) error {
		return WriteSamples(bw, communities, titles, rng, w.opts.Samples)
	}); err != nil {
		return summary, err
	}

	if err := w.put(ctx, AnalysisName, func(bw io.Writer) error {
		return WriteAnalysis(bw, Analyze(communities, items))
	}); err != nil {
		return summary, err
	}

	w.logger.Debug("reports saved", "stats", StatsName, "samples", SamplesName, "analysis", AnalysisName)

	return summary, nil
}

func (w *Writer) put(ctx context.Context, name string, fn func(w io.Writer) error) error {
	err := w.store.Put(ctx, name, func(dst io.Writer) error {
		bw := bufio.NewWriter(w.opts.Resources.Writer(ctx, dst))
		if err := fn(bw); err != nil {
			return err
		}

		return bw.Flush()
	})
	if err != nil {
		return &model.IOError{Op: "write", Name: name, Err: err}
	}

	return nil
}
