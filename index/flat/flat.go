// Package flat provides an exact, brute-force nearest-neighbor index.
package flat

import (
	"errors"
	"sync"

	"github.com/hupe1980/vecgroup/distance"
	"github.com/hupe1980/vecgroup/index"
	"github.com/hupe1980/vecgroup/queue"
)

// Compile time check to ensure Flat satisfies the index interface.
var _ index.NeighborIndex = (*Flat)(nil)

// ErrInvalidDimension is returned when the index is created with a non-positive dimension.
var ErrInvalidDimension = errors.New("flat: dimension must be positive")

// Options contains configuration options for the flat index.
type Options struct {
	// Metric is the distance metric. MetricCosine expects unit vectors.
	Metric distance.Metric
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Metric: distance.MetricCosine,
}

// Flat stores vectors contiguously and scans all of them on every search.
type Flat struct {
	dimension int
	data      []float32 // row-major, len = n * dimension
	dist      distance.Func
	opts      Options

	mu sync.RWMutex
}

// New creates a new flat index.
func New(dimension int, optFns ...func(o *Options)) (*Flat, error) {
	if dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	dist, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	return &Flat{
		dimension: dimension,
		dist:      dist,
		opts:      opts,
	}, nil
}

// Factory returns an index.Factory producing flat indexes with the given options.
func Factory(optFns ...func(o *Options)) index.Factory {
	return func(dimension int) (index.NeighborIndex, error) {
		return New(dimension, optFns...)
	}
}

// Dimension returns the vector dimensionality.
func (f *Flat) Dimension() int { return f.dimension }

// Len returns the number of indexed vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.data) / f.dimension
}

// Add appends a vector to the index.
func (f *Flat) Add(v []float32) (int, error) {
	if len(v) != f.dimension {
		return 0, &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(v)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := len(f.data) / f.dimension
	f.data = append(f.data, v...)

	return id, nil
}

// Search scans every stored vector and returns the k closest.
func (f *Flat) Search(q []float32, k int) ([]index.Neighbor, error) {
	if len(q) != f.dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(q)}
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.data) / f.dimension
	if k <= 0 || n == 0 {
		return nil, nil
	}

	top := queue.NewMax(k + 1)

	for i := 0; i < n; i++ {
		d := f.dist(q, f.data[i*f.dimension:(i+1)*f.dimension])

		if top.Len() < k {
			top.PushItem(queue.Item{Node: uint32(i), Distance: d})
			continue
		}

		// Rows are visited in ascending order, so an equal distance never displaces.
		if d < top.Top().Distance {
			top.PopItem()
			top.PushItem(queue.Item{Node: uint32(i), Distance: d})
		}
	}

	items := top.Drain()

	out := make([]index.Neighbor, len(items))
	for i, it := range items {
		out[i] = index.Neighbor{ID: int(it.Node), Score: distance.Similarity(f.opts.Metric, it.Distance)}
	}

	return out, nil
}
