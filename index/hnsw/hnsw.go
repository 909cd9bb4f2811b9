// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest-neighbor search.
package hnsw

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/vecgroup/distance"
	"github.com/hupe1980/vecgroup/index"
	"github.com/hupe1980/vecgroup/queue"
)

// Compile time check to ensure HNSW satisfies the index interface.
var _ index.NeighborIndex = (*HNSW)(nil)

// ErrInvalidDimension is returned when the index is created with a non-positive dimension.
var ErrInvalidDimension = errors.New("hnsw: dimension must be positive")

// node represents a node in the HNSW graph
type node struct {
	connections [][]uint32 // Links to other nodes, one slice per layer
	vector      []float32
	layer       int // Top layer the node exists in
}

// Options represents the options for configuring HNSW.
type Options struct {
	// M specifies the number of established connections for every new element during construction.
	// The range M=12-48 is ok for most use cases.
	M int

	// EFConstruction specifies the size of the dynamic candidate list while inserting.
	EFConstruction int

	// EFSearch specifies the size of the dynamic candidate list while searching.
	// The effective value is max(EFSearch, k).
	EFSearch int

	// Heuristic selects neighbours with the diversity heuristic (true) or
	// keeps the plain closest M (false).
	Heuristic bool

	// Metric is the distance metric. MetricCosine expects unit vectors.
	Metric distance.Metric

	// Seed drives level generation so that identical insert sequences build
	// identical graphs.
	Seed int64
}

// DefaultOptions contains the default configuration options for HNSW.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	EFSearch:       64,
	Heuristic:      true,
	Metric:         distance.MetricCosine,
	Seed:           42,
}

// HNSW represents the Hierarchical Navigable Small World graph
type HNSW struct {
	dimension int
	mmax      int     // Max number of connections per element/per layer
	mmax0     int     // Max for the 0 layer
	ml        float64 // Normalization factor for level generation
	ep        uint32  // Entry point
	maxLevel  int     // Track the current max level used

	nodes []*node

	dist distance.Func
	rng  *rand.Rand
	opts Options

	mu sync.RWMutex
}

// New creates a new HNSW instance with the given dimension and options
func New(dimension int, optFns ...func(o *Options)) (*HNSW, error) {
	if dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < 2 {
		// M == 1 would result in division by zero
		// 1 / log(1.0 * M) = 1 / 0
		opts.M = 2
	}

	if opts.EFConstruction < opts.M {
		opts.EFConstruction = opts.M
	}

	dist, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	return &HNSW{
		dimension: dimension,
		mmax:      opts.M,
		mmax0:     2 * opts.M,
		ml:        1 / math.Log(float64(opts.M)),
		dist:      dist,
		rng:       rand.New(rand.NewSource(opts.Seed)), // nolint gosec
		opts:      opts,
	}, nil
}

// Factory returns an index.Factory producing HNSW indexes with the given options.
func Factory(optFns ...func(o *Options)) index.Factory {
	return func(dimension int) (index.NeighborIndex, error) {
		return New(dimension, optFns...)
	}
}

// Dimension returns the vector dimensionality.
func (h *HNSW) Dimension() int { return h.dimension }

// Len returns the number of indexed vectors.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.nodes)
}

// Add inserts a new element into the HNSW graph
func (h *HNSW) Add(v []float32) (int, error) {
	// Check if dimensions of the input vector match the expected dimension
	if len(v) != h.dimension {
		return 0, &index.ErrDimensionMismatch{Expected: h.dimension, Actual: len(v)}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	id := uint32(len(h.nodes))
	level := int(math.Floor(-math.Log(1-h.rng.Float64()) * h.ml))

	n := &node{
		vector:      slices.Clone(v),
		layer:       level,
		connections: make([][]uint32, level+1),
	}

	if id == 0 {
		h.nodes = append(h.nodes, n)
		h.ep = 0
		h.maxLevel = level

		return 0, nil
	}

	// Find single shortest path from top layers above our current node, which will be our new starting-point
	curr := h.greedy(n.vector, h.ep, h.maxLevel, level)

	// For all levels equal and below our current node, find the closest candidates and create a link
	for lvl := min(level, h.maxLevel); lvl >= 0; lvl-- {
		candidates := h.searchLayer(n.vector, curr, h.opts.EFConstruction, lvl)

		selected := h.selectNeighbours(candidates, h.opts.M)

		n.connections[lvl] = make([]uint32, len(selected))
		for i, c := range selected {
			n.connections[lvl][i] = c.Node
		}

		curr = candidates[0]
	}

	// Append new node
	h.nodes = append(h.nodes, n)

	// Next link the neighbour nodes to our new node, making it visible
	for lvl := min(level, h.maxLevel); lvl >= 0; lvl-- {
		for _, neighbour := range n.connections[lvl] {
			h.link(neighbour, id, lvl)
		}
	}

	if level > h.maxLevel {
		h.ep = id
		h.maxLevel = level
	}

	return int(id), nil
}

// Search performs a k-nearest neighbor search in the HNSW graph
func (h *HNSW) Search(q []float32, k int) ([]index.Neighbor, error) {
	if len(q) != h.dimension {
		return nil, &index.ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if k <= 0 || len(h.nodes) == 0 {
		return nil, nil
	}

	curr := h.greedy(q, h.ep, h.maxLevel, 0)

	items := h.searchLayer(q, curr, max(h.opts.EFSearch, k), 0)
	if len(items) > k {
		items = items[:k]
	}

	out := make([]index.Neighbor, len(items))
	for i, it := range items {
		out[i] = index.Neighbor{ID: int(it.Node), Score: distance.Similarity(h.opts.Metric, it.Distance)}
	}

	return out, nil
}

// greedy descends from the entry point through the layers above toLevel,
// always moving to the closest neighbour.
func (h *HNSW) greedy(q []float32, ep uint32, fromLevel, toLevel int) queue.Item {
	curr := queue.Item{Node: ep, Distance: h.dist(q, h.nodes[ep].vector)}

	for level := fromLevel; level > toLevel; level-- {
		changed := true
		for changed {
			changed = false

			conns := h.nodes[curr.Node].connections
			if level >= len(conns) {
				break
			}

			for _, id := range conns[level] {
				d := h.dist(q, h.nodes[id].vector)
				if d < curr.Distance {
					// Update the starting point to our new node
					curr = queue.Item{Node: id, Distance: d}
					changed = true
				}
			}
		}
	}

	return curr
}

// searchLayer performs a best-first search in a single layer and returns up
// to ef candidates ordered by ascending distance.
func (h *HNSW) searchLayer(q []float32, ep queue.Item, ef int, level int) []queue.Item {
	visited := bitset.New(uint(len(h.nodes) + 1))
	visited.Set(uint(ep.Node))

	candidates := queue.NewMin(ef)
	candidates.PushItem(ep)

	top := queue.NewMax(ef + 1)
	top.PushItem(ep)

	for candidates.Len() > 0 {
		candidate := candidates.PopItem()
		if candidate.Distance > top.Top().Distance && top.Len() >= ef {
			break
		}

		conns := h.nodes[candidate.Node].connections
		if level >= len(conns) {
			continue
		}

		for _, id := range conns[level] {
			if visited.Test(uint(id)) {
				continue
			}

			visited.Set(uint(id))

			d := h.dist(q, h.nodes[id].vector)

			// Add the element to top if size < ef or it beats the current worst
			if top.Len() < ef || d < top.Top().Distance {
				item := queue.Item{Node: id, Distance: d}
				candidates.PushItem(item)
				top.PushItem(item)

				if top.Len() > ef {
					top.PopItem()
				}
			}
		}
	}

	return top.Drain()
}

// link adds a directed edge first -> second and shrinks the list of first
// when it exceeds the per-layer budget.
func (h *HNSW) link(first, second uint32, level int) {
	maxConnections := h.mmax
	// HNSW allows double the connections for the bottom level (0)
	if level == 0 {
		maxConnections = h.mmax0
	}

	n := h.nodes[first]
	if level >= len(n.connections) {
		return
	}

	n.connections[level] = append(n.connections[level], second)

	if len(n.connections[level]) <= maxConnections {
		return
	}

	candidates := make([]queue.Item, len(n.connections[level]))
	for i, id := range n.connections[level] {
		candidates[i] = queue.Item{Node: id, Distance: h.dist(n.vector, h.nodes[id].vector)}
	}

	slices.SortFunc(candidates, compareItems)

	selected := h.selectNeighbours(candidates, maxConnections)

	conns := make([]uint32, len(selected))
	for i, c := range selected {
		conns[i] = c.Node
	}

	n.connections[level] = conns
}

// selectNeighbours picks up to m neighbours out of candidates, which must be
// sorted by ascending distance.
func (h *HNSW) selectNeighbours(candidates []queue.Item, m int) []queue.Item {
	if len(candidates) <= m || !h.opts.Heuristic {
		return candidates[:min(m, len(candidates))]
	}

	selected := make([]queue.Item, 0, m)
	pruned := make([]queue.Item, 0, len(candidates))

	for _, c := range candidates {
		if len(selected) >= m {
			break
		}

		keep := true

		// Skip candidates that are closer to an already selected neighbour than to the base
		for _, s := range selected {
			if h.dist(h.nodes[s.Node].vector, h.nodes[c.Node].vector) < c.Distance {
				keep = false
				break
			}
		}

		if keep {
			selected = append(selected, c)
		} else {
			pruned = append(pruned, c)
		}
	}

	// Fill up with the closest pruned candidates
	for _, c := range pruned {
		if len(selected) >= m {
			break
		}

		selected = append(selected, c)
	}

	return selected
}

func compareItems(a, b queue.Item) int {
	switch {
	case a.Distance < b.Distance:
		return -1
	case a.Distance > b.Distance:
		return 1
	case a.Node < b.Node:
		return -1
	case a.Node > b.Node:
		return 1
	default:
		return 0
	}
}
