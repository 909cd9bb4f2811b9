// Package community partitions a similarity graph into communities by greedy
// modularity optimization (Louvain).
package community

import (
	"cmp"
	"context"
	"log/slog"
	"math/rand"
	"slices"
	"time"

	"github.com/hupe1980/vecgroup/graph"
)

// Options configures a Detector.
type Options struct {
	// Resolution scales the null-model term. Values above 1 favour smaller
	// communities.
	Resolution float64

	// Seed initializes the random generator when Rand is nil. Each Detect
	// call starts from a fresh generator so repeated runs agree.
	Seed int64

	// Rand, if set, is used for node visit order instead of a generator
	// derived from Seed.
	Rand *rand.Rand

	// MinGain is the smallest modularity improvement that counts as progress.
	MinGain float64

	// Logger receives progress messages. Nil disables logging.
	Logger *slog.Logger
}

// DefaultOptions contains the default detector configuration.
var DefaultOptions = Options{
	Resolution: 1.0,
	Seed:       42,
	MinGain:    1e-7,
}

// Result is a partition of the graph's nodes.
type Result struct {
	// Assignment maps every node ID to its community index.
	Assignment map[int64]int

	// Communities lists member IDs per community index. Communities are
	// numbered by first appearance in node order; members keep node order.
	Communities [][]int64

	// Modularity of the final partition.
	Modularity float64

	// Levels is the number of aggregation levels that improved modularity.
	Levels int
}

// Detector runs Louvain community detection.
type Detector struct {
	opts   Options
	logger *slog.Logger
}

// NewDetector creates a Detector.
func NewDetector(optFns ...func(o *Options)) *Detector {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Resolution <= 0 {
		opts.Resolution = DefaultOptions.Resolution
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Detector{opts: opts, logger: logger}
}

// Detect partitions g. Isolated nodes end up in singleton communities and an
// empty graph yields an empty result.
func (d *Detector) Detect(ctx context.Context, g *graph.Graph) (*Result, error) {
	start := time.Now()

	ids, adj := g.Dense()
	if len(ids) == 0 {
		return &Result{Assignment: map[int64]int{}}, nil
	}

	rng := d.opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(d.opts.Seed)) // nolint gosec
	}

	// membership[i] is the current community of original node i.
	membership := make([]int, len(ids))
	for i := range membership {
		membership[i] = i
	}

	lvl := newLevel(adj, make([]float64, len(ids)))

	levels := 0

	if lvl.m > 0 {
		s := newStatus(lvl, d.opts.Resolution)
		s.oneLevel(rng, d.opts.MinGain)
		mod := s.modularity()

		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			part := s.renumber()
			for i, c := range membership {
				membership[i] = part[c]
			}

			levels++

			lvl = lvl.induce(part)

			s = newStatus(lvl, d.opts.Resolution)
			s.oneLevel(rng, d.opts.MinGain)
			newMod := s.modularity()

			if newMod-mod < d.opts.MinGain {
				break
			}

			mod = newMod
		}
	}

	res := finalize(ids, membership)
	res.Modularity = Modularity(g, res.Assignment, d.opts.Resolution)
	res.Levels = levels

	d.logger.Info("communities detected",
		"nodes", len(ids),
		"communities", len(res.Communities),
		"modularity", res.Modularity,
		"levels", levels,
		"duration", time.Since(start),
	)

	return res, nil
}

// finalize renumbers communities densely by first appearance in node order.
func finalize(ids []int64, membership []int) *Result {
	res := &Result{Assignment: make(map[int64]int, len(ids))}

	renum := make(map[int]int)

	for i, id := range ids {
		c, ok := renum[membership[i]]
		if !ok {
			c = len(res.Communities)
			renum[membership[i]] = c
			res.Communities = append(res.Communities, nil)
		}

		res.Assignment[id] = c
		res.Communities[c] = append(res.Communities[c], id)
	}

	return res
}

// level is one (possibly aggregated) graph in the Louvain hierarchy.
type level struct {
	adj    [][]graph.Arc // no self loops
	loops  []float64     // self-loop weight per node
	degree []float64     // weighted degree, self loops counted twice
	m      float64       // total edge weight
}

func newLevel(adj [][]graph.Arc, loops []float64) *level {
	l := &level{
		adj:    adj,
		loops:  loops,
		degree: make([]float64, len(adj)),
	}

	var arcs float64
	for i, arcsOf := range adj {
		for _, a := range arcsOf {
			l.degree[i] += a.Weight
			arcs += a.Weight
		}

		l.degree[i] += 2 * loops[i]
		l.m += loops[i]
	}

	l.m += arcs / 2

	return l
}

// induce collapses every community of part into a super-node.
func (l *level) induce(part []int) *level {
	n := 0
	for _, c := range part {
		n = max(n, c+1)
	}

	loops := make([]float64, n)
	weights := make([]map[int]float64, n)

	for i, arcs := range l.adj {
		ci := part[i]
		loops[ci] += l.loops[i]

		for _, a := range arcs {
			// Each undirected edge appears twice in adj.
			if a.To < i {
				continue
			}

			cj := part[a.To]
			if ci == cj {
				loops[ci] += a.Weight
				continue
			}

			if weights[ci] == nil {
				weights[ci] = make(map[int]float64)
			}
			if weights[cj] == nil {
				weights[cj] = make(map[int]float64)
			}

			weights[ci][cj] += a.Weight
			weights[cj][ci] += a.Weight
		}
	}

	adj := make([][]graph.Arc, n)
	for c, ws := range weights {
		for to, w := range ws {
			adj[c] = append(adj[c], graph.Arc{To: to, Weight: w})
		}

		slices.SortFunc(adj[c], func(a, b graph.Arc) int { return cmp.Compare(a.To, b.To) })
	}

	return newLevel(adj, loops)
}

// status tracks community aggregates during local moves.
type status struct {
	lvl        *level
	resolution float64
	node2com   []int
	tot        []float64 // sum of node degrees per community
	internal   []float64 // internal edge weight per community
}

func newStatus(l *level, resolution float64) *status {
	n := len(l.adj)

	s := &status{
		lvl:        l,
		resolution: resolution,
		node2com:   make([]int, n),
		tot:        make([]float64, n),
		internal:   make([]float64, n),
	}

	for i := 0; i < n; i++ {
		s.node2com[i] = i
		s.tot[i] = l.degree[i]
		s.internal[i] = l.loops[i]
	}

	return s
}

// neighborCommunities returns the link weight from node to each adjacent
// community, in ascending community order.
func (s *status) neighborCommunities(node int) ([]int, map[int]float64) {
	weights := make(map[int]float64)

	var order []int

	for _, a := range s.lvl.adj[node] {
		c := s.node2com[a.To]
		if _, ok := weights[c]; !ok {
			order = append(order, c)
		}

		weights[c] += a.Weight
	}

	slices.Sort(order)

	return order, weights
}

func (s *status) remove(node, com int, weight float64) {
	s.tot[com] -= s.lvl.degree[node]
	s.internal[com] -= weight + s.lvl.loops[node]
	s.node2com[node] = -1
}

func (s *status) insert(node, com int, weight float64) {
	s.node2com[node] = com
	s.tot[com] += s.lvl.degree[node]
	s.internal[com] += weight + s.lvl.loops[node]
}

func (s *status) modularity() float64 {
	m := s.lvl.m
	if m == 0 {
		return 0
	}

	var q float64
	for c := range s.tot {
		if s.tot[c] > 0 {
			q += s.internal[c]/m - s.resolution*(s.tot[c]/(2*m))*(s.tot[c]/(2*m))
		}
	}

	return q
}

// oneLevel moves single nodes to the neighboring community with the best
// strictly positive gain until a pass no longer improves modularity enough.
func (s *status) oneLevel(rng *rand.Rand, minGain float64) {
	n := len(s.node2com)
	m2 := 2 * s.lvl.m

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	mod := s.modularity()

	for modified := true; modified; {
		modified = false

		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		for _, node := range order {
			com := s.node2com[node]
			degTot := s.lvl.degree[node] / m2

			neighbors, weights := s.neighborCommunities(node)

			removeCost := -weights[com] + s.resolution*(s.tot[com]-s.lvl.degree[node])*degTot
			s.remove(node, com, weights[com])

			best, bestGain := com, 0.0
			for _, c := range neighbors {
				gain := removeCost + weights[c] - s.resolution*s.tot[c]*degTot
				if gain > bestGain {
					best, bestGain = c, gain
				}
			}

			s.insert(node, best, weights[best])

			if best != com {
				modified = true
			}
		}

		newMod := s.modularity()
		if newMod-mod < minGain {
			break
		}

		mod = newMod
	}
}

// renumber maps node communities to dense indices by first appearance.
func (s *status) renumber() []int {
	renum := make(map[int]int)
	part := make([]int, len(s.node2com))

	for i, c := range s.node2com {
		r, ok := renum[c]
		if !ok {
			r = len(renum)
			renum[c] = r
		}

		part[i] = r
	}

	return part
}

// Modularity computes the weighted modularity of assignment over g.
// Nodes missing from assignment are treated as singletons.
func Modularity(g *graph.Graph, assignment map[int64]int, resolution float64) float64 {
	m := g.TotalWeight()
	if m == 0 {
		return 0
	}

	internal := make(map[int]float64)
	degree := make(map[int]float64)

	next := -1

	com := func(id int64) int {
		if c, ok := assignment[id]; ok {
			return c
		}

		next--

		return next
	}

	for _, e := range g.Edges() {
		cu, cv := com(e.U), com(e.V)
		if cu == cv {
			internal[cu] += e.Weight
		}

		degree[cu] += e.Weight
		degree[cv] += e.Weight
	}

	keys := make([]int, 0, len(degree))
	for c := range degree {
		keys = append(keys, c)
	}

	slices.Sort(keys)

	var q float64
	for _, c := range keys {
		d := degree[c]
		q += internal[c]/m - resolution*(d/(2*m))*(d/(2*m))
	}

	return q
}
