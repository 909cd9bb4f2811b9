// Package graph holds the weighted similarity graph over items and the
// builder that derives it from embeddings and item attributes.
package graph

import (
	"cmp"
	"slices"
)

// EdgeKey is the canonical key of an undirected edge: U < V.
type EdgeKey struct {
	U, V int64
}

// Key returns the canonical key for the unordered pair (a, b).
func Key(a, b int64) EdgeKey {
	if a > b {
		a, b = b, a
	}

	return EdgeKey{U: a, V: b}
}

// Edge is a weighted undirected edge.
type Edge struct {
	U, V   int64
	Weight float64
}

// Arc is one half of an edge as seen from a node in a dense adjacency view.
type Arc struct {
	To     int // dense index of the other endpoint
	Weight float64
}

// Graph is an undirected weighted graph over item IDs.
//
// Nodes keep their insertion order. Edges are stored under canonical keys so
// the edge set does not depend on discovery order. A Graph is not safe for
// concurrent mutation.
type Graph struct {
	nodes []int64
	pos   map[int64]int
	edges map[EdgeKey]float64
	nbrs  map[int64][]int64
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		pos:   make(map[int64]int),
		edges: make(map[EdgeKey]float64),
		nbrs:  make(map[int64][]int64),
	}
}

// AddNode adds id as a node. It reports false if the node already exists.
func (g *Graph) AddNode(id int64) bool {
	if _, ok := g.pos[id]; ok {
		return false
	}

	g.pos[id] = len(g.nodes)
	g.nodes = append(g.nodes, id)

	return true
}

// HasNode reports whether id is a node of g.
func (g *Graph) HasNode(id int64) bool {
	_, ok := g.pos[id]
	return ok
}

// AddEdge inserts the undirected edge (u, v). Missing endpoints are added as
// nodes. Self loops are ignored. If the edge already exists the stored weight
// is kept and AddEdge reports false.
func (g *Graph) AddEdge(u, v int64, w float64) bool {
	if u == v {
		return false
	}

	k := Key(u, v)
	if _, ok := g.edges[k]; ok {
		return false
	}

	g.AddNode(u)
	g.AddNode(v)
	g.edges[k] = w
	g.nbrs[u] = append(g.nbrs[u], v)
	g.nbrs[v] = append(g.nbrs[v], u)

	return true
}

// HasEdge reports whether the undirected edge (u, v) exists.
func (g *Graph) HasEdge(u, v int64) bool {
	_, ok := g.edges[Key(u, v)]
	return ok
}

// Weight returns the weight of (u, v) and whether the edge exists.
func (g *Graph) Weight(u, v int64) (float64, bool) {
	w, ok := g.edges[Key(u, v)]
	return w, ok
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Nodes returns the node IDs in insertion order. The slice must not be modified.
func (g *Graph) Nodes() []int64 { return g.nodes }

// Edges returns all edges sorted by (U, V) with U < V.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for k, w := range g.edges {
		out = append(out, Edge{U: k.U, V: k.V, Weight: w})
	}

	slices.SortFunc(out, func(a, b Edge) int {
		if c := cmp.Compare(a.U, b.U); c != 0 {
			return c
		}
		return cmp.Compare(a.V, b.V)
	})

	return out
}

// TotalWeight returns the sum of all edge weights.
func (g *Graph) TotalWeight() float64 {
	var sum float64
	for _, e := range g.Edges() {
		sum += e.Weight
	}

	return sum
}

// Dense returns the node IDs in insertion order and an adjacency list indexed
// by node position. Arcs are sorted by target position, so iteration is
// reproducible.
func (g *Graph) Dense() ([]int64, [][]Arc) {
	adj := make([][]Arc, len(g.nodes))

	for _, e := range g.Edges() {
		u, v := g.pos[e.U], g.pos[e.V]
		adj[u] = append(adj[u], Arc{To: v, Weight: e.Weight})
		adj[v] = append(adj[v], Arc{To: u, Weight: e.Weight})
	}

	for i := range adj {
		slices.SortFunc(adj[i], func(a, b Arc) int { return cmp.Compare(a.To, b.To) })
	}

	return g.nodes, adj
}

// Subgraph returns the subgraph induced by ids. Nodes keep the order of ids;
// IDs unknown to g become isolated nodes.
func (g *Graph) Subgraph(ids []int64) *Graph {
	sub := New()

	for _, id := range ids {
		sub.AddNode(id)
	}

	for _, u := range sub.nodes {
		for _, v := range g.nbrs[u] {
			if u < v && sub.HasNode(v) {
				sub.AddEdge(u, v, g.edges[Key(u, v)])
			}
		}
	}

	return sub
}

// SameNodes reports whether g's node set equals ids (ignoring order).
func (g *Graph) SameNodes(ids []int64) bool {
	if len(ids) != len(g.nodes) {
		return false
	}

	for _, id := range ids {
		if !g.HasNode(id) {
			return false
		}
	}

	return true
}
