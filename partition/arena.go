package partition

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecgroup/graph"
)

// arena is a destructible working copy of a community's induced subgraph,
// addressed by local index (the member's position in the community).
type arena struct {
	ids       []int64
	adj       [][]graph.Arc
	alive     []bool
	remaining *roaring.Bitmap
}

func newArena(g *graph.Graph, members []int64) *arena {
	ids, adj := g.Subgraph(members).Dense()

	a := &arena{
		ids:       ids,
		adj:       adj,
		alive:     make([]bool, len(ids)),
		remaining: roaring.New(),
	}

	for i := range adj {
		a.alive[i] = true
	}

	a.remaining.AddRange(0, uint64(len(ids)))

	return a
}

// size returns the number of remaining nodes.
func (a *arena) size() int {
	return int(a.remaining.GetCardinality())
}

// weightedDegree sums the weights of the alive arcs of i in index order.
// Recomputing it per round keeps tied degrees exactly equal.
func (a *arena) weightedDegree(i int) float64 {
	var sum float64

	for _, arc := range a.adj[i] {
		if a.alive[arc.To] {
			sum += arc.Weight
		}
	}

	return sum
}

// byCentrality returns the remaining nodes by descending weighted degree,
// ties broken by local index.
func (a *arena) byCentrality() []int {
	nodes := make([]int, 0, a.size())

	it := a.remaining.Iterator()
	for it.HasNext() {
		nodes = append(nodes, int(it.Next()))
	}

	degree := make([]float64, len(a.ids))
	for _, i := range nodes {
		degree[i] = a.weightedDegree(i)
	}

	slices.SortStableFunc(nodes, func(x, y int) int {
		return cmp.Compare(degree[y], degree[x])
	})

	return nodes
}

// aliveNeighbors returns the alive neighbors of i by descending edge weight,
// ties broken by local index, capped at limit.
func (a *arena) aliveNeighbors(i, limit int) []graph.Arc {
	out := make([]graph.Arc, 0, len(a.adj[i]))

	for _, arc := range a.adj[i] {
		if a.alive[arc.To] {
			out = append(out, arc)
		}
	}

	// Arcs are already in index order, so a stable sort keeps index ties.
	slices.SortStableFunc(out, func(x, y graph.Arc) int {
		return cmp.Compare(y.Weight, x.Weight)
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out
}

// degreeAlive counts the alive neighbors of i.
func (a *arena) degreeAlive(i int) int {
	n := 0

	for _, arc := range a.adj[i] {
		if a.alive[arc.To] {
			n++
		}
	}

	return n
}

// remove peels i from the working subgraph.
func (a *arena) remove(i int) {
	if !a.alive[i] {
		return
	}

	a.alive[i] = false
	a.remaining.Remove(uint32(i))
}

// leftovers returns the remaining nodes in local index order.
func (a *arena) leftovers() []int64 {
	out := make([]int64, 0, a.size())

	it := a.remaining.Iterator()
	for it.HasNext() {
		out = append(out, a.ids[it.Next()])
	}

	return out
}
