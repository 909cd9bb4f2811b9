package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph(t *testing.T) {
	g := New()

	assert.True(t, g.AddNode(3))
	assert.False(t, g.AddNode(3))

	assert.True(t, g.AddEdge(5, 3, 0.5))
	assert.False(t, g.AddEdge(3, 5, 0.9), "existing edge keeps its weight")
	assert.False(t, g.AddEdge(7, 7, 1), "self loops are ignored")

	w, ok := g.Weight(3, 5)
	require.True(t, ok)
	assert.Equal(t, 0.5, w)
	assert.True(t, g.HasEdge(5, 3))
	assert.False(t, g.HasNode(7))

	assert.Equal(t, []int64{3, 5}, g.Nodes())
	assert.Equal(t, 2, g.NumNodes())
	assert.Equal(t, 1, g.NumEdges())
}

func TestEdgesSorted(t *testing.T) {
	g := New()
	g.AddEdge(9, 1, 1)
	g.AddEdge(4, 2, 2)
	g.AddEdge(2, 1, 3)

	assert.Equal(t, []Edge{
		{U: 1, V: 2, Weight: 3},
		{U: 1, V: 9, Weight: 1},
		{U: 2, V: 4, Weight: 2},
	}, g.Edges())
	assert.Equal(t, 6.0, g.TotalWeight())
}

func TestDense(t *testing.T) {
	g := New()
	for _, id := range []int64{10, 20, 30, 40} {
		g.AddNode(id)
	}
	g.AddEdge(30, 10, 0.3)
	g.AddEdge(10, 20, 0.1)

	ids, adj := g.Dense()
	assert.Equal(t, []int64{10, 20, 30, 40}, ids)
	assert.Equal(t, []Arc{{To: 1, Weight: 0.1}, {To: 2, Weight: 0.3}}, adj[0])
	assert.Equal(t, []Arc{{To: 0, Weight: 0.1}}, adj[1])
	assert.Equal(t, []Arc{{To: 0, Weight: 0.3}}, adj[2])
	assert.Empty(t, adj[3])
}

func TestSubgraph(t *testing.T) {
	g := New()
	g.AddEdge(1, 2, 1)
	g.AddEdge(2, 3, 1)
	g.AddEdge(3, 4, 1)

	sub := g.Subgraph([]int64{3, 2, 99})
	assert.Equal(t, []int64{3, 2, 99}, sub.Nodes())
	assert.Equal(t, 1, sub.NumEdges())
	assert.True(t, sub.HasEdge(2, 3))
}

func TestSameNodes(t *testing.T) {
	g := New()
	g.AddNode(1)
	g.AddNode(2)

	assert.True(t, g.SameNodes([]int64{2, 1}))
	assert.False(t, g.SameNodes([]int64{1}))
	assert.False(t, g.SameNodes([]int64{1, 3}))
}
