package graph

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/hupe1980/vecgroup/distance"
	"github.com/hupe1980/vecgroup/index/flat"
	"github.com/hupe1980/vecgroup/model"
	"github.com/hupe1980/vecgroup/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomItems(n, dim int, seed int64) []model.Item {
	r := rand.New(rand.NewSource(seed))
	formats := []string{"integer", "string", ""}
	names := []string{"age_years", "age_months", "blood_pressure", "heart_rate", "sex"}

	items := make([]model.Item, n)
	for i := range items {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}

		items[i] = model.Item{
			ID:           int64(1000 + i),
			VariableName: names[r.Intn(len(names))],
			ValueFormat:  formats[r.Intn(len(formats))],
			Embedding:    v,
		}
	}

	return items
}

func TestBuildEmpty(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	g, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.NumNodes())
	assert.Equal(t, 0, g.NumEdges())
}

func TestNewBuilderInvalidTopK(t *testing.T) {
	_, err := NewBuilder(func(o *Options) { o.TopK = 0 })
	assert.ErrorIs(t, err, ErrInvalidTopK)
}

func TestBuildInvalidEmbeddings(t *testing.T) {
	nan := float32(math.NaN())

	tests := []struct {
		name   string
		second []float32
	}{
		{"missing", nil},
		{"dimension", []float32{1, 0, 0}},
		{"nan", []float32{nan, 1}},
		{"zero", []float32{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := []model.Item{
				{ID: 1, Embedding: []float32{1, 0}},
				{ID: 2, Embedding: tt.second},
				{ID: 3, Embedding: []float32{0, 1}},
			}

			b, err := NewBuilder()
			require.NoError(t, err)

			_, err = b.Build(context.Background(), items)

			var dataErr *model.DataError
			require.ErrorAs(t, err, &dataErr)
			assert.Equal(t, int64(2), dataErr.ItemID)
		})
	}
}

func TestBuildExact(t *testing.T) {
	items := []model.Item{
		{ID: 10, VariableName: "age_years", ValueFormat: "integer", Embedding: []float32{1, 0}},
		{ID: 20, VariableName: "age_months", ValueFormat: "integer", Embedding: []float32{0.8, 0.6}},
		{ID: 30, VariableName: "sex", ValueFormat: "", Embedding: []float32{0, 2}},
	}

	b, err := NewBuilder(func(o *Options) {
		o.TopK = 2
		o.IndexFactory = flat.Factory()
	})
	require.NoError(t, err)

	g, err := b.Build(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 20, 30}, g.Nodes())

	// 10 -> 20, 20 -> 10, 30 -> 20
	assert.Equal(t, 2, g.NumEdges())

	w, ok := g.Weight(10, 20)
	require.True(t, ok)
	assert.InDelta(t, 0.8*(1+0.2*(1.0/3.0)+0.15), w, 1e-6)

	w, ok = g.Weight(20, 30)
	require.True(t, ok)
	assert.InDelta(t, 0.6, w, 1e-6)

	assert.False(t, g.HasEdge(10, 30))

	// Inputs are not normalized in place.
	assert.Equal(t, []float32{0, 2}, items[2].Embedding)
}

func TestBuildIsolatedNodes(t *testing.T) {
	items := randomItems(20, 8, 1)

	b, err := NewBuilder(func(o *Options) { o.TopK = 1 })
	require.NoError(t, err)

	g, err := b.Build(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, len(items), g.NumNodes())
	assert.Equal(t, 0, g.NumEdges())
}

func TestBuildWeightSymmetry(t *testing.T) {
	items := randomItems(200, 16, 2)

	b, err := NewBuilder(func(o *Options) { o.TopK = 10 })
	require.NoError(t, err)

	g, err := b.Build(context.Background(), items)
	require.NoError(t, err)
	require.Positive(t, g.NumEdges())

	byID := make(map[int64]model.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	s := Scorer{LexicalBoost: DefaultLexicalBoost, StructuralBoost: DefaultStructuralBoost}

	for _, e := range g.Edges() {
		a, c := byID[e.U], byID[e.V]

		ua, _ := distance.NormalizeL2Copy(a.Embedding)
		uc, _ := distance.NormalizeL2Copy(c.Embedding)

		forward := s.Weight(Semantic(ua, uc), Jaccard(Tokenize(a.VariableName), Tokenize(c.VariableName)), Structural(a.ValueFormat, c.ValueFormat))
		backward := s.Weight(Semantic(uc, ua), Jaccard(Tokenize(c.VariableName), Tokenize(a.VariableName)), Structural(c.ValueFormat, a.ValueFormat))

		assert.InDelta(t, forward, e.Weight, 1e-9)
		assert.InDelta(t, backward, e.Weight, 1e-9)
		assert.GreaterOrEqual(t, e.Weight, 0.0)
	}
}

func TestBuildIndependentOfWorkers(t *testing.T) {
	items := randomItems(300, 12, 3)

	build := func(workers int) *Graph {
		b, err := NewBuilder(func(o *Options) {
			o.TopK = 8
			o.Resources = resource.NewController(resource.Config{MaxWorkers: workers})
		})
		require.NoError(t, err)

		g, err := b.Build(context.Background(), items)
		require.NoError(t, err)

		return g
	}

	one, many := build(1), build(8)

	assert.Equal(t, one.Nodes(), many.Nodes())
	assert.Equal(t, one.Edges(), many.Edges())
}

func TestBuildCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b, err := NewBuilder()
	require.NoError(t, err)

	_, err = b.Build(ctx, randomItems(10, 4, 4))
	assert.ErrorIs(t, err, context.Canceled)
}
