package vecgroup

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/hupe1980/vecgroup/blobstore"
	"github.com/hupe1980/vecgroup/checkpoint"
	"github.com/hupe1980/vecgroup/internal/fs"
	"github.com/hupe1980/vecgroup/loader"
	"github.com/hupe1980/vecgroup/model"
	"github.com/hupe1980/vecgroup/output"
	"github.com/hupe1980/vecgroup/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeClusters() []model.Item {
	return testutil.NewRNG(11).ClusteredItems([]int{50, 50, 20}, 16, 0.05)
}

func scenarioOptions(extra ...Option) []Option {
	return append([]Option{
		WithTopK(10),
		WithSubGroupSizes(30, 10, 5),
	}, extra...)
}

func readBlob(t *testing.T, store blobstore.Store, name string) []byte {
	t.Helper()

	b, err := store.Open(context.Background(), name)
	require.NoError(t, err)
	defer b.Close()

	data, err := blobstore.ReadAll(context.Background(), b)
	require.NoError(t, err)

	return data
}

func run(t *testing.T, items []model.Item, store blobstore.Store, opts ...Option) *Result {
	t.Helper()

	p, err := New(loader.Static(items), store, opts...)
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	return res
}

func TestPipeline_ThreeClusters(t *testing.T) {
	items := threeClusters()
	store := blobstore.NewMemoryStore()

	res := run(t, items, store, scenarioOptions()...)

	assert.Equal(t, 120, res.Items)
	assert.Equal(t, 120, res.Nodes)
	assert.Positive(t, res.Edges)
	assert.False(t, res.GraphFromCheckpoint)
	assert.Equal(t, EmbeddingsFromItems, res.EmbeddingSource)

	format := make(map[int64]string, len(items))
	for _, it := range items {
		format[it.ID] = it.ValueFormat
	}

	inCommunity := make(map[int64]int)
	inGroup := make(map[int64]int)

	for i, c := range res.Communities {
		assert.Equal(t, model.CommunityID(i), c.CommunityID)
		assert.Equal(t, len(c.MemberIDs), c.TotalCount)

		// Well separated clusters never share a community.
		for _, id := range c.MemberIDs {
			inCommunity[id]++
			assert.Equal(t, format[c.MemberIDs[0]], format[id])
		}

		var covered []int64

		for _, g := range c.SubGroups {
			assert.LessOrEqual(t, g.Size(), 30)
			assert.Positive(t, g.Size())

			switch g.GroupType {
			case model.GroupHubAndSpoke:
				require.NotNil(t, g.HubID)
				assert.Equal(t, *g.HubID, g.MemberIDs[0])
				assert.GreaterOrEqual(t, g.Size(), 5)
			case model.GroupOrphan:
				assert.Nil(t, g.HubID)
				assert.LessOrEqual(t, g.Size(), 10)
			default:
				t.Fatalf("unexpected group type %q", g.GroupType)
			}

			for _, id := range g.MemberIDs {
				inGroup[id]++
			}

			covered = append(covered, g.MemberIDs...)
		}

		slices.Sort(covered)
		members := slices.Clone(c.MemberIDs)
		slices.Sort(members)
		assert.Equal(t, members, covered)
	}

	for _, it := range items {
		assert.Equal(t, 1, inCommunity[it.ID], "item %d community count", it.ID)
		assert.Equal(t, 1, inGroup[it.ID], "item %d group count", it.ID)
	}

	assert.Equal(t, 120, res.Summary.Items)
	assert.Equal(t, len(res.Communities), res.Summary.Communities)
	assert.GreaterOrEqual(t, len(res.Communities), 3)

	defs := readBlob(t, store, output.DefinitionsName)
	assert.Contains(t, string(defs), `"community_id": "comm_0"`)
	assert.Contains(t, string(readBlob(t, store, output.StatsName)), "Community & Grouping Statistics")
	assert.NotEmpty(t, readBlob(t, store, output.SamplesName))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, names, checkpoint.GraphName)
	assert.NotContains(t, names, checkpoint.EmbeddingsName)
}

func TestPipeline_Deterministic(t *testing.T) {
	items := threeClusters()

	s1 := blobstore.NewMemoryStore()
	s2 := blobstore.NewMemoryStore()

	run(t, items, s1, scenarioOptions(WithCheckpoints(false))...)
	run(t, items, s2, scenarioOptions(WithCheckpoints(false))...)

	for _, name := range []string{output.DefinitionsName, output.StatsName, output.SamplesName, output.AnalysisName} {
		assert.Equal(t, readBlob(t, s1, name), readBlob(t, s2, name), name)
	}

	names, err := s1.List(context.Background(), "")
	require.NoError(t, err)
	assert.NotContains(t, names, checkpoint.GraphName)
}

func TestPipeline_GraphCheckpointHit(t *testing.T) {
	items := threeClusters()
	store := blobstore.NewMemoryStore()

	first := run(t, items, store, scenarioOptions()...)
	want := readBlob(t, store, output.DefinitionsName)

	mc := &BasicMetricsCollector{}
	second := run(t, items, store, scenarioOptions(WithMetricsCollector(mc))...)

	assert.True(t, second.GraphFromCheckpoint)
	assert.Equal(t, EmbeddingsNone, second.EmbeddingSource)
	assert.Equal(t, first.Edges, second.Edges)
	assert.Equal(t, want, readBlob(t, store, output.DefinitionsName))
	assert.Equal(t, int64(1), mc.CheckpointHits.Load())

	_, built := mc.GetStats()[StageGraph]
	assert.False(t, built)
}

func TestPipeline_CorruptGraphCheckpoint(t *testing.T) {
	ctx := context.Background()
	items := threeClusters()

	fresh := blobstore.NewMemoryStore()
	run(t, items, fresh, scenarioOptions()...)
	want := readBlob(t, fresh, output.DefinitionsName)

	store := blobstore.NewMemoryStore()
	run(t, items, store, scenarioOptions()...)

	data := readBlob(t, store, checkpoint.GraphName)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, blobstore.PutBytes(ctx, store, checkpoint.GraphName, data))

	res := run(t, items, store, scenarioOptions()...)
	assert.False(t, res.GraphFromCheckpoint)
	assert.Equal(t, want, readBlob(t, store, output.DefinitionsName))

	// The rebuilt checkpoint is usable again.
	res = run(t, items, store, scenarioOptions()...)
	assert.True(t, res.GraphFromCheckpoint)
}

func TestPipeline_StaleGraphCheckpoint(t *testing.T) {
	items := threeClusters()
	store := blobstore.NewMemoryStore()

	run(t, items, store, scenarioOptions()...)

	subset := items[:60]
	res := run(t, subset, store, scenarioOptions()...)

	assert.False(t, res.GraphFromCheckpoint)
	assert.Equal(t, 60, res.Nodes)
	assert.Equal(t, 60, res.Summary.Items)
}

func TestPipeline_ShuffledInputReusesGraph(t *testing.T) {
	items := threeClusters()
	store := blobstore.NewMemoryStore()

	run(t, items, store, scenarioOptions()...)

	reversed := slices.Clone(items)
	slices.Reverse(reversed)

	res := run(t, reversed, store, scenarioOptions()...)
	assert.True(t, res.GraphFromCheckpoint)
	assert.Equal(t, 120, res.Summary.Items)
}

func TestPipeline_EmbedderAndEmbeddingsCheckpoint(t *testing.T) {
	ctx := context.Background()
	items := threeClusters()
	stripped := testutil.StripEmbeddings(items)
	embedder := testutil.NewEmbedder(items)
	store := blobstore.NewMemoryStore()

	opts := scenarioOptions(WithEmbedder(embedder), WithCompression(checkpoint.CompressionZSTD))

	res := run(t, stripped, store, opts...)
	assert.Equal(t, EmbeddingsFromEmbedder, res.EmbeddingSource)
	assert.Equal(t, 1, embedder.Calls())
	want := readBlob(t, store, output.DefinitionsName)

	// Without the graph checkpoint the embeddings checkpoint is used.
	require.NoError(t, store.Delete(ctx, checkpoint.GraphName))

	res = run(t, stripped, store, opts...)
	assert.Equal(t, EmbeddingsFromCheckpoint, res.EmbeddingSource)
	assert.Equal(t, 1, embedder.Calls())
	assert.Equal(t, want, readBlob(t, store, output.DefinitionsName))

	// Invalidate forces a full recomputation.
	p, err := New(loader.Static(stripped), store, opts...)
	require.NoError(t, err)
	require.NoError(t, p.Invalidate(ctx))

	res, err = p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, EmbeddingsFromEmbedder, res.EmbeddingSource)
	assert.Equal(t, 2, embedder.Calls())
}

func TestPipeline_EmbedderCountMismatch(t *testing.T) {
	items := testutil.StripEmbeddings(threeClusters())

	short := loader.EmbedderFunc(func(_ context.Context, items []model.Item) ([][]float32, error) {
		return make([][]float32, len(items)-1), nil
	})

	p, err := New(loader.Static(items), blobstore.NewMemoryStore(), WithEmbedder(short))
	require.NoError(t, err)

	_, err = p.Run(context.Background())

	var countErr *ErrEmbeddingCount
	require.True(t, errors.As(err, &countErr))
	assert.Equal(t, 120, countErr.Expected)
	assert.Equal(t, 119, countErr.Actual)
}

func TestPipeline_MissingEmbedding(t *testing.T) {
	items := threeClusters()
	items[4].Embedding = nil

	p, err := New(loader.Static(items), blobstore.NewMemoryStore())
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.True(t, IsDataError(err))

	var de *DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, items[4].ID, de.ItemID)
}

func TestPipeline_SingleItem(t *testing.T) {
	items := []model.Item{{ID: 42, Title: "Age", ValueFormat: "integer", Embedding: []float32{1, 0, 0}}}

	res := run(t, items, blobstore.NewMemoryStore())

	require.Len(t, res.Communities, 1)
	c := res.Communities[0]
	assert.Equal(t, []int64{42}, c.MemberIDs)
	require.Len(t, c.SubGroups, 1)
	assert.Equal(t, model.GroupOrphan, c.SubGroups[0].GroupType)
	assert.Equal(t, []int64{42}, c.SubGroups[0].MemberIDs)
	assert.Equal(t, "grp_0", c.SubGroups[0].GroupID)
}

// assertComplete checks that every item lands in exactly one community and
// one sub-group and that no group exceeds maxSize.
func assertComplete(t *testing.T, items []model.Item, res *Result, maxSize int) {
	t.Helper()

	inCommunity := make(map[int64]int, len(items))
	inGroup := make(map[int64]int, len(items))

	for _, c := range res.Communities {
		for _, id := range c.MemberIDs {
			inCommunity[id]++
		}

		for _, g := range c.SubGroups {
			assert.Positive(t, g.Size())
			assert.LessOrEqual(t, g.Size(), maxSize)

			for _, id := range g.MemberIDs {
				inGroup[id]++
			}
		}
	}

	assert.Len(t, inCommunity, len(items))

	for _, it := range items {
		assert.Equal(t, 1, inCommunity[it.ID], "item %d community count", it.ID)
		assert.Equal(t, 1, inGroup[it.ID], "item %d group count", it.ID)
	}
}

func TestPipeline_IdenticalEmbeddings(t *testing.T) {
	items := testutil.NewRNG(3).ClusteredItems([]int{60}, 8, 0.05)
	for i := range items {
		items[i].Embedding = slices.Clone(items[0].Embedding)
	}

	res := run(t, items, blobstore.NewMemoryStore(), scenarioOptions()...)

	assert.Equal(t, 60, res.Items)
	assert.NotEmpty(t, res.Communities)
	assertComplete(t, items, res, 30)
}

func TestPipeline_ZeroWeightGraph(t *testing.T) {
	const n = 8

	items := make([]model.Item, n)
	for i := range items {
		vec := make([]float32, n)
		vec[i] = 1

		// Distinct single-token names and no value format: every edge weighs 0.
		items[i] = model.Item{
			ID:           int64(i + 1),
			VariableName: string(rune('a' + i)),
			Title:        "item",
			Embedding:    vec,
		}
	}

	res := run(t, items, blobstore.NewMemoryStore(), scenarioOptions()...)

	require.Len(t, res.Communities, n)
	assertComplete(t, items, res, 30)

	for _, c := range res.Communities {
		require.Len(t, c.SubGroups, 1)
		assert.Equal(t, model.GroupOrphan, c.SubGroups[0].GroupType)
		assert.Equal(t, 1, c.SubGroups[0].Size())
	}

	assert.Equal(t, n, res.Summary.OrphanGroups)
	assert.Zero(t, res.Summary.HubAndSpokeGroups)
}

func TestPipeline_DuplicateIDs(t *testing.T) {
	items := []model.Item{
		{ID: 1, Title: "Age", Embedding: []float32{1, 0}},
		{ID: 1, Title: "Age at visit", Embedding: []float32{1, 0.1}},
		{ID: 2, Title: "Sex", Embedding: []float32{0, 1}},
	}

	p, err := New(loader.Static(items), blobstore.NewMemoryStore())
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.True(t, IsDataError(err))

	var de *DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, int64(1), de.ItemID)
}

func TestPipeline_EmptyInput(t *testing.T) {
	store := blobstore.NewMemoryStore()

	res := run(t, nil, store)

	assert.NotNil(t, res.Communities)
	assert.Empty(t, res.Communities)
	assert.Equal(t, "[]\n", string(readBlob(t, store, output.DefinitionsName)))
}

func TestPipeline_LoaderError(t *testing.T) {
	boom := errors.New("boom")
	mc := &BasicMetricsCollector{}

	p, err := New(loader.Func(func(context.Context) ([]model.Item, error) { return nil, boom }),
		blobstore.NewMemoryStore(), WithMetricsCollector(mc))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), mc.GetStats()[StageLoad].Errors)
}

func TestPipeline_WriteFailureIsIOError(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(output.DefinitionsName, fs.Fault{FailOnRename: true})
	store := blobstore.NewLocalStore(t.TempDir(), func(o *blobstore.LocalOptions) { o.FileSystem = ffs })

	p, err := New(loader.Static(threeClusters()), store, scenarioOptions()...)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.True(t, IsIOError(err))
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestPipeline_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := New(loader.Static(threeClusters()), blobstore.NewMemoryStore(), WithCheckpoints(false))
	require.NoError(t, err)

	_, err = p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Metrics(t *testing.T) {
	mc := &BasicMetricsCollector{}

	run(t, threeClusters(), blobstore.NewMemoryStore(), scenarioOptions(WithMetricsCollector(mc))...)

	stats := mc.GetStats()
	for _, stage := range []string{StageLoad, StageGraph, StageCommunity, StagePartition, StageOutput} {
		assert.Equal(t, int64(1), stats[stage].Count, stage)
		assert.Zero(t, stats[stage].Errors, stage)
	}

	assert.Equal(t, int64(0), mc.CheckpointHits.Load())
	assert.Equal(t, int64(1), mc.CheckpointMisses.Load())
}

func TestNew_Errors(t *testing.T) {
	store := blobstore.NewMemoryStore()

	_, err := New(nil, store)
	assert.ErrorIs(t, err, ErrNoLoader)

	_, err = New(loader.Static(nil), nil)
	assert.ErrorIs(t, err, ErrNoStore)

	tests := []struct {
		name string
		opt  Option
	}{
		{"top k", WithTopK(0)},
		{"max size", WithSubGroupSizes(0, 1, 1)},
		{"boost", WithBoostFactors(-1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(loader.Static(nil), store, tt.opt)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}
