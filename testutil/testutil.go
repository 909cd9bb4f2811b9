package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecgroup/distance"
	"github.com/hupe1980/vecgroup/index"
	"github.com/hupe1980/vecgroup/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
// Uses Gaussian distribution for uniform distribution on the sphere.
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		r.fillUnitLocked(vec)
		vectors[i] = vec
	}

	return vectors
}

func (r *RNG) fillUnitLocked(vec []float32) {
	for {
		for j := range vec {
			vec[j] = float32(r.rand.NormFloat64())
		}

		if distance.NormalizeL2InPlace(vec) || len(vec) == 0 {
			return
		}
	}
}

// ClusteredItems generates catalog items in len(sizes) well separated
// clusters. Cluster c holds sizes[c] items whose embeddings lie around a
// shared random centroid. IDs are assigned sequentially from 1 in cluster
// order; items of one cluster share a value format.
func (r *RNG) ClusteredItems(sizes []int, dim int, spread float32) []model.Item {
	centroids := r.UnitVectors(len(sizes), dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	var items []model.Item

	id := int64(1)
	for c, size := range sizes {
		for i := range size {
			vec := make([]float32, dim)
			for j := range vec {
				vec[j] = centroids[c][j] + float32(r.rand.NormFloat64())*spread
			}

			items = append(items, model.Item{
				ID:           id,
				VariableName: fmt.Sprintf("c%d_v%d", c, i),
				ValueFormat:  fmt.Sprintf("format_%d", c),
				Title:        fmt.Sprintf("cluster %d measurement %d", c, i),
				Description:  fmt.Sprintf("synthetic variable %d of topic %d", i, c),
				Embedding:    vec,
			})
			id++
		}
	}

	return items
}

// StripEmbeddings returns copies of items without embeddings.
func StripEmbeddings(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	for i, it := range items {
		it.Embedding = nil
		out[i] = it
	}

	return out
}

// Embedder serves precomputed vectors by item ID and counts its invocations.
type Embedder struct {
	vectors map[int64][]float32
	calls   atomic.Int64
}

// NewEmbedder returns an Embedder answering with the embeddings of items.
func NewEmbedder(items []model.Item) *Embedder {
	e := &Embedder{vectors: make(map[int64][]float32, len(items))}
	for _, it := range items {
		e.vectors[it.ID] = it.Embedding
	}

	return e
}

// Embed implements loader.Embedder.
func (e *Embedder) Embed(ctx context.Context, items []model.Item) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.calls.Add(1)

	out := make([][]float32, len(items))
	for i, it := range items {
		v, ok := e.vectors[it.ID]
		if !ok {
			return nil, fmt.Errorf("testutil: no vector for item %d", it.ID)
		}
		out[i] = v
	}

	return out, nil
}

// Calls returns how often Embed was invoked.
func (e *Embedder) Calls() int {
	return int(e.calls.Load())
}

// ComputeRecall computes recall@k by comparing approximate results against ground truth.
func ComputeRecall(groundTruth, approximate []index.Neighbor) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == 0 && len(approximate) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approximate), len(groundTruth))

	truthSet := make(map[int]struct{}, k)
	for i := range k {
		truthSet[groundTruth[i].ID] = struct{}{}
	}

	hits := 0
	for _, r := range approximate {
		if _, ok := truthSet[r.ID]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}
