// Package index defines the nearest-neighbor index contract used by the graph
// builder. Implementations live in the hnsw (approximate) and flat (exact)
// subpackages.
package index

import "fmt"

// NoMatch is the position reported for an empty result slot.
// Callers must skip neighbors with this ID.
const NoMatch = -1

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Neighbor is a single search hit.
type Neighbor struct {
	// ID is the insertion position of the vector (0-based).
	ID int

	// Score is the similarity to the query; higher is closer. For the cosine
	// metric over unit vectors it equals the inner product.
	Score float32
}

// NeighborIndex is an index over fixed-dimension vectors addressed by
// insertion position.
//
// Add is not required to be safe for concurrent use with Search; Search must
// be safe for concurrent use once all vectors have been added.
type NeighborIndex interface {
	// Add appends a vector and returns its position.
	Add(v []float32) (int, error)

	// Search returns up to k neighbors of q ordered by descending Score,
	// ties broken by ascending ID.
	Search(q []float32, k int) ([]Neighbor, error)

	// Len returns the number of indexed vectors.
	Len() int

	// Dimension returns the vector dimensionality.
	Dimension() int
}

// Factory creates an empty index for the given dimension.
type Factory func(dimension int) (NeighborIndex, error)
