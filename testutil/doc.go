// Package testutil provides testing utilities for vecgroup.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors, synthetic catalog
// items with a known cluster structure, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UnitVectors(1000, 32)
//
// # Synthetic Catalogs
//
//	items := rng.ClusteredItems([]int{50, 50, 20}, 16, 0.05)
//	embedder := testutil.NewEmbedder(items)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(exactResults, approxResults)
package testutil
