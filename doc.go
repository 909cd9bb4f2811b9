// Package vecgroup groups a large catalog of textual metadata records into
// bounded-size clusters of mutually similar items, so that a reviewer can
// examine each cluster as a unit.
//
// The pipeline has three algorithmic stages:
//
//  1. An approximate k-nearest-neighbor similarity graph over the item
//     embeddings (package graph, HNSW from package index/hnsw). Edge weights
//     combine cosine similarity with variable-name and value-format
//     agreement.
//  2. A coarse decomposition into communities by Louvain modularity
//     optimization (package community).
//  3. A hub-and-spoke subdivision of every community into sub-groups of
//     bounded size (package partition).
//
// # Quick Start
//
//	ctx := context.Background()
//	store := blobstore.NewLocalStore("./out")
//	l := loader.NewSQLite("catalog.db")
//
//	p, _ := vecgroup.New(l, store,
//	    vecgroup.WithEmbedder(myEmbedder),
//	    vecgroup.WithTopK(20),
//	)
//	res, _ := p.Run(ctx)
//	fmt.Println(res.Summary.Communities)
//
// # Outputs
//
// The pipeline writes community_definitions.json, community_stats.txt and
// community_samples.txt to the blob store. For a fixed seed and identical
// input the outputs are byte-identical across runs.
//
// # Checkpoints
//
// The embedding matrix and the similarity graph are checkpointed in the same
// store (embeddings.vgck, graph.vgck). A checkpoint that is missing, corrupt
// or built from a different candidate set is ignored and rewritten.
//
// Checkpoints are not keyed by the grouping parameters: call
// Pipeline.Invalidate after changing top_k_neighbors or the boost factors.
//
// # Storage
//
// Any blobstore.Store works: the local file system, memory, Amazon S3
// (blobstore/s3) or MinIO (blobstore/minio).
package vecgroup
