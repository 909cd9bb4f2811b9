// Package distance provides the vector math used by the neighbor indexes and
// the graph builder.
//
// # Supported Metrics
//
//   - MetricL2: Squared Euclidean distance
//   - MetricCosine: 1 - cosine similarity over unit vectors (default)
//
// # Usage
//
//	distance.NormalizeL2InPlace(vec)
//	sim := distance.Dot(a, b)
//	fn, _ := distance.Provider(distance.MetricCosine)
package distance
