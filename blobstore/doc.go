// Package blobstore provides the storage abstraction for checkpoints and
// output files.
//
// Store is the interface for reading and atomically writing named blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local file system; writes go to a temp file that is
//     synced and renamed into place, reads are memory mapped
//   - MemoryStore: in-process map, for tests
//   - s3.Store: Amazon S3 via the multipart upload manager
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
// Implement the Store interface to support custom storage backends:
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, write WriteFunc) error // atomic
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Put must never expose a partially written blob: a failed or canceled
// write leaves the previous content (or no blob) in place.
package blobstore
