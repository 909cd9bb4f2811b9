// Package s3 provides an Amazon S3 implementation of the blobstore.Store
// interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("vecgroup/run-1/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Put streams through the multipart upload manager. An object only becomes
// visible once the upload completes, so a failed checkpoint write never
// replaces a good one.
package s3
