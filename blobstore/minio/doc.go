// Package minio stores vecgroup checkpoints and outputs in a MinIO or other
// S3-compatible bucket through the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "catalog", "runs/2024-06/")
//	p, err := vecgroup.New(l, store)
//
// Writes stream through a multipart upload of DefaultPartSize parts. An
// object only appears once the upload completes, so a failed write leaves
// the previous checkpoint in place.
package minio
