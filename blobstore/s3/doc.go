// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("tensors/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	tensor, err := archive.LoadFromStore(ctx, store, "dataset.npz", archive.DefaultOptions())
//
// # Features
//
//   - Range reads for partial fetches of large archives
//   - Multipart uploads with CRC32C integrity validation
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - CommitStore: a CURRENT archive pointer with atomic publication
//     through DynamoDB conditional writes
package s3
