// Package blobstore provides storage abstraction for saved tensor archives.
//
// Store is the interface for reading and writing archive blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - Local: local filesystem with mmap-backed zero-copy reads
//   - Memory: in-memory store for tests
//   - RateLimited: byte-throughput limiting wrapper around another Store
//   - s3.Store: Amazon S3 with range reads and parallel uploads
//   - minio.Store: any S3-compatible endpoint through the MinIO client
//
// Archives are immutable once written: Put and Create always replace a blob
// as a whole, and readers opened before a replacement keep seeing the bytes
// they opened.
package blobstore
