// Package minio implements blobstore.Store for MinIO and other
// S3-compatible object stores through the MinIO client.
//
// # Usage
//
//	client, err := minio.New("play.min.io", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	store := miniostore.NewStore(client, "tensors", "datasets/")
//
// Reads use ranged GETs; writes stream through PutObject.
package minio
