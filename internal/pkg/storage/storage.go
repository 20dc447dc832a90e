package storage

import (
	"context"
	"io"
)

// ObjectStore writes opaque objects under a key.
type ObjectStore interface {
	// Put stores the object, replacing any previous object at key.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// Config holds object storage configuration
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // S3-compatible endpoint (MinIO, R2); empty for AWS
	AccessKey string
	SecretKey string
}
