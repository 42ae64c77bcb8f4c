package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/modelsmith/cardstore/internal/configs"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
)

// Client is the blob-storage contract used for card artifacts.
type Client interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
	Backend() string
}

// NewClient builds the storage client selected by configuration.
func NewClient(ctx context.Context, config configs.Configs) (Client, error) {
	switch config.StorageBackend {
	case BackendS3:
		return NewS3Client(ctx, S3Config{
			AccessKeyID:     config.S3AccessKeyId,
			SecretAccessKey: config.S3SecretAccessKey,
			Region:          config.S3Region,
			Endpoint:        config.S3Endpoint,
		}, config.StorageBucket)
	case BackendGCS:
		return NewGCSClient(ctx, config.GcsCredentialsJson, config.StorageBucket)
	case BackendLocal, "":
		return NewLocalClient(config.StorageBasePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.StorageBackend)
	}
}
