package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSClient stores card artifacts in a Google Cloud Storage bucket.
type GCSClient struct {
	client   *storage.Client
	bucketID string
	bucket   *storage.BucketHandle
}

// NewGCSClient creates a new GCS client with the provided credentials and bucket ID
func NewGCSClient(ctx context.Context, credentialsJSON string, bucketID string) (*GCSClient, error) {
	if credentialsJSON == "" {
		return nil, fmt.Errorf("credentials JSON string cannot be empty")
	}
	if bucketID == "" {
		return nil, fmt.Errorf("bucket ID cannot be empty")
	}

	// Validate credentials JSON format
	var creds map[string]interface{}
	if err := json.Unmarshal([]byte(credentialsJSON), &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON format: %w", err)
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	// Validate bucket exists and is accessible
	bucket := client.Bucket(bucketID)
	if _, err := bucket.Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to access bucket %s: %w", bucketID, err)
	}

	return &GCSClient{
		client:   client,
		bucketID: bucketID,
		bucket:   bucket,
	}, nil
}

func (g *GCSClient) Backend() string {
	return BackendGCS
}

// Close closes the GCS client
func (g *GCSClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Upload writes an artifact to GCS
func (g *GCSClient) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	writer := g.bucket.Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return nil
}

// Download reads an artifact from GCS
func (g *GCSClient) Download(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}

	reader, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Delete deletes an artifact from GCS
func (g *GCSClient) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	if err := g.bucket.Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// List lists artifact keys under the given prefix
func (g *GCSClient) List(ctx context.Context, prefix string) ([]string, error) {
	query := &storage.Query{Prefix: prefix}
	it := g.bucket.Objects(ctx, query)

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error listing objects: %w", err)
		}
		keys = append(keys, attrs.Name)
	}

	return keys, nil
}

// PresignedURL generates a signed URL for an artifact
func (g *GCSClient) PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}

	url, err := g.bucket.SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiration),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL for %s: %w", key, err)
	}
	return url, nil
}
