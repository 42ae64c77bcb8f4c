package objectstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalClient stores card artifacts on the local filesystem. Used for
// development and tests.
type LocalClient struct {
	basePath string
}

func NewLocalClient(basePath string) (*LocalClient, error) {
	if basePath == "" {
		basePath = filepath.Join(os.TempDir(), "cardstore-artifacts")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", basePath, err)
	}
	return &LocalClient{basePath: basePath}, nil
}

func (l *LocalClient) Backend() string {
	return BackendLocal
}

func (l *LocalClient) path(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

// Upload writes an artifact under the storage root
func (l *LocalClient) Upload(_ context.Context, key string, data []byte, _ string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	path := l.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Download reads an artifact from the storage root
func (l *LocalClient) Download(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}

	data, err := os.ReadFile(l.path(key))
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return data, nil
}

// Delete removes an artifact, or everything under a prefix when the key
// names a directory
func (l *LocalClient) Delete(_ context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	if err := os.RemoveAll(l.path(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// List lists artifact keys under the given prefix
func (l *LocalClient) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(l.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error listing objects: %w", err)
	}
	return keys, nil
}

// PresignedURL returns a file URL; local storage has no signing
func (l *LocalClient) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}
	return "file://" + l.path(key), nil
}
