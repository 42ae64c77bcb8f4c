package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelsmith/cardstore/internal/configs"
)

func newTestClient(t *testing.T) *LocalClient {
	t.Helper()
	client, err := NewLocalClient(t.TempDir())
	require.NoError(t, err)
	return client
}

func TestLocalUploadDownload(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	key := "model_registry/ml-core/churn/v1.0.0/trained-model.bin"
	payload := []byte("model bytes")
	require.NoError(t, client.Upload(ctx, key, payload, "application/octet-stream"))

	got, err := client.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestLocalDownloadMissingKey(t *testing.T) {
	client := newTestClient(t)
	_, err := client.Download(context.Background(), "does/not/exist")
	assert.Error(t, err)
}

func TestLocalEmptyKeyRejected(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	assert.Error(t, client.Upload(ctx, "", []byte("x"), ""))
	_, err := client.Download(ctx, "")
	assert.Error(t, err)
	assert.Error(t, client.Delete(ctx, ""))
}

func TestLocalListByPrefix(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	keys := []string{
		"model_registry/ml-core/churn/v1.0.0/trained-model.bin",
		"model_registry/ml-core/churn/v1.0.0/metadata.json",
		"model_registry/ml-core/uplift/v2.0.0/metadata.json",
		"data_registry/ml-core/features/v1.0.0/contents.bin",
	}
	for _, key := range keys {
		require.NoError(t, client.Upload(ctx, key, []byte(key), ""))
	}

	churn, err := client.List(ctx, "model_registry/ml-core/churn/")
	require.NoError(t, err)
	assert.Len(t, churn, 2)

	models, err := client.List(ctx, "model_registry/")
	require.NoError(t, err)
	assert.Len(t, models, 3)

	none, err := client.List(ctx, "run_registry/")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLocalDeletePrefix(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Upload(ctx, "model_registry/ml-core/churn/v1.0.0/trained-model.bin", []byte("a"), ""))
	require.NoError(t, client.Upload(ctx, "model_registry/ml-core/churn/v1.0.0/metadata.json", []byte("b"), ""))

	require.NoError(t, client.Delete(ctx, "model_registry/ml-core/churn/v1.0.0"))

	remaining, err := client.List(ctx, "model_registry/")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestLocalPresignedURL(t *testing.T) {
	client := newTestClient(t)
	url, err := client.PresignedURL(context.Background(), "a/b/c.bin", 0)
	require.NoError(t, err)
	assert.Contains(t, url, "file://")
	assert.Contains(t, url, "a/b/c.bin")
}

func TestNewClientDefaultsToLocal(t *testing.T) {
	client, err := NewClient(context.Background(), configs.Configs{StorageBasePath: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, client.Backend())
}

func TestNewClientUnknownBackend(t *testing.T) {
	_, err := NewClient(context.Background(), configs.Configs{StorageBackend: "ftp"})
	assert.Error(t, err)
}
