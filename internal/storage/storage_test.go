package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/notekeep/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Disabled(t *testing.T) {
	backend, err := Open(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, backend)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "s3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown storage backend "s3"`)
}

func TestOpen_MinioRequiresSettings(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "minio"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minio endpoint is required")
}

func TestNewGCSClient_RequiresBucket(t *testing.T) {
	_, err := NewGCSClient(context.Background(), config.GCSConfig{})
	require.Error(t, err)
}

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	backend, err := Open(ctx, config.StorageConfig{Backend: "Memory"})
	require.NoError(t, err)
	require.NotNil(t, backend)
	assert.Equal(t, memoryBucket, backend.Bucket())

	require.NoError(t, backend.Put(ctx, "a/b.json", strings.NewReader(`{"ok":true}`), 11, "application/json"))

	mem, ok := backend.(*MemoryStorage)
	require.True(t, ok)
	data, contentType, found := mem.Object("a/b.json")
	require.True(t, found)
	assert.Equal(t, `{"ok":true}`, string(data))
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, []string{"a/b.json"}, mem.Keys())

	_, _, found = mem.Object("missing")
	assert.False(t, found)
	require.NoError(t, backend.Close())
}
