package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquee-ott/marquee/internal/storage"
)

func TestNewStoreFilesystem(t *testing.T) {
	store, handler, err := NewStore(&Config{StorageDriver: "filesystem", MediaRoot: t.TempDir(), MediaURL: "/media/"})
	require.NoError(t, err)
	assert.IsType(t, &storage.FilesystemStore{}, store)
	assert.NotNil(t, handler)
	assert.Equal(t, "/media/thumbnails/a.png", store.URL("thumbnails/a.png"))
}

func TestNewStoreS3(t *testing.T) {
	store, handler, err := NewStore(&Config{StorageDriver: "s3", S3Endpoint: "http://minio:9000", S3Bucket: "media"})
	require.NoError(t, err)
	assert.IsType(t, &storage.S3Store{}, store)
	assert.Nil(t, handler)
	assert.Equal(t, "http://minio:9000/media/videos/v.mp4", store.URL("videos/v.mp4"))
}
