package app

import (
	"net/http"

	"github.com/marquee-ott/marquee/internal/storage"
)

// NewStore builds the configured media store. The returned handler serves
// objects locally and is nil for remote stores.
func NewStore(cfg *Config) (storage.Store, http.Handler, error) {
	if cfg.StorageDriver == "s3" {
		store, err := storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
	store, err := storage.NewFilesystemStore(cfg.MediaRoot, cfg.MediaURL)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Handler(), nil
}
