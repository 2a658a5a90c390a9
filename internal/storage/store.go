// Package storage keeps uploaded media (thumbnails, videos, profile pictures)
// in an object store and turns object keys into public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrInvalidKey is returned for keys that would escape the store root.
	ErrInvalidKey = errors.New("storage: invalid object key")
	// ErrUnsupportedType is returned when an upload's sniffed type is not allowed.
	ErrUnsupportedType = errors.New("storage: unsupported file type")
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("storage: file too large")
)

// Store persists media objects.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns the address clients use to fetch key. Empty keys map to "".
	URL(key string) string
}

// Kind groups the content types accepted for an upload slot.
type Kind struct {
	Prefix  string
	Allowed []string
}

var (
	// Thumbnails accept common raster images.
	Thumbnails = Kind{Prefix: "thumbnails", Allowed: []string{"image/jpeg", "image/png", "image/webp", "image/gif"}}
	// Videos accept browser playable containers.
	Videos = Kind{Prefix: "videos", Allowed: []string{"video/mp4", "video/webm", "video/quicktime", "video/x-matroska"}}
	// ProfilePictures accept the same types as thumbnails.
	ProfilePictures = Kind{Prefix: "profiles", Allowed: Thumbnails.Allowed}
)

// CleanKey validates and normalises an object key.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "\\") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// Uploader validates multipart uploads and writes them to a Store.
type Uploader struct {
	store    Store
	maxBytes int64
}

// NewUploader constructs an Uploader. maxBytes <= 0 disables the size check.
func NewUploader(store Store, maxBytes int64) *Uploader {
	return &Uploader{store: store, maxBytes: maxBytes}
}

// Store returns the underlying object store.
func (u *Uploader) Store() Store {
	return u.store
}

// Save sniffs the upload's content type, checks it against kind and stores the
// file under a fresh key. The key is returned.
func (u *Uploader) Save(ctx context.Context, kind Kind, fh *multipart.FileHeader) (string, error) {
	if u.maxBytes > 0 && fh.Size > u.maxBytes {
		return "", ErrTooLarge
	}
	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("storage: open upload: %w", err)
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return "", fmt.Errorf("storage: detect type: %w", err)
	}
	if !mimetype.EqualsAny(mtype.String(), kind.Allowed...) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("storage: rewind upload: %w", err)
	}

	key := path.Join(kind.Prefix, uuid.NewString()+mtype.Extension())
	if err := u.store.Put(ctx, key, file, fh.Size, mtype.String()); err != nil {
		return "", err
	}
	return key, nil
}
