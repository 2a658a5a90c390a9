package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore keeps objects below a local directory and serves them over HTTP.
type FilesystemStore struct {
	root    string
	baseURL string
}

// NewFilesystemStore returns a store rooted at root whose objects are exposed
// below baseURL (for example "/media/").
func NewFilesystemStore(root, baseURL string) (*FilesystemStore, error) {
	if root == "" {
		return nil, errors.New("storage: filesystem root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &FilesystemStore{root: root, baseURL: baseURL}, nil
}

func (s *FilesystemStore) path(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Put writes body to key atomically.
func (s *FilesystemStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", key, err)
	}
	return os.Rename(tmp.Name(), target)
}

// Delete removes key. Missing objects are not an error.
func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// URL joins baseURL and key.
func (s *FilesystemStore) URL(key string) string {
	if key == "" {
		return ""
	}
	return s.baseURL + strings.TrimPrefix(key, "/")
}

// Handler serves stored objects. Mount it at baseURL.
func (s *FilesystemStore) Handler() http.Handler {
	return http.StripPrefix(strings.TrimSuffix(s.baseURL, "/"), http.FileServer(http.Dir(s.root)))
}

var _ Store = (*FilesystemStore)(nil)
