package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader implements Uploader on the local filesystem, for
// development and tests.
type LocalUploader struct {
	basePath string
	baseURL  string
}

// LocalConfig holds configuration for local storage.
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"`
	BaseURL  string `mapstructure:"base_url"`
}

// NewLocalUploader creates a new LocalUploader instance.
func NewLocalUploader(cfg LocalConfig) (*LocalUploader, error) {
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	return &LocalUploader{
		basePath: absPath,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// fullPath returns the full filesystem path for a key, rejecting keys that
// would escape basePath.
func (s *LocalUploader) fullPath(key string) string {
	cleanKey := filepath.Clean(key)
	if cleanKey == ".." || strings.HasPrefix(cleanKey, ".."+string(os.PathSeparator)) {
		cleanKey = ""
	}
	return filepath.Join(s.basePath, cleanKey)
}

// Upload stores content under key and returns the URL it is served from.
func (s *LocalUploader) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	path := s.fullPath(key)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	if s.baseURL != "" {
		return s.baseURL + "/" + filepath.ToSlash(key), nil
	}
	return "file://" + path, nil
}

// Delete removes the content with the given key.
func (s *LocalUploader) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.fullPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Ensure interface is satisfied at compile time.
var _ Uploader = (*LocalUploader)(nil)
