package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
)

// LocalStore implements ObjectStore over the local filesystem
type LocalStore struct {
	basePath  string
	publicURL string
	logger    arbor.ILogger
}

// NewLocalStore creates a filesystem-backed object store rooted at base_path
func NewLocalStore(config *common.LocalConfig, logger arbor.ILogger) (*LocalStore, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("local object store requires a base path")
	}

	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object store directory: %w", err)
	}

	return &LocalStore{
		basePath:  config.BasePath,
		publicURL: strings.TrimRight(config.PublicURL, "/"),
		logger:    logger,
	}, nil
}

// resolve maps a storage key to a path under the base, rejecting traversal
func (s *LocalStore) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return filepath.Join(s.basePath, cleaned), nil
}

// SaveStream writes r under key, creating parent directories as needed
func (s *LocalStore) SaveStream(ctx context.Context, key string, r io.Reader) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create parent directory: %w", err)
	}

	// Write to a temp file in the same directory and rename into place so a
	// reader never observes a partially written object.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create object file: %w", err)
	}

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write object: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finalize object file: %w", err)
	}

	s.logger.Debug().Str("key", key).Int64("bytes", written).Msg("Object saved")
	return key, nil
}

// SaveBuffer writes buf under key
func (s *LocalStore) SaveBuffer(ctx context.Context, key string, buf []byte) (string, error) {
	return s.SaveStream(ctx, key, bytes.NewReader(buf))
}

// GetStream opens the object at key
func (s *LocalStore) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrObjectNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// Delete removes the object at key; a missing key is a no-op
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// PublicURL returns the externally reachable URL for key
func (s *LocalStore) PublicURL(key string) string {
	return s.publicURL + "/" + strings.TrimLeft(key, "/")
}
