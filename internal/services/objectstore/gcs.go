package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/ternarybob/arbor"
	"google.golang.org/api/option"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
)

// GCSStore implements ObjectStore over a Google Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
	logger arbor.ILogger
}

// NewGCSStore creates a GCS-backed object store. When credentials_file is
// empty, application default credentials are used.
func NewGCSStore(ctx context.Context, config *common.GCSConfig, logger arbor.ILogger) (*GCSStore, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("gcs object store requires a bucket")
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: config.Bucket,
		prefix: strings.Trim(config.Prefix, "/"),
		logger: logger,
	}, nil
}

// objectName joins the configured prefix with the storage key
func (s *GCSStore) objectName(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// SaveStream writes r under key
func (s *GCSStore) SaveStream(ctx context.Context, key string, r io.Reader) (string, error) {
	w := s.client.Bucket(s.bucket).Object(s.objectName(key)).NewWriter(ctx)

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize gcs object: %w", err)
	}

	s.logger.Debug().Str("key", key).Str("bucket", s.bucket).Msg("Object saved to GCS")
	return key, nil
}

// SaveBuffer writes buf under key
func (s *GCSStore) SaveBuffer(ctx context.Context, key string, buf []byte) (string, error) {
	return s.SaveStream(ctx, key, bytes.NewReader(buf))
}

// GetStream opens the object at key
func (s *GCSStore) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.objectName(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrObjectNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open gcs object: %w", err)
	}
	return r, nil
}

// Delete removes the object at key, surfacing the provider's semantics
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(s.objectName(key)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", interfaces.ErrObjectNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("failed to delete gcs object: %w", err)
	}
	return nil
}

// PublicURL returns the canonical public URL for key
func (s *GCSStore) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, s.objectName(key))
}

// Close releases the GCS client
func (s *GCSStore) Close() error {
	return s.client.Close()
}
