package interfaces

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a storage key does not exist
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the uniform contract over the video/image object backends.
// The backend is selected once at process start and held for the process
// lifetime.
type ObjectStore interface {
	// SaveStream writes r under key, creating parent paths/prefixes as needed,
	// and returns the storage key
	SaveStream(ctx context.Context, key string, r io.Reader) (string, error)

	// SaveBuffer writes buf under key and returns the storage key
	SaveBuffer(ctx context.Context, key string, buf []byte) (string, error)

	// GetStream opens the object at key; ErrObjectNotFound if absent.
	// The caller closes the returned reader.
	GetStream(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object at key. Local backend treats a missing key as
	// a no-op; the cloud backend surfaces the provider's semantics.
	Delete(ctx context.Context, key string) error

	// PublicURL returns the externally reachable URL for key
	PublicURL(key string) string
}
