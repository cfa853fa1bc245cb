package objectstore

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
)

// New selects the object store backend from configuration. The returned store
// is held by the app for the process lifetime.
func New(ctx context.Context, config *common.StorageConfig, logger arbor.ILogger) (interfaces.ObjectStore, error) {
	switch config.Type {
	case "local", "":
		return NewLocalStore(&config.Local, logger)
	case "gcs":
		return NewGCSStore(ctx, &config.GCS, logger)
	default:
		return nil, fmt.Errorf("unknown object store type: %s", config.Type)
	}
}
