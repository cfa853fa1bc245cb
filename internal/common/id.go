package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewTraceID generates a unique pipeline trace ID
// Format: trace_<uuid>
func NewTraceID() string {
	return "trace_" + uuid.New().String()
}

// NewArtifactName generates a collision-free storage name for a generated artifact.
// Format: {prefix}_{epochMillis}_{uuid}.{ext}
func NewArtifactName(prefix, ext string) string {
	return fmt.Sprintf("%s_%d_%s.%s", prefix, time.Now().UnixMilli(), uuid.New().String(), ext)
}
