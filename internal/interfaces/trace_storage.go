package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/tubecast/internal/models"
)

// ErrTraceNotFound is returned when a trace does not exist in storage
var ErrTraceNotFound = errors.New("trace not found")

// TraceMutator applies an in-place change to a trace document. It runs inside
// the store's per-trace critical section; no further state calls may be made
// from within it.
type TraceMutator func(trace *models.WorkflowTrace) error

// TraceStorage persists per-run workflow trace documents. All read-modify-write
// access goes through Update, which serializes mutations per trace so that
// concurrent stage handlers cannot lose updates.
type TraceStorage interface {
	// Create stores a new trace, failing if the ID already exists
	Create(ctx context.Context, trace *models.WorkflowTrace) error

	// Get returns the current trace document, ErrTraceNotFound if absent
	Get(ctx context.Context, traceID string) (*models.WorkflowTrace, error)

	// Update applies fn to the stored trace under the per-trace lock and
	// persists the result. Returns ErrTraceNotFound if the trace is absent.
	Update(ctx context.Context, traceID string, fn TraceMutator) (*models.WorkflowTrace, error)

	// CheckAndSetUploadStarted atomically sets the YouTube upload latch.
	// Returns true exactly once per trace; later calls return false.
	CheckAndSetUploadStarted(ctx context.Context, traceID string) (bool, error)

	// List returns all traces ordered by updated_at DESC
	List(ctx context.Context) ([]*models.WorkflowTrace, error)
}
