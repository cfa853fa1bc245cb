package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

// TraceStorage implements the TraceStorage interface for Badger.
// Read-modify-write sequences are serialized per trace ID so concurrent stage
// handlers never lose updates to the shared trace document.
type TraceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTraceStorage creates a new TraceStorage instance
func NewTraceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TraceStorage {
	return &TraceStorage{
		db:     db,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// traceLock returns the mutex owning the critical section for a trace.
// Locks are never removed; trace counts are bounded by pipeline runs.
func (s *TraceStorage) traceLock(traceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[traceID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[traceID] = lock
	}
	return lock
}

// Create stores a new trace, failing if the ID already exists
func (s *TraceStorage) Create(ctx context.Context, trace *models.WorkflowTrace) error {
	if trace.TraceID == "" {
		return fmt.Errorf("trace ID cannot be empty")
	}

	now := time.Now()
	if trace.CreatedAt.IsZero() {
		trace.CreatedAt = now
	}
	trace.UpdatedAt = now

	err := s.db.Store().Insert(trace.TraceID, trace)
	if err == badgerhold.ErrKeyExists {
		return fmt.Errorf("trace %s already exists", trace.TraceID)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace: %w", err)
	}

	s.logger.Debug().Str("trace_id", trace.TraceID).Msg("Trace created")
	return nil
}

// Get returns the current trace document
func (s *TraceStorage) Get(ctx context.Context, traceID string) (*models.WorkflowTrace, error) {
	var trace models.WorkflowTrace
	err := s.db.Store().Get(traceID, &trace)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrTraceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}
	return &trace, nil
}

// Update applies fn to the stored trace under the per-trace lock and persists
// the result
func (s *TraceStorage) Update(ctx context.Context, traceID string, fn interfaces.TraceMutator) (*models.WorkflowTrace, error) {
	lock := s.traceLock(traceID)
	lock.Lock()
	defer lock.Unlock()

	trace, err := s.Get(ctx, traceID)
	if err != nil {
		return nil, err
	}

	if err := fn(trace); err != nil {
		return nil, err
	}

	trace.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(traceID, trace); err != nil {
		return nil, fmt.Errorf("failed to update trace: %w", err)
	}

	return trace, nil
}

// CheckAndSetUploadStarted atomically sets the YouTube upload latch
func (s *TraceStorage) CheckAndSetUploadStarted(ctx context.Context, traceID string) (bool, error) {
	acquired := false
	_, err := s.Update(ctx, traceID, func(trace *models.WorkflowTrace) error {
		if trace.UploadStarted {
			return nil
		}
		trace.UploadStarted = true
		acquired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// List returns all traces ordered by updated_at DESC
func (s *TraceStorage) List(ctx context.Context) ([]*models.WorkflowTrace, error) {
	var traces []*models.WorkflowTrace
	err := s.db.Store().Find(&traces, badgerhold.Where("TraceID").Ne("").SortBy("UpdatedAt").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}
	return traces, nil
}
