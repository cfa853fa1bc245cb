package state

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

// Service is the typed access layer over per-trace workflow state. Every field
// write goes through the trace store's per-trace critical section, and the
// failed status is absorbing: a trace that failed never transitions back to a
// progress status.
type Service struct {
	traces interfaces.TraceStorage
	logger arbor.ILogger
}

// NewService creates a new trace state service
func NewService(traces interfaces.TraceStorage, logger arbor.ILogger) *Service {
	return &Service{
		traces: traces,
		logger: logger,
	}
}

// CreateTrace starts a new workflow trace with an initial status
func (s *Service) CreateTrace(ctx context.Context, traceID string, status models.TraceStatus) (*models.WorkflowTrace, error) {
	if traceID == "" {
		traceID = common.NewTraceID()
	}

	trace := &models.WorkflowTrace{
		TraceID: traceID,
		Status: models.StatusRecord{
			Status:    status,
			UpdatedAt: time.Now(),
		},
	}

	if err := s.traces.Create(ctx, trace); err != nil {
		return nil, err
	}

	s.logger.Info().Str("trace_id", traceID).Str("status", string(status)).Msg("Workflow trace created")
	return trace, nil
}

// GetTrace returns the current trace document
func (s *Service) GetTrace(ctx context.Context, traceID string) (*models.WorkflowTrace, error) {
	return s.traces.Get(ctx, traceID)
}

// ListTraces returns all traces, most recently updated first
func (s *Service) ListTraces(ctx context.Context) ([]*models.WorkflowTrace, error) {
	return s.traces.List(ctx)
}

// setStatus writes the status record in-place. Failed is absorbing.
func setStatus(trace *models.WorkflowTrace, status models.TraceStatus, errMsg string) {
	if trace.Status.Status == models.StatusFailed && status != models.StatusFailed {
		return
	}
	trace.Status = models.StatusRecord{
		Status:    status,
		UpdatedAt: time.Now(),
		Error:     errMsg,
	}
}

// SetStatus transitions the trace status
func (s *Service) SetStatus(ctx context.Context, traceID string, status models.TraceStatus) error {
	_, err := s.traces.Update(ctx, traceID, func(trace *models.WorkflowTrace) error {
		setStatus(trace, status, "")
		return nil
	})
	return err
}

// SetStatusError transitions the trace status carrying an error message
// (used for the per-stage "<stage>-failed" statuses)
func (s *Service) SetStatusError(ctx context.Context, traceID string, status models.TraceStatus, errMsg string) error {
	_, err := s.traces.Update(ctx, traceID, func(trace *models.WorkflowTrace) error {
		setStatus(trace, status, errMsg)
		return nil
	})
	return err
}

// SetVideoData records the ingested video
func (s *Service) SetVideoData(ctx context.Context, traceID string, data *models.VideoData) error {
	_, err := s.traces.Update(ctx, traceID, func(trace *models.WorkflowTrace) error {
		trace.VideoData = data
		return nil
	})
	return err
}

// SetMetadata writes the publish metadata field
func (s *Service) SetMetadata(ctx context.Context, traceID string, meta *models.Metadata) error {
	_, err := s.traces.Update(ctx, traceID, func(trace *models.WorkflowTrace) error {
		trace.Metadata = meta
		return nil
	})
	return err
}

// SetPrompts writes the generated prompts field
func (s *Service) SetPrompts(ctx context.Context, traceID string, prompts *models.Prompts) error {
	_, err := s.traces.Update(ctx, traceID, func(trace *models.WorkflowTrace) error {
		trace.Prompts = prompts
		return nil
	})
	return err
}

// SetThumbnail writes the thumbnail field and advances the status
func (s *Service) SetThumbnail(ctx context.Context, traceID string, thumb *models.Thumbnail, status models.TraceStatus) error {
	_, err := s.traces.Update(ctx, traceID, func(trace *models.WorkflowTrace) error {
		trace.Thumbnail = thumb
		setStatus(trace, status, "")
		return nil
	})
	return err
}

// SetGeneratedTitle writes the final title field and advances the status
func (s *Service) SetGeneratedTitle(ctx context.Context, traceID string, title *models.GeneratedTitle, status models.TraceStatus) error {
	_, err := s.traces.Update(ctx, traceID, func(trace *models.WorkflowTrace) error {
		trace.GeneratedTitle = title
		setStatus(trace, status, "")
		return nil
	})
	return err
}

// SetUploadResult records the YouTube result and completes the trace
func (s *Service) SetUploadResult(ctx context.Context, traceID string, result *models.UploadResult) error {
	_, err := s.traces.Update(ctx, traceID, func(trace *models.WorkflowTrace) error {
		trace.UploadResult = result
		setStatus(trace, models.StatusCompleted, "")
		return nil
	})
	return err
}

// SetEmailNotification records the confirmation email
func (s *Service) SetEmailNotification(ctx context.Context, traceID string, note *models.EmailNotification) error {
	_, err := s.traces.Update(ctx, traceID, func(trace *models.WorkflowTrace) error {
		trace.EmailNotification = note
		return nil
	})
	return err
}

// BeginYouTubeUpload atomically acquires the per-trace upload latch. Returns
// true exactly once; the fan-in invocation that loses the race gets false.
func (s *Service) BeginYouTubeUpload(ctx context.Context, traceID string) (bool, error) {
	return s.traces.CheckAndSetUploadStarted(ctx, traceID)
}

// AppendError appends a structured entry to the trace's error history, flips
// the status to failed, and recomputes the error summary. Absence of a prior
// history is treated as an empty list.
func (s *Service) AppendError(ctx context.Context, entry models.ErrorLogEntry) error {
	if entry.TraceID == "" {
		return fmt.Errorf("error entry requires a trace ID")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	_, err := s.traces.Update(ctx, entry.TraceID, func(trace *models.WorkflowTrace) error {
		trace.Errors = append(trace.Errors, entry)
		trace.Status = models.StatusRecord{
			Status:    models.StatusFailed,
			UpdatedAt: time.Now(),
			Error:     entry.Error,
		}
		trace.ErrorSummary = &models.ErrorSummary{
			TotalErrors: len(trace.Errors),
			LastError:   entry.Error,
			FailedAt:    entry.Timestamp,
		}
		return nil
	})
	return err
}
