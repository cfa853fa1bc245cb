package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
	"github.com/ternarybob/tubecast/internal/services/state"
)

// topicMessages maps each error topic to the operator-facing summary line
// recorded alongside the raw stage error
var topicMessages = map[interfaces.EventType]string{
	interfaces.EventVideoUploadError:          "Video file upload to storage failed",
	interfaces.EventPromptsGenerationError:    "AI prompt generation failed",
	interfaces.EventThumbnailGenerationError:  "Thumbnail image generation failed",
	interfaces.EventFinalTitleGenerationError: "Final title generation failed",
	interfaces.EventYouTubeUploadError:        "YouTube upload failed",
	interfaces.EventEmailSendError:            "Confirmation email send failed",
	interfaces.EventPipelineError:             "Pipeline error",
}

// ErrorAggregator is the single subscriber on every error topic. It appends a
// structured entry to the trace's error history and flips the trace to the
// terminal failed status. It must never crash the bus, so it recovers from
// panics and swallows its own storage errors after logging them.
type ErrorAggregator struct {
	state  *state.Service
	logger arbor.ILogger
}

// NewErrorAggregator creates the error-topic subscriber
func NewErrorAggregator(stateService *state.Service, logger arbor.ILogger) *ErrorAggregator {
	return &ErrorAggregator{
		state:  stateService,
		logger: logger,
	}
}

// Handle records one stage failure against its trace
func (a *ErrorAggregator) Handle(ctx context.Context, event interfaces.Event) error {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Str("topic", string(event.Type)).Msg("Error aggregator panicked")
		}
	}()

	payload, ok := event.Payload.(interfaces.StageErrorPayload)
	if !ok {
		a.logger.Warn().
			Str("topic", string(event.Type)).
			Str("payload", fmt.Sprintf("%v", event.Payload)).
			Msg("Error event carried an unexpected payload, dropping")
		return nil
	}
	if payload.TraceID == "" {
		a.logger.Warn().Str("topic", string(event.Type)).Msg("Error event carried no trace ID, dropping")
		return nil
	}

	message, known := topicMessages[event.Type]
	if !known {
		message = "Unrecognized pipeline error"
	}

	details := payload.Details
	if details == "" {
		details = message
	}

	entry := models.ErrorLogEntry{
		TraceID:   payload.TraceID,
		Step:      payload.Step,
		Error:     payload.Err,
		Details:   details,
		Timestamp: time.Now(),
	}

	if err := a.state.AppendError(ctx, entry); err != nil {
		a.logger.Error().
			Err(err).
			Str("trace_id", payload.TraceID).
			Str("topic", string(event.Type)).
			Msg("Failed to record pipeline error against trace")
		return nil
	}

	a.logger.Warn().
		Str("trace_id", payload.TraceID).
		Str("step", payload.Step).
		Str("topic", string(event.Type)).
		Str("error", payload.Err).
		Msg("Pipeline error recorded, trace marked failed")
	return nil
}
