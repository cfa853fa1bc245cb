package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
	"github.com/ternarybob/tubecast/internal/services/state"
)

// Pipeline wires the stage handlers onto the event bus. Each stage is a pure
// reaction: it reads upstream fields from the trace, performs one external
// call, writes its own fields, and emits exactly one success or error topic.
// No stage retries and no stage resumes a failed trace.
type Pipeline struct {
	state     *state.Service
	objects   interfaces.ObjectStore
	llm       interfaces.LLMService
	publisher interfaces.VideoPublisher
	mailer    interfaces.MailService
	events    interfaces.EventService
	config    *common.Config
	logger    arbor.ILogger
}

// New creates the pipeline with its collaborators
func New(
	stateService *state.Service,
	objects interfaces.ObjectStore,
	llm interfaces.LLMService,
	publisher interfaces.VideoPublisher,
	mailer interfaces.MailService,
	events interfaces.EventService,
	config *common.Config,
	logger arbor.ILogger,
) *Pipeline {
	return &Pipeline{
		state:     stateService,
		objects:   objects,
		llm:       llm,
		publisher: publisher,
		mailer:    mailer,
		events:    events,
		config:    config,
		logger:    logger,
	}
}

// Register subscribes every stage handler and the error aggregator
func (p *Pipeline) Register() error {
	if err := p.events.Subscribe(interfaces.EventFileNewDetected, p.HandleFileDetected); err != nil {
		return fmt.Errorf("failed to subscribe ingest stage: %w", err)
	}
	if err := p.events.Subscribe(interfaces.EventVideoFileUploaded, p.HandleVideoUploaded); err != nil {
		return fmt.Errorf("failed to subscribe prompts stage: %w", err)
	}
	if err := p.events.Subscribe(interfaces.EventYouTubeUploadCompleted, p.HandleUploadCompleted); err != nil {
		return fmt.Errorf("failed to subscribe email stage: %w", err)
	}

	// prompts.generated fans out to two independent stages
	if err := p.events.Subscribe(interfaces.EventPromptsGenerated, p.HandleThumbnailRequest); err != nil {
		return fmt.Errorf("failed to subscribe thumbnail stage: %w", err)
	}
	if err := p.events.Subscribe(interfaces.EventPromptsGenerated, p.HandleTitleRequest); err != nil {
		return fmt.Errorf("failed to subscribe title stage: %w", err)
	}

	// the upload stage joins on both fan-out completions
	if err := p.events.Subscribe(interfaces.EventThumbnailImageGenerated, p.HandleYouTubeUpload); err != nil {
		return fmt.Errorf("failed to subscribe upload stage: %w", err)
	}
	if err := p.events.Subscribe(interfaces.EventFinalTitleGenerated, p.HandleYouTubeUpload); err != nil {
		return fmt.Errorf("failed to subscribe upload stage: %w", err)
	}

	aggregator := NewErrorAggregator(p.state, p.logger)
	for _, topic := range interfaces.ErrorTopics() {
		if err := p.events.Subscribe(topic, aggregator.Handle); err != nil {
			return fmt.Errorf("failed to subscribe error aggregator to %s: %w", topic, err)
		}
	}

	p.logger.Info().Msg("Pipeline stages registered")
	return nil
}

// traceID extracts the trace ID from any stage payload
func traceID(payload interface{}) string {
	switch p := payload.(type) {
	case interfaces.FileDetectedPayload:
		return p.TraceID
	case interfaces.TracePayload:
		return p.TraceID
	case interfaces.ThumbnailGeneratedPayload:
		return p.TraceID
	case interfaces.TitleGeneratedPayload:
		return p.TraceID
	case interfaces.UploadCompletedPayload:
		return p.TraceID
	case interfaces.StageErrorPayload:
		return p.TraceID
	default:
		return ""
	}
}

// failStage marks the trace with the stage-failure status and emits the
// stage's error topic. The aggregator flips the trace to the terminal failed
// status and records the structured history entry.
func (p *Pipeline) failStage(ctx context.Context, tid, step string, topic interfaces.EventType, cause error) error {
	p.logger.Error().
		Err(cause).
		Str("trace_id", tid).
		Str("step", step).
		Msg("Pipeline stage failed")

	failedStatus := models.TraceStatus(step + "-failed")
	if err := p.state.SetStatusError(ctx, tid, failedStatus, cause.Error()); err != nil {
		p.logger.Warn().Err(err).Str("trace_id", tid).Msg("Failed to record stage-failure status")
	}

	if err := p.events.Publish(ctx, interfaces.Event{
		Type: topic,
		Payload: interfaces.StageErrorPayload{
			TraceID: tid,
			Step:    step,
			Err:     cause.Error(),
		},
	}); err != nil {
		p.logger.Error().Err(err).Str("trace_id", tid).Msg("Failed to publish stage error event")
	}

	return cause
}
