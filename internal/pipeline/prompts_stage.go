package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

const stepPrompts = "prompts-generation"

// HandleVideoUploaded reacts to video.file.uploaded: it asks the model for
// structured publish metadata and prompts. Config-seeded metadata wins over
// generated values; generated values only fill blanks.
func (p *Pipeline) HandleVideoUploaded(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(interfaces.TracePayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s: %T", event.Type, event.Payload)
	}
	tid := payload.TraceID

	trace, err := p.state.GetTrace(ctx, tid)
	if err != nil {
		return p.failStage(ctx, tid, stepPrompts, interfaces.EventPromptsGenerationError,
			fmt.Errorf("failed to load trace: %w", err))
	}
	if trace.VideoData == nil {
		return p.failStage(ctx, tid, stepPrompts, interfaces.EventPromptsGenerationError,
			fmt.Errorf("videoData missing from trace state"))
	}

	generated, err := p.llm.GeneratePrompts(ctx, trace.VideoData.FileName)
	if err != nil {
		return p.failStage(ctx, tid, stepPrompts, interfaces.EventPromptsGenerationError, err)
	}

	meta := trace.Metadata
	if meta == nil {
		meta = &models.Metadata{}
	}
	if meta.Title == "" {
		meta.Title = generated.Title
	}
	if meta.Description == "" {
		meta.Description = generated.Description
	}
	if len(meta.Tags) == 0 {
		meta.Tags = generated.Tags
	}
	if err := p.state.SetMetadata(ctx, tid, meta); err != nil {
		return p.failStage(ctx, tid, stepPrompts, interfaces.EventPromptsGenerationError,
			fmt.Errorf("failed to store metadata: %w", err))
	}

	prompts := &models.Prompts{
		ThumbnailPrompt: generated.ThumbnailPrompt,
		TitlePrompt:     generated.TitlePrompt,
	}
	if err := p.state.SetPrompts(ctx, tid, prompts); err != nil {
		return p.failStage(ctx, tid, stepPrompts, interfaces.EventPromptsGenerationError,
			fmt.Errorf("failed to store prompts: %w", err))
	}

	p.logger.Info().
		Str("trace_id", tid).
		Str("title", meta.Title).
		Msg("Publish prompts generated")

	return p.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventPromptsGenerated,
		Payload: interfaces.TracePayload{TraceID: tid},
	})
}
