package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

const stepThumbnail = "thumbnail-generation"

// HandleThumbnailRequest reacts to prompts.generated: it generates a
// thumbnail image and stores it. A model response without image data is not a
// failure; the stage stores a placeholder and still emits success so the
// upload join can proceed without a custom thumbnail.
func (p *Pipeline) HandleThumbnailRequest(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(interfaces.TracePayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s: %T", event.Type, event.Payload)
	}
	tid := payload.TraceID

	trace, err := p.state.GetTrace(ctx, tid)
	if err != nil {
		return p.failStage(ctx, tid, stepThumbnail, interfaces.EventThumbnailGenerationError,
			fmt.Errorf("failed to load trace: %w", err))
	}
	if trace.Prompts == nil || trace.Prompts.ThumbnailPrompt == "" {
		return p.failStage(ctx, tid, stepThumbnail, interfaces.EventThumbnailGenerationError,
			fmt.Errorf("thumbnail prompt missing from trace state"))
	}

	if err := p.state.SetStatus(ctx, tid, models.StatusGeneratingThumbnail); err != nil {
		return p.failStage(ctx, tid, stepThumbnail, interfaces.EventThumbnailGenerationError,
			fmt.Errorf("failed to update status: %w", err))
	}

	imageData, err := p.llm.GenerateThumbnail(ctx, trace.Prompts.ThumbnailPrompt)
	if err != nil {
		return p.failStage(ctx, tid, stepThumbnail, interfaces.EventThumbnailGenerationError, err)
	}

	thumb := &models.Thumbnail{}
	hasImage := len(imageData) > 0

	if hasImage {
		key := "thumbnails/" + common.NewArtifactName("thumb", "png")
		storageKey, err := p.objects.SaveBuffer(ctx, key, imageData)
		if err != nil {
			return p.failStage(ctx, tid, stepThumbnail, interfaces.EventThumbnailGenerationError,
				fmt.Errorf("failed to store thumbnail: %w", err))
		}
		thumb.StorageKey = storageKey
	} else {
		thumb.IsPlaceholder = true
		p.logger.Warn().Str("trace_id", tid).Msg("No image data returned, storing placeholder thumbnail")
	}

	if err := p.state.SetThumbnail(ctx, tid, thumb, models.StatusThumbnailGenerated); err != nil {
		return p.failStage(ctx, tid, stepThumbnail, interfaces.EventThumbnailGenerationError,
			fmt.Errorf("failed to record thumbnail: %w", err))
	}

	p.logger.Info().
		Str("trace_id", tid).
		Bool("has_image", hasImage).
		Msg("Thumbnail stage completed")

	return p.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventThumbnailImageGenerated,
		Payload: interfaces.ThumbnailGeneratedPayload{
			TraceID:  tid,
			HasImage: hasImage,
		},
	})
}
