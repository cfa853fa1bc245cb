package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

const stepTitle = "title-generation"

// HandleTitleRequest reacts to prompts.generated, independently of the
// thumbnail stage. When metadata carries autoGenerateTitle=false and a
// non-empty title, the model is bypassed and the configured title passes
// through unchanged.
func (p *Pipeline) HandleTitleRequest(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(interfaces.TracePayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s: %T", event.Type, event.Payload)
	}
	tid := payload.TraceID

	trace, err := p.state.GetTrace(ctx, tid)
	if err != nil {
		return p.failStage(ctx, tid, stepTitle, interfaces.EventFinalTitleGenerationError,
			fmt.Errorf("failed to load trace: %w", err))
	}
	if trace.Metadata == nil {
		return p.failStage(ctx, tid, stepTitle, interfaces.EventFinalTitleGenerationError,
			fmt.Errorf("metadata missing from trace state"))
	}

	if !trace.Metadata.AutoGenerateTitle && trace.Metadata.Title != "" {
		title := &models.GeneratedTitle{Title: trace.Metadata.Title}
		if err := p.state.SetGeneratedTitle(ctx, tid, title, models.StatusTitleGenerated); err != nil {
			return p.failStage(ctx, tid, stepTitle, interfaces.EventFinalTitleGenerationError,
				fmt.Errorf("failed to record title: %w", err))
		}

		p.logger.Info().
			Str("trace_id", tid).
			Str("title", title.Title).
			Msg("Title generation bypassed, using configured title")

		return p.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventFinalTitleGenerated,
			Payload: interfaces.TitleGeneratedPayload{
				TraceID: tid,
				Title:   title.Title,
			},
		})
	}

	if trace.Prompts == nil || trace.Prompts.TitlePrompt == "" {
		return p.failStage(ctx, tid, stepTitle, interfaces.EventFinalTitleGenerationError,
			fmt.Errorf("title prompt missing from trace state"))
	}

	if err := p.state.SetStatus(ctx, tid, models.StatusGeneratingTitle); err != nil {
		return p.failStage(ctx, tid, stepTitle, interfaces.EventFinalTitleGenerationError,
			fmt.Errorf("failed to update status: %w", err))
	}

	generated, err := p.llm.GenerateTitle(ctx, trace.Prompts.TitlePrompt)
	if err != nil {
		return p.failStage(ctx, tid, stepTitle, interfaces.EventFinalTitleGenerationError, err)
	}

	title := &models.GeneratedTitle{Title: generated, AIGenerated: true}
	if err := p.state.SetGeneratedTitle(ctx, tid, title, models.StatusTitleGenerated); err != nil {
		return p.failStage(ctx, tid, stepTitle, interfaces.EventFinalTitleGenerationError,
			fmt.Errorf("failed to record title: %w", err))
	}

	p.logger.Info().
		Str("trace_id", tid).
		Str("title", generated).
		Msg("Final title generated")

	return p.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventFinalTitleGenerated,
		Payload: interfaces.TitleGeneratedPayload{
			TraceID: tid,
			Title:   generated,
		},
	})
}
