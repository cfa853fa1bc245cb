package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

const stepYouTube = "youtube-upload"

// HandleYouTubeUpload is the fan-in stage: it is subscribed to both the
// thumbnail and title completion topics and re-reads trace state on every
// invocation. It proceeds only when all prerequisite fields are present, and
// the per-trace uploadStarted latch guarantees the video is uploaded at most
// once even when both completions arrive concurrently.
func (p *Pipeline) HandleYouTubeUpload(ctx context.Context, event interfaces.Event) error {
	tid := traceID(event.Payload)
	if tid == "" {
		return fmt.Errorf("unexpected payload for %s: %T", event.Type, event.Payload)
	}

	trace, err := p.state.GetTrace(ctx, tid)
	if err != nil {
		return p.failStage(ctx, tid, stepYouTube, interfaces.EventYouTubeUploadError,
			fmt.Errorf("failed to load trace: %w", err))
	}

	if trace.Status.Status == models.StatusFailed {
		p.logger.Debug().Str("trace_id", tid).Msg("Trace already failed, skipping upload")
		return nil
	}

	// Waiting on the sibling fan-out branch is not an error; the other
	// completion event will invoke this handler again.
	if trace.VideoData == nil || trace.Thumbnail == nil || trace.GeneratedTitle == nil {
		p.logger.Debug().
			Str("trace_id", tid).
			Bool("has_video", trace.VideoData != nil).
			Bool("has_thumbnail", trace.Thumbnail != nil).
			Bool("has_title", trace.GeneratedTitle != nil).
			Msg("Upload prerequisites incomplete, awaiting sibling stage")
		return nil
	}

	acquired, err := p.state.BeginYouTubeUpload(ctx, tid)
	if err != nil {
		return p.failStage(ctx, tid, stepYouTube, interfaces.EventYouTubeUploadError,
			fmt.Errorf("failed to acquire upload latch: %w", err))
	}
	if !acquired {
		p.logger.Debug().Str("trace_id", tid).Msg("Upload already started by sibling invocation, skipping")
		return nil
	}

	if err := p.state.SetStatus(ctx, tid, models.StatusUploadingToYouTube); err != nil {
		return p.failStage(ctx, tid, stepYouTube, interfaces.EventYouTubeUploadError,
			fmt.Errorf("failed to update status: %w", err))
	}

	video, err := p.objects.GetStream(ctx, trace.VideoData.StorageKey)
	if err != nil {
		return p.failStage(ctx, tid, stepYouTube, interfaces.EventYouTubeUploadError,
			fmt.Errorf("failed to open stored video: %w", err))
	}
	defer video.Close()

	var thumbnail io.ReadCloser
	if !trace.Thumbnail.IsPlaceholder && trace.Thumbnail.StorageKey != "" {
		thumbnail, err = p.objects.GetStream(ctx, trace.Thumbnail.StorageKey)
		if err != nil {
			// Upload without the custom thumbnail rather than dropping the run
			p.logger.Warn().Err(err).Str("trace_id", tid).Msg("Failed to open stored thumbnail")
			thumbnail = nil
		} else {
			defer thumbnail.Close()
		}
	}

	req := &interfaces.PublishRequest{
		Title:      trace.GeneratedTitle.Title,
		Video:      video,
		CategoryID: p.config.YouTube.CategoryID,
		Privacy:    p.config.YouTube.Privacy,
	}
	if trace.Metadata != nil {
		req.Description = trace.Metadata.Description
		req.Tags = trace.Metadata.Tags
		if trace.Metadata.CategoryID != "" {
			req.CategoryID = trace.Metadata.CategoryID
		}
		if trace.Metadata.Privacy != "" {
			req.Privacy = trace.Metadata.Privacy
		}
	}
	if thumbnail != nil {
		req.Thumbnail = thumbnail
	}

	result, err := p.publisher.Publish(ctx, req)
	if err != nil {
		return p.failStage(ctx, tid, stepYouTube, interfaces.EventYouTubeUploadError, err)
	}

	if err := p.state.SetUploadResult(ctx, tid, result); err != nil {
		return p.failStage(ctx, tid, stepYouTube, interfaces.EventYouTubeUploadError,
			fmt.Errorf("failed to record upload result: %w", err))
	}

	p.logger.Info().
		Str("trace_id", tid).
		Str("video_id", result.VideoID).
		Msg("Pipeline completed, video published")

	return p.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventYouTubeUploadCompleted,
		Payload: interfaces.UploadCompletedPayload{
			TraceID:  tid,
			VideoID:  result.VideoID,
			VideoURL: result.VideoURL,
		},
	})
}
