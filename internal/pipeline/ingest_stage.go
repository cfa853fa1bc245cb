package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

const stepIngest = "video-upload"

// HandleFileDetected reacts to file.new.detected: it creates the workflow
// trace, streams the discovered file into the object store, seeds the publish
// metadata defaults from configuration, and hands off to the prompts stage.
func (p *Pipeline) HandleFileDetected(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(interfaces.FileDetectedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s: %T", event.Type, event.Payload)
	}
	tid := payload.TraceID

	if _, err := p.state.CreateTrace(ctx, tid, models.StatusUploading); err != nil {
		return p.failStage(ctx, tid, stepIngest, interfaces.EventVideoUploadError,
			fmt.Errorf("failed to create trace: %w", err))
	}

	f, err := os.Open(payload.FilePath)
	if err != nil {
		return p.failStage(ctx, tid, stepIngest, interfaces.EventVideoUploadError,
			fmt.Errorf("failed to open source file: %w", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return p.failStage(ctx, tid, stepIngest, interfaces.EventVideoUploadError,
			fmt.Errorf("failed to stat source file: %w", err))
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(payload.FileName)), ".")
	if ext == "" {
		ext = "mp4"
	}
	key := "videos/" + common.NewArtifactName("video", ext)

	storageKey, err := p.objects.SaveStream(ctx, key, f)
	if err != nil {
		return p.failStage(ctx, tid, stepIngest, interfaces.EventVideoUploadError,
			fmt.Errorf("failed to store video: %w", err))
	}

	videoData := &models.VideoData{
		FileName:   payload.FileName,
		StorageKey: storageKey,
		Size:       info.Size(),
		PublicURL:  p.objects.PublicURL(storageKey),
	}
	if err := p.state.SetVideoData(ctx, tid, videoData); err != nil {
		return p.failStage(ctx, tid, stepIngest, interfaces.EventVideoUploadError,
			fmt.Errorf("failed to record video data: %w", err))
	}

	meta := &models.Metadata{
		Title:             p.config.YouTube.DefaultTitle,
		Tags:              p.config.YouTube.DefaultTags,
		CategoryID:        p.config.YouTube.CategoryID,
		Privacy:           p.config.YouTube.Privacy,
		AutoGenerateTitle: p.config.YouTube.AutoGenerateTitle,
	}
	if err := p.state.SetMetadata(ctx, tid, meta); err != nil {
		return p.failStage(ctx, tid, stepIngest, interfaces.EventVideoUploadError,
			fmt.Errorf("failed to seed metadata: %w", err))
	}

	p.logger.Info().
		Str("trace_id", tid).
		Str("storage_key", storageKey).
		Int64("size", info.Size()).
		Msg("Video ingested")

	return p.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventVideoFileUploaded,
		Payload: interfaces.TracePayload{TraceID: tid},
	})
}
