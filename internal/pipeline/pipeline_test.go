package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

func TestHandleFileDetected_IngestsVideo(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "episode-1.mp4")
	require.NoError(t, os.WriteFile(path, []byte("raw video"), 0644))

	err := tp.pipeline.HandleFileDetected(ctx, interfaces.Event{
		Type: interfaces.EventFileNewDetected,
		Payload: interfaces.FileDetectedPayload{
			TraceID:  "trace_ingest",
			FilePath: path,
			FileName: "episode-1.mp4",
		},
	})
	require.NoError(t, err)

	trace, err := tp.state.GetTrace(ctx, "trace_ingest")
	require.NoError(t, err)
	require.NotNil(t, trace.VideoData)
	assert.Equal(t, "episode-1.mp4", trace.VideoData.FileName)
	assert.Equal(t, int64(len("raw video")), trace.VideoData.Size)
	assert.Contains(t, trace.VideoData.StorageKey, "videos/")
	assert.Contains(t, trace.VideoData.StorageKey, ".mp4")

	// Metadata seeded from config defaults
	require.NotNil(t, trace.Metadata)
	assert.Equal(t, "private", trace.Metadata.Privacy)
	assert.Equal(t, "22", trace.Metadata.CategoryID)
	assert.True(t, trace.Metadata.AutoGenerateTitle)

	// Video bytes landed in the object store
	rc, err := tp.objects.GetStream(ctx, trace.VideoData.StorageKey)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "raw video", string(data))

	handoffs := tp.events.eventsOf(interfaces.EventVideoFileUploaded)
	require.Len(t, handoffs, 1)
	assert.Equal(t, interfaces.TracePayload{TraceID: "trace_ingest"}, handoffs[0].Payload)
}

func TestHandleFileDetected_MissingFileFails(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()

	err := tp.pipeline.HandleFileDetected(ctx, interfaces.Event{
		Type: interfaces.EventFileNewDetected,
		Payload: interfaces.FileDetectedPayload{
			TraceID:  "trace_missing",
			FilePath: "/nonexistent/file.mp4",
			FileName: "file.mp4",
		},
	})
	require.Error(t, err)

	trace, err := tp.state.GetTrace(ctx, "trace_missing")
	require.NoError(t, err)
	assert.Equal(t, models.TraceStatus("video-upload-failed"), trace.Status.Status)
	assert.NotEmpty(t, trace.Status.Error)

	errorEvents := tp.events.eventsOf(interfaces.EventVideoUploadError)
	require.Len(t, errorEvents, 1)
	payload, ok := errorEvents[0].Payload.(interfaces.StageErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "video-upload", payload.Step)

	assert.Empty(t, tp.events.eventsOf(interfaces.EventVideoFileUploaded))
}

func TestHandleVideoUploaded_SeededMetadataWins(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()

	_, err := tp.state.CreateTrace(ctx, "trace_prompts", models.StatusUploading)
	require.NoError(t, err)
	require.NoError(t, tp.state.SetVideoData(ctx, "trace_prompts", &models.VideoData{FileName: "clip.mp4"}))
	require.NoError(t, tp.state.SetMetadata(ctx, "trace_prompts", &models.Metadata{
		Title:             "My Video",
		AutoGenerateTitle: false,
	}))

	err = tp.pipeline.HandleVideoUploaded(ctx, interfaces.Event{
		Type:    interfaces.EventVideoFileUploaded,
		Payload: interfaces.TracePayload{TraceID: "trace_prompts"},
	})
	require.NoError(t, err)

	trace, err := tp.state.GetTrace(ctx, "trace_prompts")
	require.NoError(t, err)

	// Seeded title survives; generated values only fill blanks
	assert.Equal(t, "My Video", trace.Metadata.Title)
	assert.Equal(t, "Generated description", trace.Metadata.Description)
	assert.Equal(t, []string{"generated"}, trace.Metadata.Tags)

	require.NotNil(t, trace.Prompts)
	assert.Equal(t, "a bold thumbnail", trace.Prompts.ThumbnailPrompt)
	assert.Equal(t, "a catchy title", trace.Prompts.TitlePrompt)

	assert.Len(t, tp.events.eventsOf(interfaces.EventPromptsGenerated), 1)
}

func TestHandleVideoUploaded_LLMFailure(t *testing.T) {
	tp := newTestPipeline()
	tp.llm.promptsErr = fmt.Errorf("model unavailable")
	ctx := context.Background()

	_, err := tp.state.CreateTrace(ctx, "trace_llmfail", models.StatusUploading)
	require.NoError(t, err)
	require.NoError(t, tp.state.SetVideoData(ctx, "trace_llmfail", &models.VideoData{FileName: "clip.mp4"}))

	err = tp.pipeline.HandleVideoUploaded(ctx, interfaces.Event{
		Type:    interfaces.EventVideoFileUploaded,
		Payload: interfaces.TracePayload{TraceID: "trace_llmfail"},
	})
	require.Error(t, err)

	trace, err := tp.state.GetTrace(ctx, "trace_llmfail")
	require.NoError(t, err)
	assert.Equal(t, models.TraceStatus("prompts-generation-failed"), trace.Status.Status)
	assert.Len(t, tp.events.eventsOf(interfaces.EventPromptsGenerationError), 1)
}

func seedThroughPrompts(t *testing.T, tp *testPipeline, tid string) {
	t.Helper()
	ctx := context.Background()

	_, err := tp.state.CreateTrace(ctx, tid, models.StatusUploading)
	require.NoError(t, err)
	require.NoError(t, tp.state.SetVideoData(ctx, tid, &models.VideoData{
		FileName:   "clip.mp4",
		StorageKey: "videos/clip.mp4",
	}))
	_, err = tp.objects.SaveBuffer(ctx, "videos/clip.mp4", []byte("video"))
	require.NoError(t, err)
	require.NoError(t, tp.state.SetMetadata(ctx, tid, &models.Metadata{
		Privacy:           "private",
		CategoryID:        "22",
		AutoGenerateTitle: true,
	}))
	require.NoError(t, tp.state.SetPrompts(ctx, tid, &models.Prompts{
		ThumbnailPrompt: "a bold thumbnail",
		TitlePrompt:     "a catchy title",
	}))
}

func TestHandleThumbnailRequest_StoresImage(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()
	seedThroughPrompts(t, tp, "trace_thumb")

	err := tp.pipeline.HandleThumbnailRequest(ctx, interfaces.Event{
		Type:    interfaces.EventPromptsGenerated,
		Payload: interfaces.TracePayload{TraceID: "trace_thumb"},
	})
	require.NoError(t, err)

	trace, err := tp.state.GetTrace(ctx, "trace_thumb")
	require.NoError(t, err)
	require.NotNil(t, trace.Thumbnail)
	assert.False(t, trace.Thumbnail.IsPlaceholder)
	assert.Contains(t, trace.Thumbnail.StorageKey, "thumbnails/")
	assert.Equal(t, models.StatusThumbnailGenerated, trace.Status.Status)

	done := tp.events.eventsOf(interfaces.EventThumbnailImageGenerated)
	require.Len(t, done, 1)
	payload, ok := done[0].Payload.(interfaces.ThumbnailGeneratedPayload)
	require.True(t, ok)
	assert.True(t, payload.HasImage)
}

func TestHandleThumbnailRequest_PlaceholderWhenNoImage(t *testing.T) {
	tp := newTestPipeline()
	tp.llm.thumbnail = nil
	ctx := context.Background()
	seedThroughPrompts(t, tp, "trace_placeholder")

	err := tp.pipeline.HandleThumbnailRequest(ctx, interfaces.Event{
		Type:    interfaces.EventPromptsGenerated,
		Payload: interfaces.TracePayload{TraceID: "trace_placeholder"},
	})
	require.NoError(t, err)

	trace, err := tp.state.GetTrace(ctx, "trace_placeholder")
	require.NoError(t, err)
	require.NotNil(t, trace.Thumbnail)
	assert.True(t, trace.Thumbnail.IsPlaceholder)
	assert.Empty(t, trace.Thumbnail.StorageKey)
	assert.Equal(t, models.StatusThumbnailGenerated, trace.Status.Status)

	done := tp.events.eventsOf(interfaces.EventThumbnailImageGenerated)
	require.Len(t, done, 1)
	payload := done[0].Payload.(interfaces.ThumbnailGeneratedPayload)
	assert.False(t, payload.HasImage)
	assert.Empty(t, tp.events.eventsOf(interfaces.EventThumbnailGenerationError))
}

func TestHandleTitleRequest_BypassUsesConfiguredTitle(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()
	seedThroughPrompts(t, tp, "trace_bypass")
	require.NoError(t, tp.state.SetMetadata(ctx, "trace_bypass", &models.Metadata{
		Title:             "My Video",
		AutoGenerateTitle: false,
	}))

	err := tp.pipeline.HandleTitleRequest(ctx, interfaces.Event{
		Type:    interfaces.EventPromptsGenerated,
		Payload: interfaces.TracePayload{TraceID: "trace_bypass"},
	})
	require.NoError(t, err)

	trace, err := tp.state.GetTrace(ctx, "trace_bypass")
	require.NoError(t, err)
	require.NotNil(t, trace.GeneratedTitle)
	assert.Equal(t, "My Video", trace.GeneratedTitle.Title)
	assert.False(t, trace.GeneratedTitle.AIGenerated)
	assert.Equal(t, models.StatusTitleGenerated, trace.Status.Status)
	assert.Zero(t, tp.llm.titleCalls, "model must not be invoked on the bypass path")

	done := tp.events.eventsOf(interfaces.EventFinalTitleGenerated)
	require.Len(t, done, 1)
	payload := done[0].Payload.(interfaces.TitleGeneratedPayload)
	assert.Equal(t, "My Video", payload.Title)
}

func TestHandleTitleRequest_GeneratesTitle(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()
	seedThroughPrompts(t, tp, "trace_title")

	err := tp.pipeline.HandleTitleRequest(ctx, interfaces.Event{
		Type:    interfaces.EventPromptsGenerated,
		Payload: interfaces.TracePayload{TraceID: "trace_title"},
	})
	require.NoError(t, err)

	trace, err := tp.state.GetTrace(ctx, "trace_title")
	require.NoError(t, err)
	require.NotNil(t, trace.GeneratedTitle)
	assert.Equal(t, "AI Title", trace.GeneratedTitle.Title)
	assert.True(t, trace.GeneratedTitle.AIGenerated)
	assert.Equal(t, 1, tp.llm.titleCalls)
	assert.Equal(t, models.StatusTitleGenerated, trace.Status.Status)
}

// seedReadyForUpload prepares a trace with all three upload prerequisites
func seedReadyForUpload(t *testing.T, tp *testPipeline, tid string, placeholderThumb bool) {
	t.Helper()
	ctx := context.Background()
	seedThroughPrompts(t, tp, tid)

	thumb := &models.Thumbnail{IsPlaceholder: placeholderThumb}
	if !placeholderThumb {
		thumb.StorageKey = "thumbnails/thumb.png"
		_, err := tp.objects.SaveBuffer(ctx, "thumbnails/thumb.png", []byte("png"))
		require.NoError(t, err)
	}
	require.NoError(t, tp.state.SetThumbnail(ctx, tid, thumb, models.StatusThumbnailGenerated))
	require.NoError(t, tp.state.SetGeneratedTitle(ctx, tid, &models.GeneratedTitle{
		Title:       "Final Title",
		AIGenerated: true,
	}, models.StatusTitleGenerated))
}

func TestHandleYouTubeUpload_WaitsForSiblingStage(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()
	seedThroughPrompts(t, tp, "trace_wait")
	// Thumbnail present, title still pending
	require.NoError(t, tp.state.SetThumbnail(ctx, "trace_wait", &models.Thumbnail{IsPlaceholder: true}, models.StatusThumbnailGenerated))

	err := tp.pipeline.HandleYouTubeUpload(ctx, interfaces.Event{
		Type:    interfaces.EventThumbnailImageGenerated,
		Payload: interfaces.ThumbnailGeneratedPayload{TraceID: "trace_wait"},
	})
	require.NoError(t, err)

	assert.Zero(t, tp.publisher.callCount())
	assert.Empty(t, tp.events.eventsOf(interfaces.EventYouTubeUploadCompleted))
	assert.Empty(t, tp.events.eventsOf(interfaces.EventYouTubeUploadError))
}

func TestHandleYouTubeUpload_PublishesAndCompletes(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()
	seedReadyForUpload(t, tp, "trace_upload", false)

	err := tp.pipeline.HandleYouTubeUpload(ctx, interfaces.Event{
		Type:    interfaces.EventFinalTitleGenerated,
		Payload: interfaces.TitleGeneratedPayload{TraceID: "trace_upload", Title: "Final Title"},
	})
	require.NoError(t, err)

	require.Equal(t, 1, tp.publisher.callCount())
	req := tp.publisher.requests[0]
	assert.Equal(t, "Final Title", req.Title)
	assert.Equal(t, "private", req.Privacy)
	assert.NotNil(t, req.Thumbnail)

	trace, err := tp.state.GetTrace(ctx, "trace_upload")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, trace.Status.Status)
	require.NotNil(t, trace.UploadResult)
	assert.Equal(t, "yt123", trace.UploadResult.VideoID)

	done := tp.events.eventsOf(interfaces.EventYouTubeUploadCompleted)
	require.Len(t, done, 1)
	payload := done[0].Payload.(interfaces.UploadCompletedPayload)
	assert.Equal(t, "yt123", payload.VideoID)
}

func TestHandleYouTubeUpload_PlaceholderSkipsThumbnail(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()
	seedReadyForUpload(t, tp, "trace_nothumb", true)

	err := tp.pipeline.HandleYouTubeUpload(ctx, interfaces.Event{
		Type:    interfaces.EventFinalTitleGenerated,
		Payload: interfaces.TitleGeneratedPayload{TraceID: "trace_nothumb"},
	})
	require.NoError(t, err)

	require.Equal(t, 1, tp.publisher.callCount())
	assert.Nil(t, tp.publisher.requests[0].Thumbnail)
}

func TestHandleYouTubeUpload_ConcurrentInvocationsUploadOnce(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()
	seedReadyForUpload(t, tp, "trace_race", false)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := tp.pipeline.HandleYouTubeUpload(ctx, interfaces.Event{
				Type:    interfaces.EventFinalTitleGenerated,
				Payload: interfaces.TitleGeneratedPayload{TraceID: "trace_race"},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, tp.publisher.callCount(), "fan-in invocations must upload at most once")
	assert.Len(t, tp.events.eventsOf(interfaces.EventYouTubeUploadCompleted), 1)
}

func TestHandleYouTubeUpload_PublishFailure(t *testing.T) {
	tp := newTestPipeline()
	tp.publisher.err = fmt.Errorf("quota exceeded")
	ctx := context.Background()
	seedReadyForUpload(t, tp, "trace_uploadfail", false)

	err := tp.pipeline.HandleYouTubeUpload(ctx, interfaces.Event{
		Type:    interfaces.EventFinalTitleGenerated,
		Payload: interfaces.TitleGeneratedPayload{TraceID: "trace_uploadfail"},
	})
	require.Error(t, err)

	trace, err := tp.state.GetTrace(ctx, "trace_uploadfail")
	require.NoError(t, err)
	assert.Equal(t, models.TraceStatus("youtube-upload-failed"), trace.Status.Status)

	errorEvents := tp.events.eventsOf(interfaces.EventYouTubeUploadError)
	require.Len(t, errorEvents, 1)
	payload := errorEvents[0].Payload.(interfaces.StageErrorPayload)
	assert.Equal(t, "youtube-upload", payload.Step)
	assert.Contains(t, payload.Err, "quota exceeded")
}

func TestHandleUploadCompleted_SendsEmail(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()
	seedReadyForUpload(t, tp, "trace_mail", false)
	require.NoError(t, tp.state.SetUploadResult(ctx, "trace_mail", &models.UploadResult{
		VideoID:  "yt123",
		VideoURL: "https://youtu.be/yt123",
	}))

	err := tp.pipeline.HandleUploadCompleted(ctx, interfaces.Event{
		Type: interfaces.EventYouTubeUploadCompleted,
		Payload: interfaces.UploadCompletedPayload{
			TraceID:  "trace_mail",
			VideoID:  "yt123",
			VideoURL: "https://youtu.be/yt123",
		},
	})
	require.NoError(t, err)

	require.Len(t, tp.mailer.sent, 1)
	assert.Equal(t, "creator@example.com", tp.mailer.sent[0].to)
	assert.Contains(t, tp.mailer.sent[0].subject, "Final Title")
	assert.Contains(t, tp.mailer.sent[0].htmlBody, "https://youtu.be/yt123")

	trace, err := tp.state.GetTrace(ctx, "trace_mail")
	require.NoError(t, err)
	require.NotNil(t, trace.EmailNotification)
	assert.Equal(t, "creator@example.com", trace.EmailNotification.SentTo)
	assert.False(t, trace.EmailNotification.SentAt.IsZero())

	assert.Len(t, tp.events.eventsOf(interfaces.EventNotificationEmailSent), 1)
}

func TestHandleUploadCompleted_SkipsWhenUnconfigured(t *testing.T) {
	tp := newTestPipeline()
	tp.mailer.configured = false
	ctx := context.Background()
	seedReadyForUpload(t, tp, "trace_nomail", false)

	err := tp.pipeline.HandleUploadCompleted(ctx, interfaces.Event{
		Type:    interfaces.EventYouTubeUploadCompleted,
		Payload: interfaces.UploadCompletedPayload{TraceID: "trace_nomail"},
	})
	require.NoError(t, err)

	assert.Empty(t, tp.mailer.sent)
	assert.Empty(t, tp.events.eventsOf(interfaces.EventNotificationEmailSent))
	assert.Empty(t, tp.events.eventsOf(interfaces.EventEmailSendError))
}

func TestHandleUploadCompleted_SendFailure(t *testing.T) {
	tp := newTestPipeline()
	tp.mailer.sendErr = fmt.Errorf("smtp connection refused")
	ctx := context.Background()
	seedReadyForUpload(t, tp, "trace_mailfail", false)

	err := tp.pipeline.HandleUploadCompleted(ctx, interfaces.Event{
		Type:    interfaces.EventYouTubeUploadCompleted,
		Payload: interfaces.UploadCompletedPayload{TraceID: "trace_mailfail"},
	})
	require.Error(t, err)

	errorEvents := tp.events.eventsOf(interfaces.EventEmailSendError)
	require.Len(t, errorEvents, 1)
	payload := errorEvents[0].Payload.(interfaces.StageErrorPayload)
	assert.Equal(t, "email-send", payload.Step)
}

func TestErrorAggregator_RecordsHistoryAndFailsTrace(t *testing.T) {
	tp := newTestPipeline()
	ctx := context.Background()
	seedThroughPrompts(t, tp, "trace_agg")

	aggregator := NewErrorAggregator(tp.state, tp.pipeline.logger)

	require.NoError(t, aggregator.Handle(ctx, interfaces.Event{
		Type: interfaces.EventThumbnailGenerationError,
		Payload: interfaces.StageErrorPayload{
			TraceID: "trace_agg",
			Step:    "thumbnail-generation",
			Err:     "image model timeout",
		},
	}))
	require.NoError(t, aggregator.Handle(ctx, interfaces.Event{
		Type: interfaces.EventPipelineError,
		Payload: interfaces.StageErrorPayload{
			TraceID: "trace_agg",
			Step:    "pipeline",
			Err:     "trace stalled",
		},
	}))

	trace, err := tp.state.GetTrace(ctx, "trace_agg")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, trace.Status.Status)
	require.Len(t, trace.Errors, 2)
	assert.Equal(t, "thumbnail-generation", trace.Errors[0].Step)
	assert.Equal(t, "Thumbnail image generation failed", trace.Errors[0].Details)

	require.NotNil(t, trace.ErrorSummary)
	assert.Equal(t, len(trace.Errors), trace.ErrorSummary.TotalErrors)
	assert.Equal(t, "trace stalled", trace.ErrorSummary.LastError)
}

func TestErrorAggregator_DropsMalformedPayload(t *testing.T) {
	tp := newTestPipeline()
	aggregator := NewErrorAggregator(tp.state, tp.pipeline.logger)

	assert.NoError(t, aggregator.Handle(context.Background(), interfaces.Event{
		Type:    interfaces.EventPipelineError,
		Payload: "not a payload",
	}))
	assert.NoError(t, aggregator.Handle(context.Background(), interfaces.Event{
		Type:    interfaces.EventPipelineError,
		Payload: interfaces.StageErrorPayload{Step: "x", Err: "no trace"},
	}))
}

func TestRegister_SubscribesEveryStage(t *testing.T) {
	tp := newTestPipeline()
	require.NoError(t, tp.pipeline.Register())

	assert.Equal(t, 1, tp.events.subscribed[interfaces.EventFileNewDetected])
	assert.Equal(t, 1, tp.events.subscribed[interfaces.EventVideoFileUploaded])
	assert.Equal(t, 2, tp.events.subscribed[interfaces.EventPromptsGenerated], "fan-out to thumbnail and title stages")
	assert.Equal(t, 1, tp.events.subscribed[interfaces.EventThumbnailImageGenerated])
	assert.Equal(t, 1, tp.events.subscribed[interfaces.EventFinalTitleGenerated])
	assert.Equal(t, 1, tp.events.subscribed[interfaces.EventYouTubeUploadCompleted])
	for _, topic := range interfaces.ErrorTopics() {
		assert.Equal(t, 1, tp.events.subscribed[topic], string(topic))
	}
}
