package interfaces

import "context"

// EventType names a topic on the pipeline event bus. Topic names are the wire
// contract between stages; renaming one is a breaking change.
type EventType string

const (
	EventFileNewDetected EventType = "file.new.detected"

	EventVideoFileUploaded EventType = "video.file.uploaded"
	EventVideoUploadError  EventType = "video.upload.error"

	EventPromptsGenerated       EventType = "prompts.generated"
	EventPromptsGenerationError EventType = "prompts.generation.error"

	EventThumbnailImageGenerated EventType = "thumbnail.image.generated"
	EventThumbnailGenerationError EventType = "thumbnail.generation.error"

	EventFinalTitleGenerated       EventType = "final.title.generated"
	EventFinalTitleGenerationError EventType = "final.title.generation.error"

	EventYouTubeUploadCompleted EventType = "youtube.upload.completed"
	EventYouTubeUploadError     EventType = "youtube.upload.error"

	EventNotificationEmailSent EventType = "notification.email.sent"
	EventEmailSendError        EventType = "email.send.error"

	EventPipelineError EventType = "pipeline.error"
)

// ErrorTopics lists every error topic the aggregator subscribes to
func ErrorTopics() []EventType {
	return []EventType{
		EventVideoUploadError,
		EventPromptsGenerationError,
		EventThumbnailGenerationError,
		EventFinalTitleGenerationError,
		EventYouTubeUploadError,
		EventEmailSendError,
		EventPipelineError,
	}
}

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// FileDetectedPayload is carried by file.new.detected
type FileDetectedPayload struct {
	TraceID  string `json:"traceId"`
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
}

// TracePayload is carried by intermediate success topics that only hand off the trace
type TracePayload struct {
	TraceID string `json:"traceId"`
}

// ThumbnailGeneratedPayload is carried by thumbnail.image.generated
type ThumbnailGeneratedPayload struct {
	TraceID  string `json:"traceId"`
	HasImage bool   `json:"hasImage"`
}

// TitleGeneratedPayload is carried by final.title.generated
type TitleGeneratedPayload struct {
	TraceID string `json:"traceId"`
	Title   string `json:"title"`
}

// UploadCompletedPayload is carried by youtube.upload.completed
type UploadCompletedPayload struct {
	TraceID  string `json:"traceId"`
	VideoID  string `json:"videoId"`
	VideoURL string `json:"videoUrl"`
}

// EmailSentPayload is carried by notification.email.sent
type EmailSentPayload struct {
	TraceID string `json:"traceId"`
	SentTo  string `json:"sentTo"`
}

// StageErrorPayload is carried by every *.error topic
type StageErrorPayload struct {
	TraceID string `json:"traceId"`
	Step    string `json:"step"`
	Err     string `json:"error"`
	Details string `json:"details,omitempty"`
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
