package models

import "time"

// TraceStatus is the lifecycle status of a pipeline trace
type TraceStatus string

const (
	StatusUploading           TraceStatus = "uploading"
	StatusGeneratingThumbnail TraceStatus = "generating-thumbnail"
	StatusThumbnailGenerated  TraceStatus = "thumbnail-generated"
	StatusGeneratingTitle     TraceStatus = "generating-title"
	StatusTitleGenerated      TraceStatus = "title-generated"
	StatusUploadingToYouTube  TraceStatus = "uploading-to-youtube"
	StatusCompleted           TraceStatus = "completed"
	StatusFailed              TraceStatus = "failed"
)

// IsTerminal reports whether no further progress transitions are allowed
func (s TraceStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusRecord tracks the current status of a trace with the time of the last change
type StatusRecord struct {
	Status    TraceStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Error     string      `json:"error,omitempty"`
}

// VideoData describes the ingested source video
type VideoData struct {
	FileName   string `json:"fileName"`
	StorageKey string `json:"storageKey"`
	Size       int64  `json:"size"`
	PublicURL  string `json:"publicUrl"`
}

// Metadata holds the publish settings for a video. Config-seeded values win over
// generated values; generated values only fill blanks.
type Metadata struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Tags              []string `json:"tags"`
	CategoryID        string   `json:"categoryId"`
	Privacy           string   `json:"privacy"`
	AutoGenerateTitle bool     `json:"autoGenerateTitle"`
}

// Prompts holds the AI-generated prompts driving the thumbnail and title stages
type Prompts struct {
	ThumbnailPrompt string `json:"thumbnailPrompt"`
	TitlePrompt     string `json:"titlePrompt"`
}

// Thumbnail describes the generated thumbnail artifact. When the image model
// returns no image data the stage stores a placeholder instead of failing.
type Thumbnail struct {
	StorageKey    string `json:"storageKey"`
	IsPlaceholder bool   `json:"isPlaceholder"`
}

// GeneratedTitle is the final video title selected by the title stage
type GeneratedTitle struct {
	Title       string `json:"title"`
	AIGenerated bool   `json:"aiGenerated"`
}

// UploadResult records the outcome of the YouTube upload
type UploadResult struct {
	VideoID      string `json:"videoId"`
	VideoURL     string `json:"videoUrl"`
	ThumbnailSet bool   `json:"thumbnailSet"`
}

// ErrorLogEntry is one entry in a trace's append-only error history
type ErrorLogEntry struct {
	TraceID   string    `json:"traceId"`
	Step      string    `json:"step"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Resolved  bool      `json:"resolved"`
	Details   string    `json:"details,omitempty"`
}

// ErrorSummary is the materialized view over a trace's error history
type ErrorSummary struct {
	TotalErrors int       `json:"totalErrors"`
	LastError   string    `json:"lastError"`
	FailedAt    time.Time `json:"failedAt"`
}

// EmailNotification records the confirmation email sent on completion
type EmailNotification struct {
	SentTo string    `json:"sentTo"`
	SentAt time.Time `json:"sentAt"`
}

// WorkflowTrace is the shared per-run document accumulated across pipeline
// stages. Fields are only ever added or overwritten, never deleted; each stage
// owns writing its own field but may read any previously written one.
type WorkflowTrace struct {
	TraceID           string             `json:"traceId" badgerhold:"key"`
	VideoData         *VideoData         `json:"videoData,omitempty"`
	Metadata          *Metadata          `json:"metadata,omitempty"`
	Prompts           *Prompts           `json:"prompts,omitempty"`
	Thumbnail         *Thumbnail         `json:"thumbnail,omitempty"`
	GeneratedTitle    *GeneratedTitle    `json:"generatedTitle,omitempty"`
	UploadResult      *UploadResult      `json:"uploadResult,omitempty"`
	Status            StatusRecord       `json:"status"`
	Errors            []ErrorLogEntry    `json:"errors,omitempty"`
	ErrorSummary      *ErrorSummary      `json:"errorSummary,omitempty"`
	EmailNotification *EmailNotification `json:"emailNotification,omitempty"`

	// UploadStarted is the idempotency latch for the YouTube fan-in stage.
	// Set atomically via TraceStorage.CheckAndSetUploadStarted.
	UploadStarted bool `json:"uploadStarted"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
