package interfaces

import "context"

// VideoPrompts is the structured output of the prompt-generation call
type VideoPrompts struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Tags            []string `json:"tags"`
	ThumbnailPrompt string   `json:"thumbnailPrompt"`
	TitlePrompt     string   `json:"titlePrompt"`
}

// LLMService generates publish metadata, titles, and thumbnail images
type LLMService interface {
	// GeneratePrompts produces structured metadata and prompts for a video,
	// derived from its filename. A malformed model response is an error.
	GeneratePrompts(ctx context.Context, fileName string) (*VideoPrompts, error)

	// GenerateTitle produces a final video title from a title prompt
	GenerateTitle(ctx context.Context, titlePrompt string) (string, error)

	// GenerateThumbnail produces thumbnail image bytes from an image prompt.
	// A nil slice with nil error means the model returned no image data.
	GenerateThumbnail(ctx context.Context, imagePrompt string) ([]byte, error)

	// Close releases provider resources
	Close() error
}
