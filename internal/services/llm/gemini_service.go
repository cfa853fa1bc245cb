package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
)

// GeminiService implements the LLMService interface using the Google genai
// client. Text generation drives the metadata/title stages; image generation
// drives the thumbnail stage.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiService creates a new Gemini LLM service instance
func NewGeminiService(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set gemini.api_key or TUBECAST_GEMINI_API_KEY)")
	}

	if config.ChatModel == "" {
		config.ChatModel = "gemini-2.0-flash"
	}
	if config.ImageModel == "" {
		config.ImageModel = "gemini-2.0-flash-exp-image-generation"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Info().
		Str("chat_model", config.ChatModel).
		Str("image_model", config.ImageModel).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized")

	return &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

// GeneratePrompts produces structured publish metadata for a video. The
// response schema is enforced by Gemini; a malformed payload is still treated
// as a parse error rather than trusted blindly.
func (s *GeminiService) GeneratePrompts(ctx context.Context, fileName string) (*interfaces.VideoPrompts, error) {
	if fileName == "" {
		return nil, fmt.Errorf("file name cannot be empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`You are a YouTube publishing assistant. A new video file named %q has been uploaded.
Derive engaging publish metadata from the filename:
- a concise click-worthy title (max 100 characters, no clickbait)
- a two-paragraph description
- 5 to 10 search tags
- a detailed visual prompt for generating a thumbnail image (no text in the image)
- a short prompt that another model can use to write an alternative title`, fileName)

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.7)),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":           {Type: genai.TypeString, Description: "Video title, max 100 characters"},
				"description":     {Type: genai.TypeString, Description: "Video description"},
				"tags":            {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"thumbnailPrompt": {Type: genai.TypeString, Description: "Image generation prompt for the thumbnail"},
				"titlePrompt":     {Type: genai.TypeString, Description: "Prompt for generating an alternative title"},
			},
			Required: []string{"title", "description", "tags", "thumbnailPrompt", "titlePrompt"},
		},
	}

	resp, err := s.client.Models.GenerateContent(
		timeoutCtx,
		s.config.ChatModel,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		config,
	)
	if err != nil {
		return nil, fmt.Errorf("prompt generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no response from prompt generation model")
	}

	responseText := strings.TrimSpace(resp.Text())
	if responseText == "" {
		return nil, fmt.Errorf("empty response from prompt generation model")
	}

	var prompts interfaces.VideoPrompts
	if err := json.Unmarshal([]byte(responseText), &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt generation response: %w", err)
	}
	if prompts.Title == "" || prompts.ThumbnailPrompt == "" {
		return nil, fmt.Errorf("prompt generation response missing required fields")
	}

	s.logger.Debug().
		Str("file_name", fileName).
		Str("title", prompts.Title).
		Int("tags", len(prompts.Tags)).
		Msg("Generated video prompts")

	return &prompts, nil
}

// GenerateTitle produces a final video title from a title prompt
func (s *GeminiService) GenerateTitle(ctx context.Context, titlePrompt string) (string, error) {
	if titlePrompt == "" {
		return "", fmt.Errorf("title prompt cannot be empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`%s

Respond with the title only: a single line, max 100 characters, no quotes.`, titlePrompt)

	resp, err := s.client.Models.GenerateContent(
		timeoutCtx,
		s.config.ChatModel,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{Temperature: genai.Ptr(float32(0.8))},
	)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response from title generation model")
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Text()), `"`))
	if title == "" {
		return "", fmt.Errorf("empty response from title generation model")
	}
	return capTitle(title), nil
}

// capTitle enforces YouTube's 100-character title limit. Truncation is on
// rune boundaries so multibyte titles stay valid UTF-8.
func capTitle(title string) string {
	runes := []rune(title)
	if len(runes) > 100 {
		return string(runes[:100])
	}
	return title
}

// GenerateThumbnail produces thumbnail image bytes from an image prompt. When
// the model responds without inline image data the return is (nil, nil); the
// thumbnail stage stores a placeholder in that case.
func (s *GeminiService) GenerateThumbnail(ctx context.Context, imagePrompt string) ([]byte, error) {
	if imagePrompt == "" {
		return nil, fmt.Errorf("image prompt cannot be empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	resp, err := s.client.Models.GenerateContent(
		timeoutCtx,
		s.config.ImageModel,
		[]*genai.Content{genai.NewContentFromText(imagePrompt, genai.RoleUser)},
		config,
	)
	if err != nil {
		return nil, fmt.Errorf("thumbnail generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, nil
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				s.logger.Debug().
					Int("bytes", len(part.InlineData.Data)).
					Str("mime_type", part.InlineData.MIMEType).
					Msg("Generated thumbnail image")
				return part.InlineData.Data, nil
			}
		}
	}

	s.logger.Warn().Msg("Image model returned no inline image data")
	return nil, nil
}

// Close releases provider resources
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Gemini LLM service closed")
	return nil
}
