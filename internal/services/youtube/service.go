package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

// Service implements VideoPublisher over the YouTube Data API v3. Every upload
// runs on behalf of the most recently connected account.
type Service struct {
	auth   interfaces.AuthService
	config *common.YouTubeConfig
	logger arbor.ILogger
}

// NewService creates a new YouTube publisher
func NewService(auth interfaces.AuthService, config *common.YouTubeConfig, logger arbor.ILogger) *Service {
	return &Service{
		auth:   auth,
		config: config,
		logger: logger,
	}
}

// client builds a youtube API client for the first connected user
func (s *Service) client(ctx context.Context) (*youtube.Service, string, error) {
	user, err := s.auth.FirstConnectedUser(ctx)
	if err != nil {
		return nil, "", err
	}

	httpClient, err := s.auth.AuthenticatedClient(ctx, user.Email)
	if err != nil {
		return nil, "", err
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create youtube service: %w", err)
	}

	return svc, user.Email, nil
}

// Publish uploads the video and, when present, its custom thumbnail
func (s *Service) Publish(ctx context.Context, req *interfaces.PublishRequest) (*models.UploadResult, error) {
	if req.Video == nil {
		return nil, fmt.Errorf("publish request carries no video stream")
	}
	if req.Title == "" {
		return nil, fmt.Errorf("publish request carries no title")
	}

	svc, email, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	privacy := req.Privacy
	if privacy == "" {
		privacy = s.config.Privacy
	}
	categoryID := req.CategoryID
	if categoryID == "" {
		categoryID = s.config.CategoryID
	}

	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CategoryId:  categoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: privacy,
		},
	}

	s.logger.Info().
		Str("title", req.Title).
		Str("privacy", privacy).
		Str("account", email).
		Msg("Uploading video to YouTube")

	video, err := svc.Videos.Insert([]string{"snippet", "status"}, upload).
		Media(req.Video).
		Context(ctx).
		Do()
	if err != nil {
		return nil, translateError(err)
	}

	result := &models.UploadResult{
		VideoID:  video.Id,
		VideoURL: fmt.Sprintf("https://www.youtube.com/watch?v=%s", video.Id),
	}

	if req.Thumbnail != nil {
		_, err := svc.Thumbnails.Set(video.Id).
			Media(req.Thumbnail).
			Context(ctx).
			Do()
		if err != nil {
			// The video is live; a thumbnail failure is not a publish failure
			s.logger.Warn().Err(err).Str("video_id", video.Id).Msg("Failed to set custom thumbnail")
		} else {
			result.ThumbnailSet = true
		}
	}

	s.logger.Info().
		Str("video_id", result.VideoID).
		Str("url", result.VideoURL).
		Bool("thumbnail_set", result.ThumbnailSet).
		Msg("Video uploaded to YouTube")

	return result, nil
}

// translateError maps YouTube API failures onto friendlier messages where the
// category is recognizable, passing everything else through verbatim
func translateError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("youtube upload failed: %w", err)
	}

	switch apiErr.Code {
	case http.StatusForbidden:
		return fmt.Errorf("youtube upload rejected (quota exceeded or missing permission): %w", err)
	case http.StatusUnauthorized:
		return fmt.Errorf("youtube authentication expired, reconnect the account: %w", err)
	case http.StatusBadRequest:
		return fmt.Errorf("youtube rejected the upload request (check title, tags, and category): %w", err)
	default:
		return fmt.Errorf("youtube upload failed: %w", err)
	}
}
