package interfaces

import (
	"context"
	"io"

	"github.com/ternarybob/tubecast/internal/models"
)

// PublishRequest carries everything the video host needs for one upload
type PublishRequest struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string
	Video       io.Reader
	Thumbnail   io.Reader // nil when the trace carries a placeholder thumbnail
}

// VideoPublisher uploads videos to the external video host
type VideoPublisher interface {
	// Publish uploads the video (and thumbnail when present) on behalf of the
	// most recently connected account and returns the host's result
	Publish(ctx context.Context, req *PublishRequest) (*models.UploadResult, error)
}

// MailService sends the success-path confirmation email
type MailService interface {
	// SendEmail sends a plain text email
	SendEmail(ctx context.Context, to, subject, body string) error

	// SendHTMLEmail sends an email with HTML and/or plain text body
	SendHTMLEmail(ctx context.Context, to, subject, htmlBody, textBody string) error

	// IsConfigured reports whether SMTP credentials are present
	IsConfigured(ctx context.Context) bool
}
