package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
)

const stepEmail = "email-send"

// HandleUploadCompleted sends the confirmation email after a successful
// publish. A missing recipient or unconfigured mailer skips the email without
// failing the trace; the pipeline is already completed at this point.
func (p *Pipeline) HandleUploadCompleted(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(interfaces.UploadCompletedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s: %T", event.Type, event.Payload)
	}
	tid := payload.TraceID

	if p.config.Email.NotifyTo == "" {
		p.logger.Warn().Str("trace_id", tid).Msg("No notification recipient configured, skipping email")
		return nil
	}
	if !p.mailer.IsConfigured(ctx) {
		p.logger.Warn().Str("trace_id", tid).Msg("SMTP credentials not configured, skipping email")
		return nil
	}

	trace, err := p.state.GetTrace(ctx, tid)
	if err != nil {
		return p.failStage(ctx, tid, stepEmail, interfaces.EventEmailSendError,
			fmt.Errorf("failed to load trace: %w", err))
	}

	title := payload.VideoID
	if trace.GeneratedTitle != nil && trace.GeneratedTitle.Title != "" {
		title = trace.GeneratedTitle.Title
	}
	fileName := ""
	if trace.VideoData != nil {
		fileName = trace.VideoData.FileName
	}

	subject := fmt.Sprintf("Video published: %s", title)
	htmlBody := fmt.Sprintf(
		`<h2>Your video is live</h2>
<p><strong>%s</strong> has been uploaded to YouTube.</p>
<p>Source file: %s</p>
<p>Watch it here: <a href="%s">%s</a></p>`,
		title, fileName, payload.VideoURL, payload.VideoURL)
	textBody := fmt.Sprintf("Your video %q has been uploaded to YouTube.\nSource file: %s\nWatch it here: %s\n",
		title, fileName, payload.VideoURL)

	if err := p.mailer.SendHTMLEmail(ctx, p.config.Email.NotifyTo, subject, htmlBody, textBody); err != nil {
		return p.failStage(ctx, tid, stepEmail, interfaces.EventEmailSendError, err)
	}

	if err := p.state.SetEmailNotification(ctx, tid, &models.EmailNotification{
		SentTo: p.config.Email.NotifyTo,
		SentAt: time.Now(),
	}); err != nil {
		return p.failStage(ctx, tid, stepEmail, interfaces.EventEmailSendError,
			fmt.Errorf("failed to record email notification: %w", err))
	}

	p.logger.Info().
		Str("trace_id", tid).
		Str("to", p.config.Email.NotifyTo).
		Msg("Confirmation email sent")

	return p.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventNotificationEmailSent,
		Payload: interfaces.EmailSentPayload{
			TraceID: tid,
			SentTo:  p.config.Email.NotifyTo,
		},
	})
}
