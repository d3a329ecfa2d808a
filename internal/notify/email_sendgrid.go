package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridConfig holds SendGrid credentials and the From identity.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender delivers reminder emails through the SendGrid v3 API.
type SendGridSender struct {
	client sendgridClient
	from   sender
	logger *logging.Logger
}

// NewSendGridSender returns nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   newSender(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

// buildMail assembles a v3 payload with one recipient, text and HTML parts,
// and the message category.
func (s *SendGridSender) buildMail(msg EmailMessage) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.from.name, s.from.email))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	m.AddPersonalizations(p)

	if msg.Body != "" {
		m.AddContent(mail.NewContent("text/plain", msg.Body))
	}
	if h := msg.htmlBody(); h != "" {
		m.AddContent(mail.NewContent("text/html", h))
	}
	m.AddCategories(msg.category())
	return m
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}
	ctx, span := emailTracer.Start(ctx, "notify.sendgrid.send")
	defer span.End()

	resp, err := s.client.SendWithContext(ctx, s.buildMail(msg))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: sendgrid send to %s: %w", msg.To, err)
	}
	if resp.StatusCode >= 400 {
		err := fmt.Errorf("notify: sendgrid send to %s: status %d", msg.To, resp.StatusCode)
		span.RecordError(err)
		s.logger.Warn("sendgrid rejected reminder email", "status", resp.StatusCode, "body", resp.Body)
		return err
	}
	s.logger.Debug("reminder email accepted by sendgrid", "to", msg.To, "status", resp.StatusCode)
	return nil
}

var _ EmailSender = (*SendGridSender)(nil)
