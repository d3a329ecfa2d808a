package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds the From identity and an optional configuration set used
// for bounce and complaint event publishing.
type SESConfig struct {
	FromEmail        string
	FromName         string
	ConfigurationSet string
}

// SESSender delivers reminder emails through Amazon SES v2.
type SESSender struct {
	client    SESAPI
	from      sender
	configSet string
	logger    *logging.Logger
}

// NewSESSender returns nil for a nil client.
func NewSESSender(client SESAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SESSender{
		client:    client,
		from:      newSender(cfg.FromName, cfg.FromEmail),
		configSet: cfg.ConfigurationSet,
		logger:    logger,
	}
}

func utf8Content(data string) *types.Content {
	if data == "" {
		return nil
	}
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

func (s *SESSender) buildInput(msg EmailMessage) *sesv2.SendEmailInput {
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from.address()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8Content(msg.Subject),
				Body: &types.Body{
					Text: utf8Content(msg.Body),
					Html: utf8Content(msg.HTML),
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("category"), Value: aws.String(msg.category())},
		},
	}
	if s.configSet != "" {
		in.ConfigurationSetName = aws.String(s.configSet)
	}
	return in
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	ctx, span := emailTracer.Start(ctx, "notify.ses.send")
	defer span.End()

	out, err := s.client.SendEmail(ctx, s.buildInput(msg))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: ses send to %s: %w", msg.To, err)
	}
	s.logger.Debug("reminder email accepted by ses", "to", msg.To, "message_id", aws.ToString(out.MessageId))
	return nil
}

var _ EmailSender = (*SESSender)(nil)
