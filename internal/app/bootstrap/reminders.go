package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/clinic-reminders/internal/archive"
	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/notify"
	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	"github.com/wolfman30/clinic-reminders/internal/outcomes"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// BuildEmailSender picks the email provider. Misconfigured providers fall back
// to the stub so the engine still runs and records failures.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; using stub email sender")
	case "ses":
		if awsCfg != nil && strings.TrimSpace(cfg.SESFromEmail) != "" {
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail:        cfg.SESFromEmail,
				FromName:         cfg.ClinicName,
				ConfigurationSet: cfg.SESConfigSet,
			}, logger)
		}
		logger.Warn("ses selected but AWS config or SES_FROM_EMAIL missing; using stub email sender")
	}
	return notify.NewStubEmailSender(logger)
}

// BuildSMSSender picks the SMS provider, falling back to the stub.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) notify.SMSSender {
	if cfg.SMSProvider == "twilio" {
		if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
			return notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger).
				WithStatusCallback(cfg.TwilioStatusURL)
		}
		logger.Warn("twilio selected but credentials incomplete; using stub sms sender")
	}
	return notify.NewStubSMSSender(logger)
}

// BuildTransport combines the configured senders behind the send rate limit.
func BuildTransport(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *notify.Transport {
	return notify.NewTransport(BuildEmailSender(cfg, awsCfg, logger), BuildSMSSender(cfg, logger), logger).
		WithRateLimit(cfg.SendRatePerSecond, cfg.SendBurst)
}

// BuildPublisher fans outcomes out to every configured sink. The returned
// closer flushes the Kafka writer and is never nil.
func BuildPublisher(cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.ReminderMetrics, logger *logging.Logger) (*outcomes.Multi, func() error) {
	var sinks []outcomes.Sink
	if awsCfg != nil {
		if s := outcomes.NewSQSSink(sqs.NewFromConfig(*awsCfg), cfg.OutcomeQueueURL); s != nil {
			sinks = append(sinks, s)
		}
		if s := outcomes.NewDynamoSink(dynamodb.NewFromConfig(*awsCfg), cfg.OutcomeTable); s != nil {
			sinks = append(sinks, s)
		}
	}
	closer := func() error { return nil }
	if k := outcomes.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaOutcomeTopic); k != nil {
		sinks = append(sinks, k)
		closer = k.Close
	}
	pub := outcomes.NewMulti(logger, sinks...).WithMetrics(m)
	logger.Info("outcome publisher configured", "sinks", pub.Len())
	return pub, closer
}

// BuildArchive returns the S3 sweep archive, or nil when no bucket is configured.
func BuildArchive(cfg *appconfig.Config, awsCfg *aws.Config, source string, logger *logging.Logger) *archive.Store {
	if awsCfg == nil || strings.TrimSpace(cfg.SweepArchiveBucket) == "" {
		return nil
	}
	return archive.NewStore(s3.NewFromConfig(*awsCfg), cfg.SweepArchiveBucket, logger).WithSource(source)
}

// EngineDeps are the runtime collaborators shared by every binary.
type EngineDeps struct {
	DB        reminders.DB
	Transport reminders.MessageTransport
	Publisher reminders.OutcomePublisher
	Metrics   *metrics.ReminderMetrics
}

// BuildEngine wires the reminder engine over Postgres.
func BuildEngine(cfg *appconfig.Config, deps EngineDeps, logger *logging.Logger) *reminders.Engine {
	dir := reminders.NewPostgresDirectory(deps.DB)
	return reminders.NewEngine(
		reminders.NewPostgresStore(deps.DB),
		dir,
		dir,
		deps.Transport,
		reminders.EngineOptions{
			Clinic:    reminders.Clinic{Name: cfg.ClinicName, Phone: cfg.ClinicPhone},
			Location:  cfg.Location(),
			Publisher: deps.Publisher,
			Metrics:   deps.Metrics,
		},
		logger,
	)
}
