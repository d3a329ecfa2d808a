package notify

import (
	"context"
	"strings"

	"golang.org/x/time/rate"

	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// Transport adapts an email and an SMS sender to reminders.MessageTransport.
// Sends share one token bucket so a large sweep cannot flood the providers.
type Transport struct {
	email   EmailSender
	sms     SMSSender
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewTransport builds a transport. Either sender may be nil, in which case
// sends on that channel report failure.
func NewTransport(email EmailSender, sms SMSSender, logger *logging.Logger) *Transport {
	if logger == nil {
		logger = logging.Default()
	}
	return &Transport{email: email, sms: sms, logger: logger}
}

// WithRateLimit caps outbound sends at perSecond with the given burst. A
// non-positive perSecond disables limiting.
func (t *Transport) WithRateLimit(perSecond float64, burst int) *Transport {
	if perSecond <= 0 {
		t.limiter = nil
		return t
	}
	if burst < 1 {
		burst = 1
	}
	t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return t
}

func (t *Transport) wait(ctx context.Context) bool {
	if t.limiter == nil {
		return true
	}
	if err := t.limiter.Wait(ctx); err != nil {
		t.logger.Warn("notify: rate limiter wait aborted", "error", err)
		return false
	}
	return true
}

func (t *Transport) SendEmail(ctx context.Context, address, subject, body string) bool {
	if t.email == nil || strings.TrimSpace(address) == "" {
		return false
	}
	if !t.wait(ctx) {
		return false
	}
	if err := t.email.Send(ctx, EmailMessage{To: address, Subject: subject, Body: body, Category: ReminderCategory}); err != nil {
		t.logger.Warn("notify: email delivery failed", "to", address, "error", err)
		return false
	}
	return true
}

func (t *Transport) SendSMS(ctx context.Context, number, text string) bool {
	if t.sms == nil || strings.TrimSpace(number) == "" {
		return false
	}
	if !t.wait(ctx) {
		return false
	}
	if err := t.sms.SendSMS(ctx, number, text); err != nil {
		t.logger.Warn("notify: sms delivery failed", "to", number, "error", err)
		return false
	}
	return true
}

var _ reminders.MessageTransport = (*Transport)(nil)
