package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// StubSMSSender logs instead of sending.
type StubSMSSender struct {
	logger *logging.Logger
}

func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

func (s *StubSMSSender) SendSMS(_ context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("notify: sms recipient is empty")
	}
	s.logger.Info("stub sms sender: reminder not delivered", "to", to, "length", len(body))
	return nil
}

var _ SMSSender = (*StubSMSSender)(nil)
