package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

var emailTracer = otel.Tracer("clinic.internal.notify.email")

// ReminderCategory tags every reminder email so provider dashboards and
// suppression lists can tell them apart from other clinic mail.
const ReminderCategory = "appointment-reminder"

const defaultSenderName = "Clinic Reminders"

// EmailSender delivers one email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a rendered reminder email. HTML is derived from Body when
// empty.
type EmailMessage struct {
	To       string
	ToName   string
	Subject  string
	Body     string
	HTML     string
	Category string
}

func (m EmailMessage) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("notify: email recipient is empty")
	}
	return nil
}

// htmlBody returns the explicit HTML part, or the plain body escaped with line
// breaks preserved.
func (m EmailMessage) htmlBody() string {
	if m.HTML != "" {
		return m.HTML
	}
	if m.Body == "" {
		return ""
	}
	lines := strings.Split(html.EscapeString(m.Body), "\n")
	return "<p>" + strings.Join(lines, "<br>") + "</p>"
}

func (m EmailMessage) category() string {
	if c := strings.TrimSpace(m.Category); c != "" {
		return c
	}
	return ReminderCategory
}

// sender is the From identity shared by the provider implementations.
type sender struct {
	name  string
	email string
}

func newSender(name, email string) sender {
	if strings.TrimSpace(name) == "" {
		name = defaultSenderName
	}
	return sender{name: name, email: email}
}

func (s sender) address() string {
	return fmt.Sprintf("%s <%s>", s.name, s.email)
}

// StubEmailSender logs instead of sending. Used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.Info("stub email sender: reminder not delivered", "to", msg.To, "subject", msg.Subject, "category", msg.category())
	return nil
}

var _ EmailSender = (*StubEmailSender)(nil)
