package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

type fakeSendGrid struct {
	resp *rest.Response
	err  error
	sent []*mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, m)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func newTestSendGrid(client sendgridClient) *SendGridSender {
	return &SendGridSender{client: client, from: newSender("Riverside Clinic", "clinic@example.com"), logger: logging.Default()}
}

func TestEmailMessage_HTMLBody(t *testing.T) {
	assert.Equal(t, "<b>hi</b>", EmailMessage{Body: "plain", HTML: "<b>hi</b>"}.htmlBody())
	assert.Equal(t, "<p>Line 1<br>Dr. O&#39;Neil &amp; team</p>", EmailMessage{Body: "Line 1\nDr. O'Neil & team"}.htmlBody())
	assert.Empty(t, EmailMessage{}.htmlBody())
}

func TestEmailMessage_CategoryDefault(t *testing.T) {
	assert.Equal(t, ReminderCategory, EmailMessage{}.category())
	assert.Equal(t, "billing", EmailMessage{Category: "billing"}.category())
}

func TestNewSender_DefaultName(t *testing.T) {
	s := newSender("  ", "clinic@example.com")
	assert.Equal(t, "Clinic Reminders <clinic@example.com>", s.address())
}

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "clinic@example.com"}, nil))
}

func TestNewSendGridSender_Configured(t *testing.T) {
	s := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "clinic@example.com"}, nil)
	require.NotNil(t, s)
	assert.Equal(t, defaultSenderName, s.from.name)
	assert.Equal(t, "clinic@example.com", s.from.email)
}

func TestSendGridSender_BuildsReminderPayload(t *testing.T) {
	fake := &fakeSendGrid{resp: &rest.Response{StatusCode: 202}}
	s := newTestSendGrid(fake)

	err := s.Send(context.Background(), EmailMessage{To: "pat@example.com", ToName: "Pat", Subject: "Reminder", Body: "See you", Category: ReminderCategory})
	require.NoError(t, err)
	require.Len(t, fake.sent, 1)

	m := fake.sent[0]
	assert.Equal(t, "Reminder", m.Subject)
	assert.Equal(t, "clinic@example.com", m.From.Address)
	require.Len(t, m.Personalizations, 1)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "pat@example.com", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
	assert.Equal(t, []string{ReminderCategory}, m.Categories)
}

func TestSendGridSender_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeSendGrid
		wantErr string
	}{
		{name: "rejected status", fake: &fakeSendGrid{resp: &rest.Response{StatusCode: 401, Body: "unauthorized"}}, wantErr: "status 401"},
		{name: "client error", fake: &fakeSendGrid{err: errors.New("network down")}, wantErr: "network down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestSendGrid(tt.fake).Send(context.Background(), EmailMessage{To: "pat@example.com", Subject: "Reminder", Body: "x"})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSendGridSender_RejectsWithoutClientOrRecipient(t *testing.T) {
	assert.Error(t, (&SendGridSender{}).Send(context.Background(), EmailMessage{To: "pat@example.com"}))

	fake := &fakeSendGrid{resp: &rest.Response{StatusCode: 202}}
	assert.Error(t, newTestSendGrid(fake).Send(context.Background(), EmailMessage{Subject: "Reminder"}))
	assert.Empty(t, fake.sent)
}

func TestNewSESSender_NilClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{FromEmail: "clinic@example.com"}, nil))
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	s := NewSESSender(fake, SESConfig{FromEmail: "clinic@example.com", FromName: "Riverside Clinic", ConfigurationSet: "reminders"}, nil)

	err := s.Send(context.Background(), EmailMessage{To: "pat@example.com", Subject: "Reminder", Body: "See you"})
	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "Riverside Clinic <clinic@example.com>", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"pat@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "See you", aws.ToString(in.Content.Simple.Body.Text.Data))
	assert.Nil(t, in.Content.Simple.Body.Html)
	assert.Equal(t, "reminders", aws.ToString(in.ConfigurationSetName))
	require.Len(t, in.EmailTags, 1)
	assert.Equal(t, "category", aws.ToString(in.EmailTags[0].Name))
	assert.Equal(t, ReminderCategory, aws.ToString(in.EmailTags[0].Value))
}

func TestSESSender_NoConfigurationSet(t *testing.T) {
	fake := &fakeSES{}
	s := NewSESSender(fake, SESConfig{FromEmail: "clinic@example.com"}, nil)

	require.NoError(t, s.Send(context.Background(), EmailMessage{To: "pat@example.com", Subject: "Reminder", HTML: "<p>hi</p>"}))
	in := fake.inputs[0]
	assert.Nil(t, in.ConfigurationSetName)
	assert.Nil(t, in.Content.Simple.Body.Text)
	assert.Equal(t, "<p>hi</p>", aws.ToString(in.Content.Simple.Body.Html.Data))
}

func TestSESSender_SendError(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}
	s := NewSESSender(fake, SESConfig{FromEmail: "clinic@example.com"}, nil)
	assert.ErrorContains(t, s.Send(context.Background(), EmailMessage{To: "pat@example.com", Body: "x"}), "throttled")
}

func TestStubEmailSender_Send(t *testing.T) {
	s := NewStubEmailSender(nil)
	assert.NoError(t, s.Send(context.Background(), EmailMessage{To: "pat@example.com", Subject: "Test", Body: "body"}))
	assert.Error(t, s.Send(context.Background(), EmailMessage{Subject: "Test"}))
}
