package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

var smsTracer = otel.Tracer("clinic.internal.notify.sms")

const (
	twilioBaseURL     = "https://api.twilio.com"
	twilioMaxAttempts = 3
)

// TwilioSender posts reminder texts to the Twilio Messages API.
type TwilioSender struct {
	accountSID     string
	authToken      string
	from           string
	statusCallback string
	baseURL        string
	httpClient     *http.Client
	logger         *logging.Logger
	backoff        func(attempt int) time.Duration
}

// NewTwilioSender builds a sender with a 10s request timeout.
func NewTwilioSender(accountSID, authToken, from string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		backoff:    jitterBackoff,
	}
}

func jitterBackoff(attempt int) time.Duration {
	return time.Duration(attempt*200+rand.Intn(300)) * time.Millisecond
}

// WithBaseURL points the sender at a different API host.
func (s *TwilioSender) WithBaseURL(u string) *TwilioSender {
	if u != "" {
		s.baseURL = strings.TrimRight(u, "/")
	}
	return s
}

func (s *TwilioSender) WithHTTPClient(c *http.Client) *TwilioSender {
	if c != nil {
		s.httpClient = c
	}
	return s
}

// WithStatusCallback asks Twilio to post delivery receipts to u.
func (s *TwilioSender) WithStatusCallback(u string) *TwilioSender {
	s.statusCallback = strings.TrimSpace(u)
	return s
}

// twilioError is a non-2xx reply. Client errors other than 429 are final.
type twilioError struct {
	status int
	detail string
}

func (e *twilioError) Error() string { return "notify: twilio rejected sms: " + e.detail }

func (e *twilioError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

func (s *TwilioSender) validate(to, body string) error {
	switch {
	case s.accountSID == "" || s.authToken == "":
		return errors.New("notify: twilio credentials missing")
	case s.from == "":
		return errors.New("notify: twilio from number missing")
	case strings.TrimSpace(to) == "":
		return errors.New("notify: sms recipient is empty")
	case strings.TrimSpace(body) == "":
		return errors.New("notify: sms body is empty")
	}
	return nil
}

func (s *TwilioSender) form(to, body string) url.Values {
	v := url.Values{"To": {to}, "From": {s.from}, "Body": {body}}
	if s.statusCallback != "" {
		v.Set("StatusCallback", s.statusCallback)
	}
	return v
}

// SendSMS delivers one text, retrying network failures, 429 and 5xx replies.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if err := s.validate(to, body); err != nil {
		return err
	}
	ctx, span := smsTracer.Start(ctx, "notify.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.to", to), attribute.Int("clinic.sms_length", len(body)))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	payload := s.form(to, body).Encode()

	var err error
	for attempt := 1; attempt <= twilioMaxAttempts; attempt++ {
		var sid string
		sid, err = s.post(ctx, endpoint, payload)
		if err == nil {
			s.logger.Debug("reminder sms accepted by twilio", "to", to, "sid", sid, "attempt", attempt)
			return nil
		}
		var te *twilioError
		if errors.As(err, &te) && !te.retryable() {
			break
		}
		if attempt == twilioMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			attempt = twilioMaxAttempts
		case <-time.After(s.backoff(attempt)):
		}
	}
	span.RecordError(err)
	return err
}

func (s *TwilioSender) post(ctx context.Context, endpoint, payload string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("notify: build twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("notify: twilio request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &twilioError{status: resp.StatusCode, detail: formatTwilioError(resp.StatusCode, raw)}
	}
	var accepted struct {
		SID string `json:"sid"`
	}
	_ = json.Unmarshal(raw, &accepted)
	return accepted.SID, nil
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(trimmed), &apiErr) != nil || apiErr.Message == "" {
		return fmt.Sprintf("status %d: %s", status, trimmed)
	}
	if apiErr.Code != 0 {
		return fmt.Sprintf("status %d code %d: %s", status, apiErr.Code, apiErr.Message)
	}
	return fmt.Sprintf("status %d: %s", status, apiErr.Message)
}

var _ SMSSender = (*TwilioSender)(nil)
