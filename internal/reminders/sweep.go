package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

const (
	// MaxDeliveryAttempts is the number of failed deliveries after which a reminder is failed for good.
	MaxDeliveryAttempts = 3
	// RetryDelay is how far a failed reminder is pushed out before the next attempt.
	RetryDelay = 30 * time.Minute
)

var sweepTracer = otel.Tracer("clinic.internal.reminders.sweep")

// Sweeper delivers due reminders and applies the bounded retry policy.
// It assumes a single running instance; see internal/lease for cross-process exclusion.
type Sweeper struct {
	store        ReminderStore
	appointments AppointmentLookup
	patients     PatientLookup
	transport    MessageTransport
	clinic       Clinic
	metrics      *metrics.ReminderMetrics
	logger       *logging.Logger
}

// NewSweeper creates a due-reminder sweeper.
func NewSweeper(store ReminderStore, appointments AppointmentLookup, patients PatientLookup, transport MessageTransport, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		store:        store,
		appointments: appointments,
		patients:     patients,
		transport:    transport,
		logger:       logger,
	}
}

func (s *Sweeper) WithClinic(c Clinic) *Sweeper {
	s.clinic = c
	return s
}

func (s *Sweeper) WithMetrics(m *metrics.ReminderMetrics) *Sweeper {
	s.metrics = m
	return s
}

// Run processes every scheduled reminder whose scheduled time is at or before now.
// Delivery and per-reminder store errors never abort the batch.
func (s *Sweeper) Run(ctx context.Context, now time.Time) SweepResult {
	ctx, span := sweepTracer.Start(ctx, "reminders.sweep")
	defer span.End()
	started := time.Now()
	defer func() { s.metrics.ObserveSweepDuration(time.Since(started).Seconds()) }()

	result := SweepResult{Sent: []SweepItem{}, Failed: []SweepItem{}, Skipped: []SweepItem{}}

	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("reminders sweep: list due", "error", err)
		return result
	}
	if len(due) == 0 {
		return result
	}

	s.logger.Info("reminders sweep: processing due reminders", "count", len(due), "as_of", now)
	for i := range due {
		s.processOne(ctx, &due[i], now, &result)
	}

	span.SetAttributes(
		attribute.Int("reminders.due", len(due)),
		attribute.Int("reminders.sent", len(result.Sent)),
		attribute.Int("reminders.failed", len(result.Failed)),
		attribute.Int("reminders.skipped", len(result.Skipped)),
	)
	return result
}

func (s *Sweeper) processOne(ctx context.Context, r *Reminder, now time.Time, result *SweepResult) {
	item := SweepItem{
		ReminderID:    r.ID,
		AppointmentID: r.AppointmentID,
		Kind:          r.Kind,
		Channel:       r.Channel,
		RetryCount:    r.RetryCount,
	}

	appt, patient, err := s.resolve(ctx, r)
	if errors.Is(err, ErrNotFound) {
		item.Terminal = true
		item.Reason = "record not found"
		if err := s.store.MarkSkipped(ctx, r.ID, fmt.Sprintf("Skipped: %v", err)); err != nil {
			s.logger.Error("reminders sweep: mark skipped", "reminder_id", r.ID, "error", err)
		}
		s.metrics.ObserveSweepItem("skipped", string(r.Kind))
		s.logger.Warn("reminders sweep: skipped", "reminder_id", r.ID, "reason", err)
		result.Skipped = append(result.Skipped, item)
		return
	}

	var reason string
	delivered := false
	if err != nil {
		reason = err.Error()
	} else {
		item.Patient = patient.Name
		delivered, reason = s.deliver(ctx, r, appt, patient)
	}

	if delivered {
		if err := s.store.MarkSent(ctx, r.ID, now); err != nil {
			s.logger.Error("reminders sweep: mark sent", "reminder_id", r.ID, "error", err)
			item.Reason = "status update failed: " + err.Error()
		}
		s.metrics.ObserveSweepItem("sent", string(r.Kind))
		s.logger.Info("reminders sweep: reminder sent",
			"reminder_id", r.ID, "kind", r.Kind, "channel", r.Channel)
		result.Sent = append(result.Sent, item)
		return
	}

	item.RetryCount = r.RetryCount + 1
	item.Reason = reason
	if item.RetryCount >= MaxDeliveryAttempts {
		item.Terminal = true
		note := fmt.Sprintf("Failed after %d attempts: %s", item.RetryCount, reason)
		if err := s.store.MarkFailed(ctx, r.ID, item.RetryCount, note); err != nil {
			s.logger.Error("reminders sweep: mark failed", "reminder_id", r.ID, "error", err)
		}
		s.metrics.ObserveSweepItem("failed", string(r.Kind))
	} else {
		if err := s.store.ScheduleRetry(ctx, r.ID, item.RetryCount, now.Add(RetryDelay)); err != nil {
			s.logger.Error("reminders sweep: schedule retry", "reminder_id", r.ID, "error", err)
		}
		s.metrics.ObserveSweepItem("retry", string(r.Kind))
	}
	s.logger.Warn("reminders sweep: delivery failed",
		"reminder_id", r.ID, "retry_count", item.RetryCount, "terminal", item.Terminal, "reason", reason)
	result.Failed = append(result.Failed, item)
}

func (s *Sweeper) resolve(ctx context.Context, r *Reminder) (*Appointment, *Patient, error) {
	appt, err := s.appointments.GetAppointment(ctx, r.AppointmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("appointment %s: %w", r.AppointmentID, err)
	}
	patient, err := s.patients.GetPatient(ctx, r.PatientID)
	if err != nil {
		return nil, nil, fmt.Errorf("patient %s: %w", r.PatientID, err)
	}
	return appt, patient, nil
}

// deliver sends on the reminder's frozen channel. One successful sub-channel is enough.
func (s *Sweeper) deliver(ctx context.Context, r *Reminder, appt *Appointment, patient *Patient) (bool, string) {
	if !r.Channel.IncludesEmail() && !r.Channel.IncludesSMS() {
		return false, "no delivery channel available"
	}
	if s.transport == nil {
		return false, "transport not configured"
	}

	msg := RenderMessage(s.clinic, r.Kind, appt, patient)
	ok := false
	if r.Channel.IncludesEmail() {
		sent := s.transport.SendEmail(ctx, patient.Email, msg.Subject, msg.Body)
		s.metrics.ObserveDelivery(string(ChannelEmail), sent)
		ok = ok || sent
	}
	if r.Channel.IncludesSMS() {
		sent := s.transport.SendSMS(ctx, patient.Phone, msg.SMS)
		s.metrics.ObserveDelivery(string(ChannelSMS), sent)
		ok = ok || sent
	}
	if !ok {
		return false, "delivery failed"
	}
	return true, ""
}
