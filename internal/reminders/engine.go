package reminders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// defaultStatusLimit caps an unfiltered status listing.
const defaultStatusLimit = 100

// Engine is the entry point used by the HTTP API, the worker and the CLI.
type Engine struct {
	store        ReminderStore
	appointments AppointmentLookup
	patients     PatientLookup
	transport    MessageTransport

	scheduler *Scheduler
	sweeper   *Sweeper
	responder *Responder

	clinic  Clinic
	clock   Clock
	metrics *metrics.ReminderMetrics
	logger  *logging.Logger
}

// EngineOptions configures optional collaborators. Zero values are valid.
type EngineOptions struct {
	Clinic    Clinic
	Offsets   OffsetTable
	Location  *time.Location
	Clock     Clock
	Publisher OutcomePublisher
	Metrics   *metrics.ReminderMetrics
}

// NewEngine wires the scheduler, sweeper and responder over the given ports.
func NewEngine(store ReminderStore, appointments AppointmentLookup, patients PatientLookup, transport MessageTransport, opts EngineOptions, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:        store,
		appointments: appointments,
		patients:     patients,
		transport:    transport,
		scheduler: NewScheduler(store, appointments, patients, logger).
			WithOffsets(opts.Offsets).
			WithLocation(opts.Location).
			WithClock(opts.Clock).
			WithMetrics(opts.Metrics),
		sweeper: NewSweeper(store, appointments, patients, transport, logger).
			WithClinic(opts.Clinic).
			WithMetrics(opts.Metrics),
		responder: NewResponder(patients, store, logger).
			WithPublisher(opts.Publisher).
			WithClock(opts.Clock).
			WithMetrics(opts.Metrics),
		clinic:  opts.Clinic,
		clock:   opts.Clock,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// Schedule creates the reminder set for an appointment and returns the cause
// of a failure alongside the "error" result, so callers can tell ErrNotFound
// and ErrParse apart.
func (e *Engine) Schedule(ctx context.Context, appointmentID string) (ScheduleResult, error) {
	return e.scheduler.Schedule(ctx, appointmentID)
}

// ScheduleRemindersForAppointment creates the reminder set for an appointment.
// Failures are reported in the result with status "error".
func (e *Engine) ScheduleRemindersForAppointment(ctx context.Context, appointmentID string) ScheduleResult {
	res, err := e.Schedule(ctx, appointmentID)
	if err != nil {
		e.logger.Error("reminders: schedule failed", "appointment_id", appointmentID, "error", err)
	}
	return res
}

// CheckAndSendDueReminders runs one sweep as of now. A zero now means the engine clock.
func (e *Engine) CheckAndSendDueReminders(ctx context.Context, now time.Time) SweepResult {
	if now.IsZero() {
		now = e.clock.now()
	}
	return e.sweeper.Run(ctx, now)
}

// ProcessPatientResponse interprets a patient's reply.
func (e *Engine) ProcessPatientResponse(ctx context.Context, patientID, reply string, kind Kind) Outcome {
	return e.responder.Process(ctx, patientID, reply, kind)
}

// StatusQuery filters a status report. AppointmentID takes precedence over PatientID;
// with neither set the most recent reminders are listed.
type StatusQuery struct {
	AppointmentID string
	PatientID     string
	Limit         int
}

// Status reports reminders and per-status counts.
func (e *Engine) Status(ctx context.Context, q StatusQuery) (StatusReport, error) {
	var (
		list []Reminder
		err  error
	)
	switch {
	case strings.TrimSpace(q.AppointmentID) != "":
		list, err = e.store.ListByAppointment(ctx, q.AppointmentID)
	case strings.TrimSpace(q.PatientID) != "":
		list, err = e.store.ListByPatient(ctx, q.PatientID)
	default:
		limit := q.Limit
		if limit <= 0 {
			limit = defaultStatusLimit
		}
		list, err = e.store.ListAll(ctx, limit)
	}
	if err != nil {
		return StatusReport{}, fmt.Errorf("reminders: status: %w", err)
	}
	if list == nil {
		list = []Reminder{}
	}
	return StatusReport{Reminders: list, Summary: summarize(list)}, nil
}

func summarize(list []Reminder) StatusSummary {
	s := StatusSummary{Total: len(list)}
	for _, r := range list {
		switch r.Status {
		case StatusScheduled:
			s.Scheduled++
		case StatusSent:
			s.Sent++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// SendManual delivers one reminder kind right away to every contact the patient
// has. No reminder row is created or updated.
func (e *Engine) SendManual(ctx context.Context, appointmentID string, kind Kind) (ManualSendResult, error) {
	res := ManualSendResult{AppointmentID: appointmentID, Kind: kind}
	if _, ok := DefaultOffsets.Lookup(kind); !ok {
		return res, fmt.Errorf("reminders: manual send: unknown kind %q", kind)
	}
	appt, err := e.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return res, fmt.Errorf("reminders: manual send: appointment %s: %w", appointmentID, err)
	}
	patient, err := e.patients.GetPatient(ctx, appt.PatientID)
	if err != nil {
		return res, fmt.Errorf("reminders: manual send: patient %s: %w", appt.PatientID, err)
	}
	if e.transport == nil {
		return res, fmt.Errorf("reminders: manual send: transport not configured")
	}

	msg := RenderMessage(e.clinic, kind, appt, patient)
	if strings.TrimSpace(patient.Email) != "" {
		res.EmailSent = e.transport.SendEmail(ctx, patient.Email, msg.Subject, msg.Body)
		e.metrics.ObserveDelivery(string(ChannelEmail), res.EmailSent)
	}
	if strings.TrimSpace(patient.Phone) != "" {
		res.SMSSent = e.transport.SendSMS(ctx, patient.Phone, msg.SMS)
		e.metrics.ObserveDelivery(string(ChannelSMS), res.SMSSent)
	}
	e.logger.Info("reminders: manual send",
		"appointment_id", appointmentID,
		"kind", kind,
		"email_sent", res.EmailSent,
		"sms_sent", res.SMSSent,
	)
	return res, nil
}
