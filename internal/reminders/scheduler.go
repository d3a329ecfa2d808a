package reminders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// Scheduler creates the reminder set for a confirmed appointment.
type Scheduler struct {
	store        ReminderStore
	appointments AppointmentLookup
	patients     PatientLookup
	offsets      OffsetTable
	clock        Clock
	loc          *time.Location
	metrics      *metrics.ReminderMetrics
	logger       *logging.Logger
}

// NewScheduler creates a reminder scheduler using DefaultOffsets.
func NewScheduler(store ReminderStore, appointments AppointmentLookup, patients PatientLookup, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		store:        store,
		appointments: appointments,
		patients:     patients,
		offsets:      DefaultOffsets,
		loc:          time.Local,
		logger:       logger,
	}
}

func (s *Scheduler) WithOffsets(t OffsetTable) *Scheduler {
	if len(t) > 0 {
		s.offsets = t
	}
	return s
}

func (s *Scheduler) WithClock(c Clock) *Scheduler {
	s.clock = c
	return s
}

// WithLocation sets the timezone appointment date/time strings are read in.
func (s *Scheduler) WithLocation(loc *time.Location) *Scheduler {
	if loc != nil {
		s.loc = loc
	}
	return s
}

func (s *Scheduler) WithMetrics(m *metrics.ReminderMetrics) *Scheduler {
	s.metrics = m
	return s
}

// Schedule creates one reminder per offset whose fire time is still ahead.
// Calling it twice for the same appointment creates a second set.
func (s *Scheduler) Schedule(ctx context.Context, appointmentID string) (ScheduleResult, error) {
	appt, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return scheduleError(fmt.Errorf("reminders: schedule: appointment %s: %w", appointmentID, err))
	}
	patient, err := s.patients.GetPatient(ctx, appt.PatientID)
	if err != nil {
		return scheduleError(fmt.Errorf("reminders: schedule: patient %s: %w", appt.PatientID, err))
	}
	apptTime, err := ParseAppointmentTime(appt.Date, appt.Time, s.loc)
	if err != nil {
		return scheduleError(fmt.Errorf("reminders: schedule: appointment %s: %w", appointmentID, err))
	}

	now := s.clock.now()
	created := make([]ScheduledReminder, 0, len(s.offsets))
	for _, o := range s.offsets {
		fireAt := apptTime.Add(-o.Before)
		if !fireAt.After(now) {
			s.logger.Debug("reminders: offset already elapsed",
				"appointment_id", appointmentID, "kind", o.Kind, "fire_at", fireAt)
			continue
		}

		r := &Reminder{
			ID:            newReminderID(now),
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			Kind:          o.Kind,
			ScheduledTime: fireAt,
			Channel:       SelectChannel(patient, o.Kind),
			Status:        StatusScheduled,
			CreatedAt:     now,
			Notes:         "Auto-scheduled for " + apptTime.Format("2006-01-02 15:04"),
		}
		if err := s.store.Create(ctx, r); err != nil {
			res, wrapped := scheduleError(fmt.Errorf("reminders: schedule: %w", err))
			res.Reminders = created
			return res, wrapped
		}
		s.metrics.ObserveScheduled(string(r.Kind), string(r.Channel))
		created = append(created, ScheduledReminder{
			ReminderID:   r.ID,
			Kind:         r.Kind,
			ScheduledFor: r.ScheduledTime,
			Channel:      r.Channel,
		})
	}

	s.logger.Info("reminders: scheduled",
		"appointment_id", appointmentID,
		"count", len(created),
		"appointment_time", apptTime.Format(time.RFC3339),
	)
	return ScheduleResult{
		Status:    "success",
		Message:   fmt.Sprintf("Scheduled %d reminders for appointment %s", len(created), appointmentID),
		Reminders: created,
	}, nil
}

func scheduleError(err error) (ScheduleResult, error) {
	return ScheduleResult{Status: "error", Message: err.Error(), Reminders: []ScheduledReminder{}}, err
}

func newReminderID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("REM_%s_%s", now.Format("20060102_150405"), suffix)
}
