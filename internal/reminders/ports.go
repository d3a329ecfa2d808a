package reminders

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates an appointment, patient or reminder does not exist.
	ErrNotFound = errors.New("reminders: not found")
	// ErrParse indicates an appointment date/time could not be parsed.
	ErrParse = errors.New("reminders: unparseable appointment date/time")
)

// AppointmentLookup resolves appointments from the booking system.
type AppointmentLookup interface {
	GetAppointment(ctx context.Context, id string) (*Appointment, error)
}

// PatientLookup resolves patients from the roster.
type PatientLookup interface {
	GetPatient(ctx context.Context, id string) (*Patient, error)
}

// MessageTransport delivers reminder messages. Both sends are best-effort:
// false means the attempt failed and the sweep will apply its retry policy.
type MessageTransport interface {
	SendEmail(ctx context.Context, address, subject, body string) bool
	SendSMS(ctx context.Context, number, text string) bool
}

// ReminderStore persists reminders. Create is only called by the Scheduler;
// the Mark*/ScheduleRetry mutations are only called by the Sweeper.
type ReminderStore interface {
	Create(ctx context.Context, r *Reminder) error
	// ListDue returns scheduled reminders with scheduled_time <= asOf, oldest first.
	ListDue(ctx context.Context, asOf time.Time) ([]Reminder, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, retryCount int, note string) error
	MarkSkipped(ctx context.Context, id string, note string) error
	ScheduleRetry(ctx context.Context, id string, retryCount int, next time.Time) error
	ListByAppointment(ctx context.Context, appointmentID string) ([]Reminder, error)
	ListByPatient(ctx context.Context, patientID string) ([]Reminder, error)
	ListAll(ctx context.Context, limit int) ([]Reminder, error)
	// LatestSentForPatient returns the most recently sent reminder, or ErrNotFound.
	LatestSentForPatient(ctx context.Context, patientID string) (*Reminder, error)
}

// Clock supplies the current time so tests can pin it.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
