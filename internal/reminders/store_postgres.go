package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const reminderColumns = `id, appointment_id, patient_id, kind, scheduled_time, channel, status, created_at, sent_at, retry_count, notes`

// PostgresStore persists reminders in the reminders table.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a Postgres-backed reminder store.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new reminder.
func (s *PostgresStore) Create(ctx context.Context, r *Reminder) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = StatusScheduled
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO reminders (`+reminderColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $8)`,
		r.ID, r.AppointmentID, r.PatientID, string(r.Kind), r.ScheduledTime.UTC(),
		string(r.Channel), string(r.Status), r.CreatedAt.UTC(), r.SentAt, r.RetryCount, r.Notes,
	)
	if err != nil {
		return fmt.Errorf("reminders: create reminder: %w", err)
	}
	return nil
}

// ListDue returns scheduled reminders whose scheduled_time is on or before asOf.
func (s *PostgresStore) ListDue(ctx context.Context, asOf time.Time) ([]Reminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE status = 'scheduled' AND scheduled_time <= $1
		ORDER BY scheduled_time ASC`, asOf.UTC())
	if err != nil {
		return nil, fmt.Errorf("reminders: list due: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// MarkSent transitions a reminder from scheduled to sent.
func (s *PostgresStore) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders SET status = 'sent', sent_at = $1, updated_at = $1
		WHERE id = $2 AND status = 'scheduled'`, sentAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("reminders: mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminders: mark sent: no scheduled reminder with id %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkFailed transitions a reminder from scheduled to failed.
func (s *PostgresStore) MarkFailed(ctx context.Context, id string, retryCount int, note string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders SET status = 'failed', retry_count = $1, notes = $2, updated_at = now()
		WHERE id = $3 AND status = 'scheduled'`, retryCount, note, id)
	if err != nil {
		return fmt.Errorf("reminders: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminders: mark failed: no scheduled reminder with id %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkSkipped transitions a reminder from scheduled to skipped.
func (s *PostgresStore) MarkSkipped(ctx context.Context, id string, note string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders SET status = 'skipped', notes = $1, updated_at = now()
		WHERE id = $2 AND status = 'scheduled'`, note, id)
	if err != nil {
		return fmt.Errorf("reminders: mark skipped: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminders: mark skipped: no scheduled reminder with id %s: %w", id, ErrNotFound)
	}
	return nil
}

// ScheduleRetry pushes a scheduled reminder out and records the attempt count.
func (s *PostgresStore) ScheduleRetry(ctx context.Context, id string, retryCount int, next time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders SET retry_count = $1, scheduled_time = $2, updated_at = now()
		WHERE id = $3 AND status = 'scheduled'`, retryCount, next.UTC(), id)
	if err != nil {
		return fmt.Errorf("reminders: schedule retry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminders: schedule retry: no scheduled reminder with id %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListByAppointment returns every reminder for an appointment in fire order.
func (s *PostgresStore) ListByAppointment(ctx context.Context, appointmentID string) ([]Reminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE appointment_id = $1
		ORDER BY scheduled_time ASC`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("reminders: list by appointment: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// ListByPatient returns every reminder for a patient in fire order.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string) ([]Reminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE patient_id = $1
		ORDER BY scheduled_time ASC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("reminders: list by patient: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// ListAll returns the most recently created reminders.
func (s *PostgresStore) ListAll(ctx context.Context, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("reminders: list all: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// LatestSentForPatient returns the patient's most recently sent reminder.
func (s *PostgresStore) LatestSentForPatient(ctx context.Context, patientID string) (*Reminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE patient_id = $1 AND status = 'sent'
		ORDER BY sent_at DESC LIMIT 1`, patientID)
	if err != nil {
		return nil, fmt.Errorf("reminders: latest sent: %w", err)
	}
	defer rows.Close()
	list, err := scanReminders(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("reminders: latest sent for patient %s: %w", patientID, ErrNotFound)
	}
	return &list[0], nil
}

func scanReminders(rows pgx.Rows) ([]Reminder, error) {
	result := []Reminder{}
	for rows.Next() {
		var r Reminder
		var kind, channel, status string
		err := rows.Scan(
			&r.ID, &r.AppointmentID, &r.PatientID, &kind, &r.ScheduledTime,
			&channel, &status, &r.CreatedAt, &r.SentAt, &r.RetryCount, &r.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("reminders: scan reminder: %w", err)
		}
		r.Kind = Kind(kind)
		r.Channel = Channel(channel)
		r.Status = Status(status)
		result = append(result, r)
	}
	return result, rows.Err()
}
