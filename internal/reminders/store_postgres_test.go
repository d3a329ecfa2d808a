package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
)

var reminderCols = []string{"id", "appointment_id", "patient_id", "kind", "scheduled_time", "channel", "status", "created_at", "sent_at", "retry_count", "notes"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresStoreCreate(t *testing.T) {
	mock := newMockPool(t)
	store := NewPostgresStore(mock)

	due := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO reminders").
		WithArgs("R1", "A1", "P1", "regular", due, "email", "scheduled", pgxmock.AnyArg(), pgxmock.AnyArg(), 0, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := &Reminder{ID: "R1", AppointmentID: "A1", PatientID: "P1", Kind: KindRegular, ScheduledTime: due, Channel: ChannelEmail}
	if err := store.Create(context.Background(), r); err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Status != StatusScheduled {
		t.Fatalf("expected default status scheduled, got %s", r.Status)
	}
	if r.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreListDue(t *testing.T) {
	mock := newMockPool(t)
	store := NewPostgresStore(mock)

	asOf := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	created := asOf.Add(-48 * time.Hour)
	mock.ExpectQuery("WHERE status = 'scheduled' AND scheduled_time <=").
		WithArgs(asOf).
		WillReturnRows(pgxmock.NewRows(reminderCols).
			AddRow("R1", "A1", "P1", "regular", asOf.Add(-time.Hour), "email", "scheduled", created, (*time.Time)(nil), 0, "").
			AddRow("R2", "A2", "P2", "confirmation", asOf, "email+sms", "scheduled", created, (*time.Time)(nil), 1, ""))

	due, err := store.ListDue(context.Background(), asOf)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due reminders, got %d", len(due))
	}
	if due[1].Kind != KindConfirmation || due[1].Channel != ChannelEmailAndSMS || due[1].RetryCount != 1 {
		t.Fatalf("unexpected second reminder: %+v", due[1])
	}
	if due[0].SentAt != nil {
		t.Fatalf("expected nil sent_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreListDueError(t *testing.T) {
	mock := newMockPool(t)
	store := NewPostgresStore(mock)

	mock.ExpectQuery("FROM reminders").WillReturnError(errors.New("connection reset"))

	if _, err := store.ListDue(context.Background(), time.Now()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPostgresStoreMarkSent(t *testing.T) {
	mock := newMockPool(t)
	store := NewPostgresStore(mock)

	sentAt := time.Date(2026, 3, 11, 9, 0, 5, 0, time.UTC)
	mock.ExpectExec("UPDATE reminders SET status = 'sent'").
		WithArgs(sentAt, "R1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.MarkSent(context.Background(), "R1", sentAt); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreTransitionsRequireScheduled(t *testing.T) {
	mock := newMockPool(t)
	store := NewPostgresStore(mock)
	ctx := context.Background()
	next := time.Date(2026, 3, 11, 9, 5, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE reminders SET status = 'sent'").
		WithArgs(pgxmock.AnyArg(), "R1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("UPDATE reminders SET status = 'failed'").
		WithArgs(3, "send failed after 3 attempts", "R1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("UPDATE reminders SET status = 'skipped'").
		WithArgs("appointment not found", "R1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("UPDATE reminders SET retry_count").
		WithArgs(1, next, "R1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.MarkSent(ctx, "R1", next); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mark sent: expected ErrNotFound, got %v", err)
	}
	if err := store.MarkFailed(ctx, "R1", 3, "send failed after 3 attempts"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mark failed: expected ErrNotFound, got %v", err)
	}
	if err := store.MarkSkipped(ctx, "R1", "appointment not found"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mark skipped: expected ErrNotFound, got %v", err)
	}
	if err := store.ScheduleRetry(ctx, "R1", 1, next); !errors.Is(err, ErrNotFound) {
		t.Fatalf("schedule retry: expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreScheduleRetry(t *testing.T) {
	mock := newMockPool(t)
	store := NewPostgresStore(mock)

	next := time.Date(2026, 3, 11, 9, 5, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE reminders SET retry_count").
		WithArgs(2, next, "R1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.ScheduleRetry(context.Background(), "R1", 2, next); err != nil {
		t.Fatalf("schedule retry: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreListAllDefaultsLimit(t *testing.T) {
	mock := newMockPool(t)
	store := NewPostgresStore(mock)

	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(reminderCols))

	list, err := store.ListAll(context.Background(), 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
}

func TestPostgresStoreLatestSent(t *testing.T) {
	mock := newMockPool(t)
	store := NewPostgresStore(mock)

	sentAt := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("WHERE patient_id = (.+) AND status = 'sent'").
		WithArgs("P1").
		WillReturnRows(pgxmock.NewRows(reminderCols).
			AddRow("R3", "A1", "P1", "confirmation", sentAt, "sms", "sent", sentAt.Add(-24*time.Hour), &sentAt, 0, ""))
	mock.ExpectQuery("WHERE patient_id = (.+) AND status = 'sent'").
		WithArgs("P2").
		WillReturnRows(pgxmock.NewRows(reminderCols))

	latest, err := store.LatestSentForPatient(context.Background(), "P1")
	if err != nil {
		t.Fatalf("latest sent: %v", err)
	}
	if latest.Kind != KindConfirmation || latest.SentAt == nil || !latest.SentAt.Equal(sentAt) {
		t.Fatalf("unexpected latest reminder: %+v", latest)
	}

	if _, err := store.LatestSentForPatient(context.Background(), "P2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresDirectoryLookups(t *testing.T) {
	mock := newMockPool(t)
	dir := NewPostgresDirectory(mock)
	ctx := context.Background()

	mock.ExpectQuery("FROM appointments").
		WithArgs("A1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "patient_id", "appointment_date", "appointment_time", "doctor_name", "duration_minutes", "status"}).
			AddRow("A1", "P1", "2026-03-12", "14:30", "Patel", 30, "booked"))
	mock.ExpectQuery("FROM patients").
		WithArgs("P1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "phone"}).
			AddRow("P1", "Ana Ruiz", "ana@example.com", ""))
	mock.ExpectQuery("FROM appointments").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "patient_id", "appointment_date", "appointment_time", "doctor_name", "duration_minutes", "status"}))

	appt, err := dir.GetAppointment(ctx, "A1")
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if appt.PatientID != "P1" || appt.DurationMinutes != 30 {
		t.Fatalf("unexpected appointment: %+v", appt)
	}

	p, err := dir.GetPatient(ctx, "P1")
	if err != nil {
		t.Fatalf("get patient: %v", err)
	}
	if p.Email != "ana@example.com" || p.Phone != "" {
		t.Fatalf("unexpected patient: %+v", p)
	}

	if _, err := dir.GetAppointment(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
