package reminders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresDirectory reads appointments and patients owned by the booking system.
// It implements both AppointmentLookup and PatientLookup.
type PostgresDirectory struct {
	db DB
}

func NewPostgresDirectory(db DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// GetAppointment returns ErrNotFound when no appointment has the given id.
func (d *PostgresDirectory) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	var a Appointment
	err := d.db.QueryRow(ctx, `
		SELECT id, patient_id, appointment_date, appointment_time, doctor_name, duration_minutes, status
		FROM appointments
		WHERE id = $1`, id).Scan(
		&a.ID, &a.PatientID, &a.Date, &a.Time, &a.DoctorName, &a.DurationMinutes, &a.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reminders: get appointment: %w", err)
	}
	return &a, nil
}

// GetPatient returns ErrNotFound when no patient has the given id.
func (d *PostgresDirectory) GetPatient(ctx context.Context, id string) (*Patient, error) {
	var p Patient
	err := d.db.QueryRow(ctx, `
		SELECT id, name, email, phone
		FROM patients
		WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.Email, &p.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reminders: get patient: %w", err)
	}
	return &p, nil
}
