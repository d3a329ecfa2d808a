package reminders

import (
	"strings"
	"time"
)

// Kind identifies which reminder in the appointment sequence this is.
type Kind string

const (
	KindRegular      Kind = "regular"
	KindFormCheck    Kind = "form_check"
	KindConfirmation Kind = "confirmation"
)

// ParseKind normalizes user input into a Kind. The second return is false for unknown kinds.
// NormalizeKind lower-cases and trims a caller-supplied kind without
// validating it. Unrecognized kinds route replies to staff review.
func NormalizeKind(s string) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(s)))
}

func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindRegular, KindFormCheck, KindConfirmation:
		return k, true
	}
	return "", false
}

// Channel is the delivery path resolved for a reminder.
type Channel string

const (
	ChannelEmail       Channel = "email"
	ChannelSMS         Channel = "sms"
	ChannelEmailAndSMS Channel = "email+sms"
	ChannelNone        Channel = "none"
)

// IncludesEmail reports whether delivery should attempt email.
func (c Channel) IncludesEmail() bool {
	return c == ChannelEmail || c == ChannelEmailAndSMS
}

// IncludesSMS reports whether delivery should attempt SMS.
func (c Channel) IncludesSMS() bool {
	return c == ChannelSMS || c == ChannelEmailAndSMS
}

// Status tracks the delivery lifecycle of a reminder.
// scheduled is the only non-terminal state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Appointment is read from the booking system and never mutated here.
type Appointment struct {
	ID              string `json:"appointment_id"`
	PatientID       string `json:"patient_id"`
	Date            string `json:"appointment_date"`
	Time            string `json:"appointment_time"`
	DoctorName      string `json:"doctor_name,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Status          string `json:"status,omitempty"`
}

// Patient is read from the patient roster and never mutated here.
type Patient struct {
	ID    string `json:"patient_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Reminder is a single scheduled outreach and its delivery audit trail.
type Reminder struct {
	ID            string     `json:"reminder_id"`
	AppointmentID string     `json:"appointment_id"`
	PatientID     string     `json:"patient_id"`
	Kind          Kind       `json:"kind"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	Channel       Channel    `json:"channel"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	RetryCount    int        `json:"retry_count"`
	Notes         string     `json:"notes,omitempty"`
}

// ScheduledReminder summarizes a reminder created by the scheduler.
type ScheduledReminder struct {
	ReminderID   string    `json:"reminder_id"`
	Kind         Kind      `json:"type"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Channel      Channel   `json:"method"`
}

// ScheduleResult is returned by the scheduling operation.
type ScheduleResult struct {
	Status    string              `json:"status"`
	Message   string              `json:"message"`
	Reminders []ScheduledReminder `json:"reminders"`
}

// SweepItem reports what happened to one due reminder.
type SweepItem struct {
	ReminderID    string  `json:"reminder_id"`
	AppointmentID string  `json:"appointment_id"`
	Kind          Kind    `json:"type"`
	Channel       Channel `json:"method"`
	Patient       string  `json:"patient,omitempty"`
	RetryCount    int     `json:"retry_count"`
	Terminal      bool    `json:"terminal"`
	Reason        string  `json:"reason,omitempty"`
}

// SweepResult groups the due reminders by what the sweep did with them.
// Failed contains every failed attempt; Terminal marks ones that will not be retried.
type SweepResult struct {
	Sent    []SweepItem `json:"sent"`
	Failed  []SweepItem `json:"failed"`
	Skipped []SweepItem `json:"skipped"`
}

// Empty reports whether the sweep touched nothing.
func (r SweepResult) Empty() bool {
	return len(r.Sent) == 0 && len(r.Failed) == 0 && len(r.Skipped) == 0
}

// Action is the canonical classification of a patient reply.
type Action string

const (
	ActionFormsCompleted       Action = "forms_completed"
	ActionHelpRequested        Action = "help_requested"
	ActionPrintRequested       Action = "print_requested"
	ActionVisitConfirmed       Action = "visit_confirmed"
	ActionAppointmentCancelled Action = "appointment_cancelled"
	ActionRescheduleRequested  Action = "reschedule_requested"
	ActionUnknownResponse      Action = "unknown_response"
	ActionLookupFailed         Action = "lookup_failed"
)

// NextAction tells the staff workflow what to do with an outcome.
type NextAction string

const (
	NextNone                NextAction = "none"
	NextStaffCallback       NextAction = "staff_callback"
	NextResendForms         NextAction = "resend_forms"
	NextProcessCancellation NextAction = "process_cancellation"
	NextStaffReschedule     NextAction = "staff_reschedule"
	NextStaffReview         NextAction = "staff_review"
	NextStaffContact        NextAction = "staff_contact"
)

// Outcome status values.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// Outcome is the interpreted result of a patient reply.
type Outcome struct {
	Status             string     `json:"status"`
	Action             Action     `json:"action"`
	Message            string     `json:"message"`
	NextAction         NextAction `json:"next_action"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	PatientID          string     `json:"patient_id,omitempty"`
	Kind               Kind       `json:"kind,omitempty"`
	Reply              string     `json:"reply,omitempty"`
	ReceivedAt         time.Time  `json:"received_at"`
}

// StatusSummary counts reminders by status.
type StatusSummary struct {
	Total     int `json:"total"`
	Scheduled int `json:"scheduled"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// StatusReport lists reminders for an appointment or patient.
type StatusReport struct {
	Reminders []Reminder    `json:"reminders"`
	Summary   StatusSummary `json:"summary"`
}

// ManualSendResult reports an out-of-band reminder send.
type ManualSendResult struct {
	AppointmentID string `json:"appointment_id"`
	Kind          Kind   `json:"type"`
	EmailSent     bool   `json:"email_sent"`
	SMSSent       bool   `json:"sms_sent"`
}
