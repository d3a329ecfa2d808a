package reminders

import (
	"fmt"
	"strings"
)

// Clinic identifies the practice in outbound messages.
type Clinic struct {
	Name  string
	Phone string
}

func (c Clinic) withDefaults() Clinic {
	if c.Name == "" {
		c.Name = "Medical Clinic"
	}
	if c.Phone == "" {
		c.Phone = "(555) 123-4567"
	}
	return c
}

// Message is the rendered content for one reminder.
type Message struct {
	Subject string
	Body    string
	SMS     string
}

// RenderMessage builds the email and SMS content for a reminder kind.
func RenderMessage(clinic Clinic, kind Kind, appt *Appointment, patient *Patient) Message {
	clinic = clinic.withDefaults()
	name := "Patient"
	if patient != nil && strings.TrimSpace(patient.Name) != "" {
		name = strings.TrimSpace(patient.Name)
	}
	doctor := orTBD(appt.DoctorName)
	date := orTBD(appt.Date)
	clock := orTBD(appt.Time)

	switch kind {
	case KindFormCheck:
		return Message{
			Subject: fmt.Sprintf("Have you completed your intake forms? | %s", clinic.Name),
			Body: fmt.Sprintf(`Dear %s,

Your appointment is coming up soon.

Date: %s
Time: %s
Provider: Dr. %s

Have you completed your intake forms yet? Reply to this message:
  COMPLETED - if you've finished your forms
  HELP - if you need assistance
  PRINT - if you need the forms resent

Questions? Call us at %s.

%s Team`, name, date, clock, doctor, clinic.Phone, clinic.Name),
			SMS: fmt.Sprintf("%s: Have you completed your intake forms for %s at %s? Reply COMPLETED, HELP or PRINT. Call %s. Reply STOP to opt out.",
				clinic.Name, date, clock, clinic.Phone),
		}
	case KindConfirmation:
		return Message{
			Subject: fmt.Sprintf("Final Reminder - Confirm or Cancel Your Appointment | %s", clinic.Name),
			Body: fmt.Sprintf(`Dear %s,

Your appointment is very soon. Please confirm your attendance or let us know if you need to cancel.

Date: %s
Time: %s
Provider: Dr. %s

Reply CONFIRM if you are coming.
Reply CANCEL and tell us why (for example "CANCEL - SICK", "CANCEL - EMERGENCY", "CANCEL - SCHEDULE CONFLICT").
Reply RESCHEDULE and we'll help you find a new time.

Within 2 hours of your appointment, please call us directly at %s.

%s Team`, name, date, clock, doctor, clinic.Phone, clinic.Name),
			SMS: fmt.Sprintf("%s FINAL REMINDER: %s at %s. Reply CONFIRM, CANCEL or RESCHEDULE. Call %s. Reply STOP to opt out.",
				clinic.Name, date, clock, clinic.Phone),
		}
	default:
		timing := timingText(kind)
		return Message{
			Subject: fmt.Sprintf("Appointment Reminder - %s | %s", strings.ToUpper(timing[:1])+timing[1:], clinic.Name),
			Body: fmt.Sprintf(`Dear %s,

This is a friendly reminder about your upcoming appointment %s.

Date: %s
Time: %s
Provider: Dr. %s
Appointment ID: %s

Please bring photo ID, your insurance card and a list of current medications, and arrive 15 minutes early.

Need to reschedule? Call us at %s with at least 24 hours notice.

%s Team`, name, timing, date, clock, doctor, orTBD(appt.ID), clinic.Phone, clinic.Name),
			SMS: fmt.Sprintf("%s: Appointment reminder %s %s with Dr. %s. Arrive 15 min early. Call %s to reschedule. ID: %s. Reply STOP to opt out.",
				clinic.Name, date, clock, doctor, clinic.Phone, shortID(appt.ID)),
		}
	}
}

func timingText(kind Kind) string {
	before, ok := DefaultOffsets.Lookup(kind)
	if !ok {
		return "soon"
	}
	switch hours := int(before.Hours()); hours {
	case 24:
		return "tomorrow"
	case 1:
		return "in 1 hour"
	default:
		return fmt.Sprintf("in %d hours", hours)
	}
}

func orTBD(s string) string {
	if strings.TrimSpace(s) == "" {
		return "TBD"
	}
	return s
}

func shortID(id string) string {
	if len(id) <= 6 {
		return orTBD(id)
	}
	return id[len(id)-6:]
}
