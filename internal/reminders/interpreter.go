package reminders

import (
	"strings"
)

type keywordRule struct {
	keyword string
	outcome Outcome
}

var formCheckRules = []keywordRule{
	{"completed", Outcome{Action: ActionFormsCompleted, NextAction: NextNone, Message: "Thank you! Your forms are marked as completed."}},
	{"help", Outcome{Action: ActionHelpRequested, NextAction: NextStaffCallback, Message: "We'll call you to help with the forms."}},
	{"print", Outcome{Action: ActionPrintRequested, NextAction: NextResendForms, Message: "Printable forms will be resent to your email."}},
}

var confirmationRules = []keywordRule{
	{"confirm", Outcome{Action: ActionVisitConfirmed, NextAction: NextNone, Message: "Great! We'll see you at your appointment."}},
	{"cancel", Outcome{Action: ActionAppointmentCancelled, NextAction: NextProcessCancellation}},
	{"reschedule", Outcome{Action: ActionRescheduleRequested, NextAction: NextStaffReschedule, Message: "We'll contact you to schedule a new appointment time."}},
}

// cancellation reasons are checked in order; the first hit wins.
var cancellationReasons = []struct {
	keyword string
	reason  string
}{
	{"sick", "sick"},
	{"emergency", "emergency"},
	{"schedule", "schedule_conflict"},
}

const unspecifiedReason = "unspecified"

// Interpret classifies a reply to a reminder of the given kind by
// case-insensitive substring match. Unmatched replies go to staff review.
func Interpret(reply string, kind Kind) Outcome {
	text := strings.ToLower(strings.TrimSpace(reply))

	var rules []keywordRule
	switch kind {
	case KindFormCheck:
		rules = formCheckRules
	case KindConfirmation:
		rules = confirmationRules
	}

	for _, rule := range rules {
		if !strings.Contains(text, rule.keyword) {
			continue
		}
		out := rule.outcome
		out.Status = OutcomeSuccess
		out.Kind = kind
		if out.Action == ActionAppointmentCancelled {
			out.CancellationReason = cancellationReason(text)
			out.Message = "Appointment cancelled. Reason: " + out.CancellationReason
		}
		return out
	}

	return Outcome{
		Status:     OutcomePartial,
		Action:     ActionUnknownResponse,
		NextAction: NextStaffReview,
		Message:    "Thank you for responding. Our staff will follow up if needed.",
		Kind:       kind,
	}
}

func cancellationReason(text string) string {
	for _, r := range cancellationReasons {
		if strings.Contains(text, r.keyword) {
			return r.reason
		}
	}
	return unspecifiedReason
}

// lookupFailedOutcome is returned when the replying patient cannot be resolved.
func lookupFailedOutcome(kind Kind) Outcome {
	return Outcome{
		Status:     OutcomeError,
		Action:     ActionLookupFailed,
		NextAction: NextStaffContact,
		Message:    "Error processing your response. Please call our office.",
		Kind:       kind,
	}
}
