package reminders

import (
	"context"
	"errors"

	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// OutcomePublisher hands interpreted replies to the staff workflow.
type OutcomePublisher interface {
	Publish(ctx context.Context, outcome Outcome) error
}

// Responder turns an inbound patient reply into an Outcome. It never returns
// an error: replies that cannot be resolved are routed to staff.
type Responder struct {
	patients  PatientLookup
	store     ReminderStore
	publisher OutcomePublisher
	clock     Clock
	metrics   *metrics.ReminderMetrics
	logger    *logging.Logger
}

// NewResponder creates a responder. store may be nil, which disables kind inference.
func NewResponder(patients PatientLookup, store ReminderStore, logger *logging.Logger) *Responder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{patients: patients, store: store, logger: logger}
}

func (r *Responder) WithPublisher(p OutcomePublisher) *Responder {
	r.publisher = p
	return r
}

func (r *Responder) WithClock(c Clock) *Responder {
	r.clock = c
	return r
}

func (r *Responder) WithMetrics(m *metrics.ReminderMetrics) *Responder {
	r.metrics = m
	return r
}

// Process interprets reply in the context of kind. An empty kind is inferred
// from the patient's most recently sent reminder.
func (r *Responder) Process(ctx context.Context, patientID, reply string, kind Kind) Outcome {
	var out Outcome
	if _, err := r.patients.GetPatient(ctx, patientID); err != nil {
		r.logger.Error("reminders: response lookup failed", "patient_id", patientID, "error", err)
		out = lookupFailedOutcome(kind)
	} else {
		if kind == "" {
			kind = r.inferKind(ctx, patientID)
		}
		out = Interpret(reply, kind)
	}

	out.PatientID = patientID
	out.Reply = reply
	out.ReceivedAt = r.clock.now().UTC()
	r.metrics.ObserveResponse(string(out.Action), string(out.NextAction))
	r.logger.Info("reminders: patient response interpreted",
		"patient_id", patientID,
		"kind", out.Kind,
		"action", out.Action,
		"next_action", out.NextAction,
	)

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, out); err != nil {
			r.logger.Error("reminders: publish outcome", "patient_id", patientID, "error", err)
		}
	}
	return out
}

func (r *Responder) inferKind(ctx context.Context, patientID string) Kind {
	if r.store == nil {
		return ""
	}
	latest, err := r.store.LatestSentForPatient(ctx, patientID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Warn("reminders: infer reply kind", "patient_id", patientID, "error", err)
		}
		return ""
	}
	return latest.Kind
}
