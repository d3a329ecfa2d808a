// Package outcomes delivers interpreted patient replies to the staff workflow.
package outcomes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// EventType identifies the outcome event schema.
const EventType = "reminders.response.v1"

// Event is the envelope published for every interpreted reply.
type Event struct {
	EventID     string            `json:"event_id"`
	Type        string            `json:"type"`
	PublishedAt time.Time         `json:"published_at"`
	Outcome     reminders.Outcome `json:"outcome"`
}

// NewEvent wraps an outcome in a fresh envelope.
func NewEvent(o reminders.Outcome, now time.Time) Event {
	return Event{
		EventID:     uuid.NewString(),
		Type:        EventType,
		PublishedAt: now.UTC(),
		Outcome:     o,
	}
}

func (e Event) encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("outcomes: marshal event: %w", err)
	}
	return body, nil
}

// Sink is one destination for outcome events.
type Sink interface {
	Name() string
	Publish(ctx context.Context, evt Event) error
}

// Multi fans an outcome out to every configured sink. A failing sink does not
// stop delivery to the others.
type Multi struct {
	sinks   []Sink
	metrics *metrics.ReminderMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewMulti creates a fan-out publisher. Nil sinks are ignored.
func NewMulti(logger *logging.Logger, sinks ...Sink) *Multi {
	if logger == nil {
		logger = logging.Default()
	}
	m := &Multi{logger: logger, now: time.Now}
	for _, s := range sinks {
		if !isNilSink(s) {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// isNilSink also catches typed nil pointers from the New*Sink constructors.
func isNilSink(s Sink) bool {
	switch v := s.(type) {
	case nil:
		return true
	case *SQSSink:
		return v == nil
	case *DynamoSink:
		return v == nil
	case *KafkaSink:
		return v == nil
	}
	return false
}

func (m *Multi) WithMetrics(rm *metrics.ReminderMetrics) *Multi {
	m.metrics = rm
	return m
}

// Len returns the number of configured sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Publish sends the outcome to every sink and joins their errors.
func (m *Multi) Publish(ctx context.Context, o reminders.Outcome) error {
	if len(m.sinks) == 0 {
		return nil
	}
	evt := NewEvent(o, m.now())
	var errs []error
	for _, s := range m.sinks {
		err := s.Publish(ctx, evt)
		m.metrics.ObservePublish(s.Name(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		m.logger.Debug("outcomes: published", "sink", s.Name(), "event_id", evt.EventID, "patient_id", o.PatientID)
	}
	return errors.Join(errs...)
}

var _ reminders.OutcomePublisher = (*Multi)(nil)
