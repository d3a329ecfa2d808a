package outcomes

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink streams outcome events to a topic, keyed by patient so a patient's
// replies stay on one partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// NewKafkaSink returns nil when no brokers are configured.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &KafkaSink{writer: w, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, evt Event) error {
	body, err := evt.encode()
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(evt.Outcome.PatientID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "next_action", Value: []byte(evt.Outcome.NextAction)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("outcomes: kafka write to %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
