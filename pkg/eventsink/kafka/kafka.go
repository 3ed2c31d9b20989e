// Package kafka provides an event sink that publishes events to a Kafka
// topic, keyed by project ID so a project's events stay ordered within a
// partition. Delivery is at-least-once; downstream consumers own any
// aggregation, so this sink has no query capability.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/eventsink"
	"github.com/aigolabs/aig/pkg/health"
	"github.com/aigolabs/aig/pkg/redact"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "aig.events"

// Sink implements eventsink.Sink over a Kafka topic.
type Sink struct {
	writer *kafkago.Writer
	topic  string
	logger *zap.Logger
}

// Config holds configuration for the Kafka event sink.
type Config struct {
	// Brokers lists broker addresses, e.g. ["localhost:9092"]. Required.
	Brokers []string

	// Topic defaults to DefaultTopic if empty.
	Topic string
}

// NewSink creates a Kafka event sink.
func NewSink(c Config, logger *zap.Logger) (*Sink, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(c.Brokers...),
		Topic:    topic,
		Balancer: &kafkago.Hash{},
	}

	logger.Info("kafka event sink initialized",
		zap.Strings("brokers", c.Brokers),
		zap.String("topic", topic),
	)

	return &Sink{writer: writer, topic: topic, logger: logger}, nil
}

// HealthCheck reports writer statistics. The writer connects lazily, so
// reachability only surfaces on write; errors recorded so far downgrade
// the status.
func (s *Sink) HealthCheck(_ context.Context) health.Report {
	stats := s.writer.Stats()

	report := health.Healthy(fmt.Sprintf("kafka event sink ready (topic %s)", s.topic))
	if stats.Errors > 0 {
		report = health.Degraded(fmt.Sprintf("kafka writer reported %d errors", stats.Errors))
	}

	report.PendingEvents = health.Int(0)
	report.Details = map[string]any{
		"topic":    s.topic,
		"messages": stats.Messages,
		"errors":   stats.Errors,
	}

	return report
}

// Emit publishes a single event.
func (s *Sink) Emit(ctx context.Context, event *eventsink.UserEvent) error {
	return s.EmitBatch(ctx, []*eventsink.UserEvent{event})
}

// EmitBatch publishes the batch in one write, redacting properties before
// the payload leaves the process.
func (s *Sink) EmitBatch(ctx context.Context, events []*eventsink.UserEvent) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]kafkago.Message, 0, len(events))
	for _, event := range events {
		if event.EventID == "" {
			event.EventID = eventsink.NewEventID()
		}

		clone := *event
		clone.Properties = redact.Map(event.Properties)

		value, err := json.Marshal(&clone)
		if err != nil {
			return fmt.Errorf("encoding event %s: %w", event.EventID, err)
		}

		messages = append(messages, kafkago.Message{
			Key:   []byte(event.Project()),
			Value: value,
		})
	}

	if err := s.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("publishing events: %w", err)
	}

	s.logger.Debug("published events",
		zap.Int("count", len(messages)),
	)

	return nil
}

// Flush is a no-op: WriteMessages returns after the batch is accepted.
func (s *Sink) Flush(_ context.Context) error {
	return nil
}

// Close shuts down the writer.
func (s *Sink) Close() error {
	return s.writer.Close()
}

var _ eventsink.Sink = (*Sink)(nil)
