// Package nop provides the disabled event sink used when event tracking
// is turned off. Emits are discarded; health is always reported.
package nop

import (
	"context"

	"github.com/aigolabs/aig/pkg/eventsink"
	"github.com/aigolabs/aig/pkg/health"
)

// Sink is a no-op event sink.
type Sink struct{}

// NewSink creates a new no-op event sink.
func NewSink() *Sink {
	return &Sink{}
}

// HealthCheck always reports healthy with a zero pending count.
func (s *Sink) HealthCheck(_ context.Context) health.Report {
	report := health.Healthy("none adapter (events disabled)")
	report.PendingEvents = health.Int(0)

	return report
}

// Emit discards the event.
func (s *Sink) Emit(_ context.Context, _ *eventsink.UserEvent) error {
	return nil
}

// EmitBatch discards the events.
func (s *Sink) EmitBatch(_ context.Context, _ []*eventsink.UserEvent) error {
	return nil
}

// Flush is a no-op.
func (s *Sink) Flush(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Sink) Close() error {
	return nil
}

var _ eventsink.Sink = (*Sink)(nil)
