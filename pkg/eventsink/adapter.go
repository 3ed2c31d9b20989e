// Package eventsink defines the EventSinkAdapter contract for recording
// user events and querying their daily aggregates. Backends either persist
// raw events (file, kafka, external) or fold them into daily counters at
// write time (dbaggregate) — the aggregate result shape is identical
// either way, so callers can swap backends freely.
package eventsink

import (
	"context"
	"time"

	"github.com/aigolabs/aig/pkg/health"
)

// DefaultProjectID is used when an event carries no project ID.
const DefaultProjectID = "default"

// DateLayout is the calendar-day format used for bucketing and range
// queries, always in UTC.
const DateLayout = "2006-01-02"

// Sink records user events for one backend technology.
type Sink interface {
	// HealthCheck probes backend reachability; never returns an error.
	HealthCheck(ctx context.Context) health.Report

	// Emit records a single event. Equivalent to EmitBatch with one event.
	Emit(ctx context.Context, event *UserEvent) error

	// EmitBatch records a batch of events. Write-once: events are never
	// updated or deleted afterwards.
	EmitBatch(ctx context.Context, events []*UserEvent) error

	// Flush drains any buffered events. A no-op for sinks that commit
	// synchronously in EmitBatch.
	Flush(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Aggregator is the optional query capability. Sinks that cannot answer
// aggregate queries simply do not implement it; callers detect support
// with a type assertion and treat absence as "unsupported".
type Aggregator interface {
	GetAggregates(ctx context.Context, query *AggregateQuery) (*AggregateResult, error)
}

// UserEvent is a single recorded user interaction.
type UserEvent struct {
	// EventID is assigned by the sink when empty, as evt-<epoch-ms>-<suffix>.
	EventID    string         `json:"eventId,omitempty"`
	EventType  string         `json:"eventType"`
	Timestamp  time.Time      `json:"timestamp"`
	UserID     string         `json:"userId,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
	ProjectID  string         `json:"projectId,omitempty"`
	RunID      string         `json:"runId,omitempty"`
	Properties map[string]any `json:"properties"`
}

// Project returns the event's project ID, falling back to DefaultProjectID.
func (e *UserEvent) Project() string {
	if e.ProjectID == "" {
		return DefaultProjectID
	}

	return e.ProjectID
}

// AggregateQuery selects daily aggregate rows for one project over an
// inclusive [StartDate, EndDate] day range.
type AggregateQuery struct {
	ProjectID string `json:"projectId"`

	// StartDate and EndDate bound the range; only the UTC calendar day of
	// each is significant.
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`

	// EventTypes, when non-empty, is an allow-list of event types.
	EventTypes []string `json:"eventTypes,omitempty"`

	GroupBy []string `json:"groupBy,omitempty"`

	// Metrics defaults to ["count"].
	Metrics []string `json:"metrics,omitempty"`
}

// AggregateRow is one (date, eventType) result row.
type AggregateRow struct {
	Date      string             `json:"date"`
	EventType string             `json:"eventType"`
	Metrics   map[string]float64 `json:"metrics"`
	Groups    map[string]string  `json:"groups,omitempty"`
}

// AggregateResult carries the rows plus the sum of all row counts.
type AggregateResult struct {
	Query      *AggregateQuery `json:"query"`
	Results    []AggregateRow  `json:"results"`
	TotalCount int             `json:"totalCount"`
}
