// Package file provides the JSONL event sink. Events append to
// <base>/<projectID>/events/<date>.jsonl, bucketed by each event's own
// UTC timestamp, and aggregates are computed from the log at query time —
// there is no precomputed index.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/eventsink"
	"github.com/aigolabs/aig/pkg/health"
)

// Sink implements eventsink.Sink and eventsink.Aggregator on the local
// filesystem.
type Sink struct {
	baseDir string
	logger  *zap.Logger
}

// Config holds configuration for the file event sink.
type Config struct {
	// BaseDir is the root directory holding one subdirectory per project.
	BaseDir string
}

// NewSink creates a file event sink rooted at c.BaseDir.
func NewSink(c Config, logger *zap.Logger) (*Sink, error) {
	if c.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	if err := os.MkdirAll(c.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	logger.Info("file event sink initialized",
		zap.String("base_dir", c.BaseDir),
	)

	return &Sink{baseDir: c.BaseDir, logger: logger}, nil
}

func (s *Sink) eventsDir(projectID string) string {
	return filepath.Join(s.baseDir, projectID, "events")
}

// HealthCheck verifies the base directory is writable.
func (s *Sink) HealthCheck(_ context.Context) health.Report {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return health.Unhealthy(err)
	}

	report := health.Healthy("file event sink accessible")
	report.PendingEvents = health.Int(0)

	return report
}

// Emit records a single event.
func (s *Sink) Emit(ctx context.Context, event *eventsink.UserEvent) error {
	return s.EmitBatch(ctx, []*eventsink.UserEvent{event})
}

// EmitBatch groups events by (project, UTC day of the event's own
// timestamp) and appends each as one JSON line. Events missing an ID get
// a synthetic one before persisting.
func (s *Sink) EmitBatch(_ context.Context, events []*eventsink.UserEvent) error {
	if len(events) == 0 {
		return nil
	}

	type bucket struct {
		projectID string
		date      string
	}
	grouped := make(map[bucket][]*eventsink.UserEvent)
	for _, event := range events {
		if event.EventID == "" {
			event.EventID = eventsink.NewEventID()
		}
		key := bucket{projectID: event.Project(), date: eventsink.Day(event.Timestamp)}
		grouped[key] = append(grouped[key], event)
	}

	for key, batch := range grouped {
		dir := s.eventsDir(key.projectID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating events directory: %w", err)
		}

		path := filepath.Join(dir, key.date+".jsonl")
		if err := appendLines(path, batch); err != nil {
			return fmt.Errorf("appending events for %s: %w", key.date, err)
		}
	}

	s.logger.Debug("emitted events",
		zap.Int("count", len(events)),
	)

	return nil
}

// appendLines writes each event as one complete line write so concurrent
// appenders cannot interleave partial lines.
func appendLines(path string, events []*eventsink.UserEvent) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return err
		}
	}

	return nil
}

// Flush is a no-op: every emit writes through to disk.
func (s *Sink) Flush(_ context.Context) error {
	return nil
}

// GetAggregates scans every day in the inclusive range, counts surviving
// events per (date, eventType) and sums the total. Missing day files
// contribute zero; corrupt lines are dropped, not fatal.
func (s *Sink) GetAggregates(_ context.Context, query *eventsink.AggregateQuery) (*eventsink.AggregateResult, error) {
	allowed := map[string]bool{}
	for _, t := range query.EventTypes {
		allowed[t] = true
	}

	result := &eventsink.AggregateResult{
		Query:   query,
		Results: []eventsink.AggregateRow{},
	}

	start := query.StartDate.UTC().Truncate(24 * time.Hour)
	end := query.EndDate.UTC().Truncate(24 * time.Hour)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format(eventsink.DateLayout)
		counts, err := s.countDay(query.ProjectID, date, allowed)
		if err != nil {
			return nil, err
		}
		if len(counts) == 0 {
			continue
		}

		types := make([]string, 0, len(counts))
		for eventType := range counts {
			types = append(types, eventType)
		}
		sort.Strings(types)

		for _, eventType := range types {
			count := counts[eventType]
			result.TotalCount += count
			result.Results = append(result.Results, eventsink.AggregateRow{
				Date:      date,
				EventType: eventType,
				Metrics:   map[string]float64{"count": float64(count)},
			})
		}
	}

	return result, nil
}

// countDay reads one day file and counts events by type, honoring the
// allow-list when non-empty.
func (s *Sink) countDay(projectID, date string, allowed map[string]bool) (map[string]int, error) {
	path := filepath.Join(s.eventsDir(projectID), date+".jsonl")

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("opening events for %s: %w", date, err)
	}
	defer f.Close()

	counts := map[string]int{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event eventsink.UserEvent
		if err := json.Unmarshal(line, &event); err != nil {
			// Corrupt lines are best-effort analytics data, skip them.
			continue
		}

		if len(allowed) > 0 && !allowed[event.EventType] {
			continue
		}
		counts[event.EventType]++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading events for %s: %w", date, err)
	}

	return counts, nil
}

// Close is a no-op for the file sink.
func (s *Sink) Close() error {
	return nil
}

var (
	_ eventsink.Sink       = (*Sink)(nil)
	_ eventsink.Aggregator = (*Sink)(nil)
)
