// Package external provides the HTTP event sink: events forward to a
// remote collector with bearer auth, bounded retry and sensitive-key
// redaction. Failed batches land in an in-memory pending queue drained by
// Flush — at-least-once within the process lifetime, lost on crash.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/eventsink"
	"github.com/aigolabs/aig/pkg/health"
	"github.com/aigolabs/aig/pkg/redact"
)

const (
	// DefaultRetries bounds send attempts per batch.
	DefaultRetries = 3

	// DefaultRetryBaseDelay is doubled per attempt for backoff.
	DefaultRetryBaseDelay = time.Second

	healthTimeout  = 5 * time.Second
	requestTimeout = 10 * time.Second
)

// Sink implements eventsink.Sink over a remote HTTP collector.
type Sink struct {
	endpoint       string
	apiKey         string
	retries        int
	retryBaseDelay time.Duration
	httpClient     *http.Client
	logger         *zap.Logger

	mu      sync.Mutex
	pending []*eventsink.UserEvent
}

// Config holds configuration for the external event sink.
type Config struct {
	// Endpoint is the collector URL events POST to. Required.
	Endpoint string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Retries defaults to DefaultRetries if zero.
	Retries int

	// RetryBaseDelay defaults to DefaultRetryBaseDelay if zero.
	RetryBaseDelay time.Duration
}

// NewSink creates an external event sink.
func NewSink(c Config, logger *zap.Logger) (*Sink, error) {
	if c.Endpoint == "" {
		return nil, fmt.Errorf("external endpoint is required")
	}

	retries := c.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	baseDelay := c.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}

	return &Sink{
		endpoint:       c.Endpoint,
		apiKey:         c.APIKey,
		retries:        retries,
		retryBaseDelay: baseDelay,
		httpClient:     &http.Client{Timeout: requestTimeout},
		logger:         logger,
	}, nil
}

// HealthCheck probes the endpoint with a HEAD request. A reachable
// endpoint returning a non-success status is degraded, not unhealthy.
func (s *Sink) HealthCheck(ctx context.Context) health.Report {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.endpoint, nil)
	if err != nil {
		return s.withPending(health.Unhealthy(err))
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return s.withPending(health.Unhealthy(err))
	}
	defer resp.Body.Close()

	message := fmt.Sprintf("external endpoint responded with %d", resp.StatusCode)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return s.withPending(health.Healthy(message))
	}

	return s.withPending(health.Degraded(message))
}

func (s *Sink) withPending(report health.Report) health.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	report.PendingEvents = health.Int(len(s.pending))

	return report
}

func (s *Sink) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
}

// Emit forwards a single event.
func (s *Sink) Emit(ctx context.Context, event *eventsink.UserEvent) error {
	return s.EmitBatch(ctx, []*eventsink.UserEvent{event})
}

// EmitBatch sends the batch with retry. On final failure the original
// events are queued for a later Flush and the last attempt's error is
// returned.
func (s *Sink) EmitBatch(ctx context.Context, events []*eventsink.UserEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		if event.EventID == "" {
			event.EventID = eventsink.NewEventID()
		}
	}

	if err := s.sendWithRetry(ctx, events); err != nil {
		s.mu.Lock()
		s.pending = append(s.pending, events...)
		s.mu.Unlock()

		return fmt.Errorf("sending events to external endpoint: %w", err)
	}

	return nil
}

func (s *Sink) sendWithRetry(ctx context.Context, events []*eventsink.UserEvent) error {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			delay := s.retryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = s.send(ctx, events)
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}

func (s *Sink) send(ctx context.Context, events []*eventsink.UserEvent) error {
	payload := struct {
		Events []*eventsink.UserEvent `json:"events"`
	}{Events: make([]*eventsink.UserEvent, len(events))}

	// Redacted copies only; the caller's events stay untouched.
	for i, event := range events {
		clone := *event
		clone.Properties = redact.Map(event.Properties)
		payload.Events[i] = &clone
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(snippet))
	}

	return nil
}

// Flush retries everything pending. Events are re-queued at the front if
// the retry fails again.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	toRetry := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(toRetry) == 0 {
		return nil
	}

	if err := s.sendWithRetry(ctx, toRetry); err != nil {
		s.mu.Lock()
		s.pending = append(toRetry, s.pending...)
		s.mu.Unlock()

		return fmt.Errorf("flushing pending events: %w", err)
	}

	s.logger.Debug("flushed pending events",
		zap.Int("count", len(toRetry)),
	)

	return nil
}

// Close is a no-op; pending events are not persisted.
func (s *Sink) Close() error {
	return nil
}

var _ eventsink.Sink = (*Sink)(nil)
