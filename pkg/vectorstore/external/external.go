// Package external provides the HTTP vector store: operations forward to
// a remote service's /health, /upsert, /query and /delete endpoints with
// bearer auth, bounded retry and metadata redaction.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/health"
	"github.com/aigolabs/aig/pkg/redact"
	"github.com/aigolabs/aig/pkg/vectorstore"
)

const (
	// DefaultRetries bounds attempts per request.
	DefaultRetries = 3

	// DefaultRetryBaseDelay is doubled per attempt for backoff.
	DefaultRetryBaseDelay = time.Second

	// maxQueryTextLen truncates outbound query text.
	maxQueryTextLen = 1000

	healthTimeout  = 5 * time.Second
	requestTimeout = 30 * time.Second
)

// Store implements vectorstore.Store over a remote HTTP service.
type Store struct {
	endpoint       string
	apiKey         string
	retries        int
	retryBaseDelay time.Duration
	httpClient     *http.Client
	logger         *zap.Logger
}

// Config holds configuration for the external vector store.
type Config struct {
	// Endpoint is the vector service base URL. Required.
	Endpoint string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Retries defaults to DefaultRetries if zero.
	Retries int

	// RetryBaseDelay defaults to DefaultRetryBaseDelay if zero.
	RetryBaseDelay time.Duration
}

// NewStore creates an external vector store client.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	if c.Endpoint == "" {
		return nil, fmt.Errorf("external vector endpoint is required")
	}

	retries := c.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	baseDelay := c.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}

	return &Store{
		endpoint:       c.Endpoint,
		apiKey:         c.APIKey,
		retries:        retries,
		retryBaseDelay: baseDelay,
		httpClient:     &http.Client{Timeout: requestTimeout},
		logger:         logger,
	}, nil
}

// HealthCheck probes GET /health. A reachable service returning a
// non-success status is degraded, not unhealthy.
func (s *Store) HealthCheck(ctx context.Context) health.Report {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/health", nil)
	if err != nil {
		return health.Unhealthy(err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return health.Unhealthy(err)
	}
	defer resp.Body.Close()

	var body struct {
		DocumentCount *int `json:"documentCount"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	message := fmt.Sprintf("external vector store responded with %d", resp.StatusCode)
	report := health.Degraded(message)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		report = health.Healthy(message)
	}
	report.DocumentCount = body.DocumentCount

	return report
}

func (s *Store) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
}

// Upsert forwards a single document.
func (s *Store) Upsert(ctx context.Context, projectID string, doc *vectorstore.Document) error {
	return s.UpsertBatch(ctx, projectID, []*vectorstore.Document{doc})
}

// UpsertBatch forwards the batch to POST /upsert with redacted metadata.
func (s *Store) UpsertBatch(ctx context.Context, projectID string, docs []*vectorstore.Document) error {
	outbound := make([]*vectorstore.Document, len(docs))
	for i, doc := range docs {
		clone := *doc
		clone.Metadata = redact.Map(doc.Metadata)
		outbound[i] = &clone
	}

	return s.requestWithRetry(ctx, "/upsert", map[string]any{
		"projectId": projectID,
		"documents": outbound,
	}, nil)
}

// Query forwards the query to POST /query, truncating long query text.
func (s *Store) Query(ctx context.Context, projectID string, query *vectorstore.Query) (*vectorstore.QueryResult, error) {
	outbound := *query
	if len(outbound.Text) > maxQueryTextLen {
		outbound.Text = outbound.Text[:maxQueryTextLen]
	}

	var result vectorstore.QueryResult
	err := s.requestWithRetry(ctx, "/query", map[string]any{
		"projectId": projectID,
		"query":     &outbound,
	}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Delete forwards the deletion to POST /delete.
func (s *Store) Delete(ctx context.Context, projectID, documentID string) error {
	return s.requestWithRetry(ctx, "/delete", map[string]any{
		"projectId":  projectID,
		"documentId": documentID,
	}, nil)
}

// requestWithRetry POSTs body to path with bounded exponential backoff.
// Only the final attempt's error surfaces. A non-nil out receives the
// decoded response body.
func (s *Store) requestWithRetry(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

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

		lastErr = s.request(ctx, path, payload, out)
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("request to %s failed: %w", path, lastErr)
}

func (s *Store) request(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(payload))
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

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// Close is a no-op; the HTTP client needs no cleanup.
func (s *Store) Close() error {
	return nil
}

var _ vectorstore.Store = (*Store)(nil)
