package external_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/health"
	"github.com/aigolabs/aig/pkg/redact"
	"github.com/aigolabs/aig/pkg/vectorstore"
	"github.com/aigolabs/aig/pkg/vectorstore/external"
)

// vectorService is a test endpoint recording every request body by path.
type vectorService struct {
	mu       sync.Mutex
	failures int
	requests map[string][]map[string]any
	queryRes *vectorstore.QueryResult
}

func newVectorService() *vectorService {
	return &vectorService{requests: map[string][]map[string]any{}}
}

func (s *vectorService) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if r.URL.Path == "/health" {
			json.NewEncoder(w).Encode(map[string]any{"documentCount": 7})
			return
		}

		if s.failures > 0 {
			s.failures--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.requests[r.URL.Path] = append(s.requests[r.URL.Path], body)

		if r.URL.Path == "/query" {
			res := s.queryRes
			if res == nil {
				res = &vectorstore.QueryResult{Results: []vectorstore.Match{}}
			}
			json.NewEncoder(w).Encode(res)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *vectorService) lastRequest(path string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs := s.requests[path]
	Expect(reqs).NotTo(BeEmpty())

	return reqs[len(reqs)-1]
}

var _ = Describe("Store", func() {
	var (
		service *vectorService
		server  *httptest.Server
		store   *external.Store
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		service = newVectorService()
		server = httptest.NewServer(service.handler())

		logger, _ := zap.NewDevelopment()
		var err error
		store, err = external.NewStore(external.Config{
			Endpoint:       server.URL,
			APIKey:         "test-key",
			RetryBaseDelay: time.Millisecond,
		}, logger)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		store.Close()
		server.Close()
	})

	Describe("NewStore", func() {
		It("requires an endpoint", func() {
			logger, _ := zap.NewDevelopment()
			_, err := external.NewStore(external.Config{}, logger)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("UpsertBatch", func() {
		It("forwards documents with redacted metadata", func() {
			doc := &vectorstore.Document{
				ID:   "d1",
				Text: "hello",
				Metadata: map[string]any{
					"source": "faq",
					"token":  "secret-token",
				},
			}
			Expect(store.Upsert(ctx, "proj-1", doc)).To(Succeed())

			body := service.lastRequest("/upsert")
			Expect(body).To(HaveKeyWithValue("projectId", "proj-1"))

			docs := body["documents"].([]any)
			sent := docs[0].(map[string]any)
			metadata := sent["metadata"].(map[string]any)
			Expect(metadata).To(HaveKeyWithValue("token", redact.Marker))
			Expect(metadata).To(HaveKeyWithValue("source", "faq"))

			Expect(doc.Metadata).To(HaveKeyWithValue("token", "secret-token"))
		})

		It("retries transient failures", func() {
			service.failures = 2
			Expect(store.Upsert(ctx, "proj-1", &vectorstore.Document{ID: "d1", Text: "hello"})).To(Succeed())
		})

		It("surfaces the final error after exhausting retries", func() {
			service.failures = 10
			err := store.Upsert(ctx, "proj-1", &vectorstore.Document{ID: "d1", Text: "hello"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Query", func() {
		It("decodes the remote result", func() {
			service.queryRes = &vectorstore.QueryResult{
				Results: []vectorstore.Match{
					{Document: &vectorstore.Document{ID: "d1", Text: "hello"}, Score: 0.9},
				},
				TotalFound: 1,
			}

			result, err := store.Query(ctx, "proj-1", &vectorstore.Query{Text: "hi", TopK: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.TotalFound).To(Equal(1))
			Expect(result.Results[0].Document.ID).To(Equal("d1"))
		})

		It("truncates overlong query text", func() {
			long := strings.Repeat("x", 5000)
			_, err := store.Query(ctx, "proj-1", &vectorstore.Query{Text: long})
			Expect(err).NotTo(HaveOccurred())

			body := service.lastRequest("/query")
			query := body["query"].(map[string]any)
			Expect(query["text"]).To(HaveLen(1000))
		})
	})

	Describe("Delete", func() {
		It("forwards the document ID", func() {
			Expect(store.Delete(ctx, "proj-1", "d1")).To(Succeed())

			body := service.lastRequest("/delete")
			Expect(body).To(HaveKeyWithValue("projectId", "proj-1"))
			Expect(body).To(HaveKeyWithValue("documentId", "d1"))
		})
	})

	Describe("HealthCheck", func() {
		It("reports healthy with the remote document count", func() {
			report := store.HealthCheck(ctx)
			Expect(report.Status).To(Equal(health.StatusHealthy))
			Expect(report.DocumentCount).To(HaveValue(Equal(7)))
		})

		It("reports unhealthy for an unreachable service", func() {
			logger, _ := zap.NewDevelopment()
			down, err := external.NewStore(external.Config{Endpoint: "http://127.0.0.1:1"}, logger)
			Expect(err).NotTo(HaveOccurred())

			report := down.HealthCheck(ctx)
			Expect(report.Status).To(Equal(health.StatusUnhealthy))
		})
	})
})
