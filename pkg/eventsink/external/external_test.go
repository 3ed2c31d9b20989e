package external_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/eventsink"
	"github.com/aigolabs/aig/pkg/eventsink/external"
	"github.com/aigolabs/aig/pkg/health"
	"github.com/aigolabs/aig/pkg/redact"
)

// collector is a test endpoint recording every batch it accepts. Setting
// failures makes it reject that many requests first.
type collector struct {
	mu       sync.Mutex
	failures int
	batches  [][]map[string]any
	headers  []http.Header
}

func (c *collector) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.headers = append(c.headers, r.Header.Clone())

		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}

		if c.failures > 0 {
			c.failures--
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var payload struct {
			Events []map[string]any `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.batches = append(c.batches, payload.Events)
		w.WriteHeader(http.StatusOK)
	}
}

func (c *collector) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

var _ = Describe("Sink", func() {
	var (
		coll   *collector
		server *httptest.Server
		sink   *external.Sink
		ctx    context.Context
	)

	newSink := func(endpoint string) *external.Sink {
		logger, _ := zap.NewDevelopment()
		s, err := external.NewSink(external.Config{
			Endpoint:       endpoint,
			APIKey:         "test-key",
			RetryBaseDelay: time.Millisecond,
		}, logger)
		Expect(err).NotTo(HaveOccurred())

		return s
	}

	BeforeEach(func() {
		ctx = context.Background()
		coll = &collector{}
		server = httptest.NewServer(coll.handler())
		sink = newSink(server.URL)
	})

	AfterEach(func() {
		sink.Close()
		server.Close()
	})

	Describe("NewSink", func() {
		It("requires an endpoint", func() {
			logger, _ := zap.NewDevelopment()
			_, err := external.NewSink(external.Config{}, logger)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("EmitBatch", func() {
		event := func() *eventsink.UserEvent {
			return &eventsink.UserEvent{
				EventType: "page_view",
				Timestamp: time.Now().UTC(),
				ProjectID: "proj-1",
				Properties: map[string]any{
					"page":   "/pricing",
					"apiKey": "sk-secret",
				},
			}
		}

		It("delivers events with bearer auth", func() {
			Expect(sink.Emit(ctx, event())).To(Succeed())

			Expect(coll.batchCount()).To(Equal(1))
			Expect(coll.headers[0].Get("Authorization")).To(Equal("Bearer test-key"))
		})

		It("redacts sensitive properties on the wire but not in memory", func() {
			e := event()
			Expect(sink.Emit(ctx, e)).To(Succeed())

			sent := coll.batches[0][0]
			props := sent["properties"].(map[string]any)
			Expect(props).To(HaveKeyWithValue("apiKey", redact.Marker))
			Expect(props).To(HaveKeyWithValue("page", "/pricing"))

			Expect(e.Properties).To(HaveKeyWithValue("apiKey", "sk-secret"))
		})

		It("retries transient failures", func() {
			coll.failures = 2
			Expect(sink.Emit(ctx, event())).To(Succeed())
			Expect(coll.batchCount()).To(Equal(1))
		})

		It("queues events after exhausting retries", func() {
			coll.failures = 10
			Expect(sink.Emit(ctx, event())).NotTo(Succeed())

			report := sink.HealthCheck(ctx)
			Expect(report.PendingEvents).To(HaveValue(Equal(1)))
		})
	})

	Describe("Flush", func() {
		It("is a no-op with nothing pending", func() {
			Expect(sink.Flush(ctx)).To(Succeed())
			Expect(coll.batchCount()).To(BeZero())
		})

		It("delivers queued events once the endpoint recovers", func() {
			coll.failures = 10
			Expect(sink.Emit(ctx, &eventsink.UserEvent{EventType: "page_view"})).NotTo(Succeed())

			coll.mu.Lock()
			coll.failures = 0
			coll.mu.Unlock()

			Expect(sink.Flush(ctx)).To(Succeed())
			Expect(coll.batchCount()).To(Equal(1))

			report := sink.HealthCheck(ctx)
			Expect(report.PendingEvents).To(HaveValue(Equal(0)))
		})

		It("re-queues events when the endpoint is still failing", func() {
			coll.failures = 100
			Expect(sink.Emit(ctx, &eventsink.UserEvent{EventType: "page_view"})).NotTo(Succeed())
			Expect(sink.Flush(ctx)).NotTo(Succeed())

			report := sink.HealthCheck(ctx)
			Expect(report.PendingEvents).To(HaveValue(Equal(1)))
		})
	})

	Describe("HealthCheck", func() {
		It("reports healthy for a reachable endpoint", func() {
			report := sink.HealthCheck(ctx)
			Expect(report.Status).To(Equal(health.StatusHealthy))
		})

		It("reports unhealthy for an unreachable endpoint", func() {
			down := newSink("http://127.0.0.1:1")
			report := down.HealthCheck(ctx)
			Expect(report.Status).To(Equal(health.StatusUnhealthy))
		})
	})
})
