package file_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/eventsink"
	"github.com/aigolabs/aig/pkg/eventsink/file"
	"github.com/aigolabs/aig/pkg/health"
)

func pageView(projectID string, ts time.Time) *eventsink.UserEvent {
	return &eventsink.UserEvent{
		EventType: eventsink.EventTypePageView,
		Timestamp: ts,
		ProjectID: projectID,
		Properties: map[string]any{
			"page": "/",
		},
	}
}

var _ = Describe("Sink", func() {
	var (
		sink    *file.Sink
		baseDir string
		ctx     context.Context
	)

	day1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	BeforeEach(func() {
		ctx = context.Background()
		baseDir = GinkgoT().TempDir()

		logger, _ := zap.NewDevelopment()
		var err error
		sink, err = file.NewSink(file.Config{BaseDir: baseDir}, logger)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		sink.Close()
	})

	Describe("HealthCheck", func() {
		It("reports healthy with zero pending events", func() {
			report := sink.HealthCheck(ctx)
			Expect(report.Status).To(Equal(health.StatusHealthy))
			Expect(report.PendingEvents).To(HaveValue(Equal(0)))
		})
	})

	Describe("EmitBatch", func() {
		It("buckets events by the event's own UTC day", func() {
			events := []*eventsink.UserEvent{
				pageView("proj-1", day1),
				pageView("proj-1", day2),
			}
			Expect(sink.EmitBatch(ctx, events)).To(Succeed())

			eventsDir := filepath.Join(baseDir, "proj-1", "events")
			for _, name := range []string{"2026-03-01.jsonl", "2026-03-02.jsonl"} {
				_, err := os.Stat(filepath.Join(eventsDir, name))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("assigns event IDs to events lacking one", func() {
			event := pageView("proj-1", day1)
			Expect(sink.Emit(ctx, event)).To(Succeed())
			Expect(event.EventID).To(MatchRegexp(`^evt-\d+-[0-9a-f]{7}$`))
		})

		It("preserves a caller-supplied event ID", func() {
			event := pageView("proj-1", day1)
			event.EventID = "evt-custom"
			Expect(sink.Emit(ctx, event)).To(Succeed())
			Expect(event.EventID).To(Equal("evt-custom"))
		})

		It("routes events without a project to the default project", func() {
			Expect(sink.Emit(ctx, pageView("", day1))).To(Succeed())

			_, err := os.Stat(filepath.Join(baseDir, "default", "events", "2026-03-01.jsonl"))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("GetAggregates", func() {
		BeforeEach(func() {
			events := []*eventsink.UserEvent{
				pageView("proj-1", day1),
				pageView("proj-1", day1),
				pageView("proj-1", day2),
				{EventType: "funnel_signup", Timestamp: day1, ProjectID: "proj-1"},
			}
			Expect(sink.EmitBatch(ctx, events)).To(Succeed())
		})

		It("counts per day and event type with a summed total", func() {
			result, err := sink.GetAggregates(ctx, &eventsink.AggregateQuery{
				ProjectID: "proj-1",
				StartDate: day1,
				EndDate:   day2,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.TotalCount).To(Equal(4))
			Expect(result.Results).To(Equal([]eventsink.AggregateRow{
				{Date: "2026-03-01", EventType: "funnel_signup", Metrics: map[string]float64{"count": 1}},
				{Date: "2026-03-01", EventType: "page_view", Metrics: map[string]float64{"count": 2}},
				{Date: "2026-03-02", EventType: "page_view", Metrics: map[string]float64{"count": 1}},
			}))
		})

		It("honors the event type allow-list", func() {
			result, err := sink.GetAggregates(ctx, &eventsink.AggregateQuery{
				ProjectID:  "proj-1",
				StartDate:  day1,
				EndDate:    day2,
				EventTypes: []string{"page_view"},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.TotalCount).To(Equal(3))
			for _, row := range result.Results {
				Expect(row.EventType).To(Equal("page_view"))
			}
		})

		It("treats days without files as zero", func() {
			result, err := sink.GetAggregates(ctx, &eventsink.AggregateQuery{
				ProjectID: "proj-1",
				StartDate: day2.AddDate(0, 0, 5),
				EndDate:   day2.AddDate(0, 0, 7),
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.TotalCount).To(BeZero())
			Expect(result.Results).To(BeEmpty())
		})

		It("skips corrupt lines", func() {
			path := filepath.Join(baseDir, "proj-1", "events", "2026-03-01.jsonl")
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.WriteString("{not json\n")
			Expect(err).NotTo(HaveOccurred())
			f.Close()

			result, err := sink.GetAggregates(ctx, &eventsink.AggregateQuery{
				ProjectID: "proj-1",
				StartDate: day1,
				EndDate:   day1,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.TotalCount).To(Equal(3))
		})
	})
})
