package dbaggregate

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aigolabs/aig/pkg/eventsink"
)

func event(projectID, eventType string) *eventsink.UserEvent {
	return &eventsink.UserEvent{ProjectID: projectID, EventType: eventType}
}

var _ = Describe("Fold", func() {
	It("counts page views per project", func() {
		counts := Fold([]*eventsink.UserEvent{
			event("proj-1", "page_view"),
			event("proj-1", "page_view"),
			event("proj-2", "page_view"),
		})

		Expect(counts.PageViews).To(Equal(map[string]int{
			"proj-1": 2,
			"proj-2": 1,
		}))
		Expect(counts.FunnelSteps).To(BeEmpty())
	})

	It("counts funnel steps by step name", func() {
		counts := Fold([]*eventsink.UserEvent{
			event("proj-1", "funnel_signup"),
			event("proj-1", "funnel_signup"),
			event("proj-1", "funnel_checkout"),
		})

		Expect(counts.FunnelSteps).To(Equal(map[string]map[string]int{
			"proj-1": {"signup": 2, "checkout": 1},
		}))
		Expect(counts.PageViews).To(BeEmpty())
	})

	It("drops unknown event types silently", func() {
		counts := Fold([]*eventsink.UserEvent{
			event("proj-1", "click"),
			event("proj-1", "scroll_depth"),
		})

		Expect(counts.PageViews).To(BeEmpty())
		Expect(counts.FunnelSteps).To(BeEmpty())
	})

	It("attributes project-less events to the default project", func() {
		counts := Fold([]*eventsink.UserEvent{
			event("", "page_view"),
		})

		Expect(counts.PageViews).To(Equal(map[string]int{
			eventsink.DefaultProjectID: 1,
		}))
	})

	It("keeps funnel steps isolated across projects", func() {
		counts := Fold([]*eventsink.UserEvent{
			event("proj-1", "funnel_signup"),
			event("proj-2", "funnel_signup"),
		})

		Expect(counts.FunnelSteps["proj-1"]).To(Equal(map[string]int{"signup": 1}))
		Expect(counts.FunnelSteps["proj-2"]).To(Equal(map[string]int{"signup": 1}))
	})
})
