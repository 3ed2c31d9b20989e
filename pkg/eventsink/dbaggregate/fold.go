package dbaggregate

import "github.com/aigolabs/aig/pkg/eventsink"

// Counts holds the per-project deltas folded out of one batch.
type Counts struct {
	// PageViews maps projectID -> page-view increment.
	PageViews map[string]int

	// FunnelSteps maps projectID -> step name -> increment.
	FunnelSteps map[string]map[string]int
}

// Fold classifies a batch into counter deltas. Exactly "page_view"
// increments the page-view counter; "funnel_<step>" increments the named
// step; every other event type is dropped without error.
func Fold(events []*eventsink.UserEvent) Counts {
	counts := Counts{
		PageViews:   map[string]int{},
		FunnelSteps: map[string]map[string]int{},
	}

	for _, event := range events {
		projectID := event.Project()

		if event.EventType == eventsink.EventTypePageView {
			counts.PageViews[projectID]++
			continue
		}

		if step, ok := eventsink.FunnelStep(event.EventType); ok {
			if counts.FunnelSteps[projectID] == nil {
				counts.FunnelSteps[projectID] = map[string]int{}
			}
			counts.FunnelSteps[projectID][step]++
		}
	}

	return counts
}
