package eventsink

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// EventTypePageView marks a page-view event, counted in the page-view
	// aggregate dimension.
	EventTypePageView = "page_view"

	// FunnelPrefix marks funnel-step events; the remainder of the event
	// type names the step (funnel_signup -> step "signup").
	FunnelPrefix = "funnel_"
)

// FunnelStep extracts the step name from a funnel event type. The second
// return is false for non-funnel types.
func FunnelStep(eventType string) (string, bool) {
	if !strings.HasPrefix(eventType, FunnelPrefix) {
		return "", false
	}

	return strings.TrimPrefix(eventType, FunnelPrefix), true
}

// NewEventID generates a synthetic event ID in the form
// evt-<epoch-millis>-<7-char-suffix>.
func NewEventID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("evt-%d-%s", time.Now().UnixMilli(), suffix)
}

// Day formats t as the UTC calendar day used for bucketing.
func Day(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
