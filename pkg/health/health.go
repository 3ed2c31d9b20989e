// Package health defines the shared health-report shape returned by every
// adapter's HealthCheck. HealthCheck is the one total operation in the
// system: implementers must map internal failures to an Unhealthy report
// instead of returning an error.
package health

// Status is the three-state health classification for a backend.
type Status string

const (
	// StatusHealthy means the backend is fully reachable and operational.
	StatusHealthy Status = "healthy"

	// StatusDegraded signals partial capability, e.g. a remote endpoint
	// that is reachable but returned a non-success status.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means the backend cannot serve requests.
	StatusUnhealthy Status = "unhealthy"
)

// Report is the result of an adapter health check.
type Report struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`

	// PendingEvents is set by event sinks that buffer undelivered events.
	PendingEvents *int `json:"pendingEvents,omitempty"`

	// DocumentCount is set by vector stores that can cheaply count documents.
	DocumentCount *int `json:"documentCount,omitempty"`
}

// Healthy builds a healthy report with the given message.
func Healthy(message string) Report {
	return Report{Status: StatusHealthy, Message: message}
}

// Degraded builds a degraded report with the given message.
func Degraded(message string) Report {
	return Report{Status: StatusDegraded, Message: message}
}

// Unhealthy builds an unhealthy report from a failure. The error message
// becomes the diagnostic message so callers never need the error itself.
func Unhealthy(err error) Report {
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}

	return Report{Status: StatusUnhealthy, Message: msg}
}

// Int returns a pointer to v, for populating the optional counter fields.
func Int(v int) *int {
	return &v
}
