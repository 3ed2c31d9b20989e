// Package storage defines the StorageAdapter contract for persisting
// projects, runs, artifacts and audit log entries. Concrete backends live
// in the subpackages (file, mysql, postgres) and are constructed through
// pkg/adapters; callers only ever hold the Adapter interface.
package storage

import (
	"context"

	"github.com/aigolabs/aig/pkg/health"
)

// Adapter persists project state for one backend technology.
//
// A constructed Adapter is ready for use; constructors fail instead of
// returning a half-initialized value. Every data operation may fail and
// propagates the backend's error, except HealthCheck which is total.
type Adapter interface {
	// HealthCheck probes backend reachability. It never returns an error:
	// internal failures are reported as an unhealthy status.
	HealthCheck(ctx context.Context) health.Report

	// LoadProject returns the project's data payload. A missing project is
	// an error (ErrProjectNotFound), unlike artifact lookups.
	LoadProject(ctx context.Context, projectID string) (map[string]any, error)

	// SaveProject stores the project payload, creating the project on
	// first save. Last write wins.
	SaveProject(ctx context.Context, projectID string, data map[string]any) error

	// CreateRun records a new run under the project. Run metadata is
	// immutable after creation.
	CreateRun(ctx context.Context, projectID, runID string, metadata map[string]any) error

	// ListRuns enumerates run IDs for the project. Ordering is
	// backend-defined: relational backends return newest first, the file
	// backend returns lexical directory order.
	ListRuns(ctx context.Context, projectID string) ([]string, error)

	// SaveArtifact upserts the artifact for (run, artifactType), replacing
	// any prior artifact of the same type.
	SaveArtifact(ctx context.Context, projectID, runID, artifactType string, artifact *Artifact) error

	// LoadArtifact returns the artifact, or nil (no error) when absent.
	LoadArtifact(ctx context.Context, projectID, runID, artifactType string) (*Artifact, error)

	// AppendAuditLog appends an entry to the run's audit log. The entry is
	// stamped with the current time at write; entries are never mutated.
	AppendAuditLog(ctx context.Context, projectID, runID string, entry map[string]any) error

	// Close releases backend resources (pools, file handles).
	Close() error
}

// LeadSaver is an optional capability for storing captured leads.
// Callers detect support with a type assertion; absence means the backend
// does not support leads, not that an error occurred.
type LeadSaver interface {
	SaveLead(ctx context.Context, projectID string, lead map[string]any) error
}

// OrderSaver is an optional capability for storing orders.
type OrderSaver interface {
	SaveOrder(ctx context.Context, projectID string, order map[string]any) error
}

// Artifact is a named JSON blob attached to one run, overwritable by type.
type Artifact struct {
	Type          string         `json:"type"`
	SchemaVersion string         `json:"schemaVersion"`
	GeneratedAt   string         `json:"generatedAt"`
	Payload       map[string]any `json:"payload"`
}
