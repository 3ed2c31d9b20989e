// Package file provides the file-tree storage backend. Each project owns
// a directory under the base dir:
//
//	<base>/<projectID>/meta.json
//	<base>/<projectID>/runs/<runID>/00_run_meta.json
//	<base>/<projectID>/runs/<runID>/<artifactType>.json
//	<base>/<projectID>/runs/<runID>/70_audit_log.jsonl
//	<base>/<projectID>/leads/<leadID>.json
//	<base>/<projectID>/orders/<orderID>.json
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/health"
	"github.com/aigolabs/aig/pkg/storage"
)

const (
	metaFile     = "meta.json"
	runMetaFile  = "00_run_meta.json"
	auditLogFile = "70_audit_log.jsonl"
)

// Adapter implements storage.Adapter on the local filesystem.
type Adapter struct {
	baseDir string
	logger  *zap.Logger
}

// Config holds configuration for the file storage backend.
type Config struct {
	// BaseDir is the root directory holding one subdirectory per project.
	BaseDir string
}

// NewAdapter creates a file storage backend rooted at c.BaseDir, creating
// the directory if needed.
func NewAdapter(c Config, logger *zap.Logger) (*Adapter, error) {
	if c.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	if err := os.MkdirAll(c.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	logger.Info("file storage initialized",
		zap.String("base_dir", c.BaseDir),
	)

	return &Adapter{
		baseDir: c.BaseDir,
		logger:  logger,
	}, nil
}

func (a *Adapter) projectDir(projectID string) string {
	return filepath.Join(a.baseDir, projectID)
}

func (a *Adapter) runDir(projectID, runID string) string {
	return filepath.Join(a.baseDir, projectID, "runs", runID)
}

// HealthCheck verifies the base directory is present and writable.
func (a *Adapter) HealthCheck(_ context.Context) health.Report {
	if err := os.MkdirAll(a.baseDir, 0o755); err != nil {
		return health.Unhealthy(err)
	}

	probe, err := os.CreateTemp(a.baseDir, ".health-*")
	if err != nil {
		return health.Unhealthy(err)
	}
	probe.Close()
	os.Remove(probe.Name())

	report := health.Healthy("file storage accessible")
	report.Details = map[string]any{
		"baseDir":  a.baseDir,
		"writable": true,
	}

	return report
}

// LoadProject reads the project's meta.json. A missing project is an
// error, unlike artifact lookups.
func (a *Adapter) LoadProject(_ context.Context, projectID string) (map[string]any, error) {
	path := filepath.Join(a.projectDir(projectID), metaFile)

	var data map[string]any
	if err := readJSON(path, &data); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrProjectNotFound{ProjectID: projectID}
		}

		return nil, fmt.Errorf("reading project %s: %w", projectID, err)
	}

	return data, nil
}

// SaveProject writes the project's meta.json, creating the project
// directory on first save. Last write wins.
func (a *Adapter) SaveProject(_ context.Context, projectID string, data map[string]any) error {
	dir := a.projectDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, metaFile), data); err != nil {
		return fmt.Errorf("writing project %s: %w", projectID, err)
	}

	return nil
}

// CreateRun creates the run directory and writes its metadata file.
func (a *Adapter) CreateRun(_ context.Context, projectID, runID string, metadata map[string]any) error {
	dir := a.runDir(projectID, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, runMetaFile), metadata); err != nil {
		return fmt.Errorf("writing run metadata: %w", err)
	}

	return nil
}

// ListRuns returns the run directory names, sorted lexically for
// determinism. A project without runs yields an empty slice.
func (a *Adapter) ListRuns(_ context.Context, projectID string) ([]string, error) {
	runsDir := filepath.Join(a.projectDir(projectID), "runs")

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}

		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	runs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			runs = append(runs, entry.Name())
		}
	}
	sort.Strings(runs)

	return runs, nil
}

// SaveArtifact writes <artifactType>.json into the run directory,
// replacing any prior artifact of the same type.
func (a *Adapter) SaveArtifact(_ context.Context, projectID, runID, artifactType string, artifact *storage.Artifact) error {
	dir := a.runDir(projectID, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, artifactType+".json"), artifact); err != nil {
		return fmt.Errorf("writing artifact %s: %w", artifactType, err)
	}

	return nil
}

// LoadArtifact returns the stored artifact, or nil when absent.
func (a *Adapter) LoadArtifact(_ context.Context, projectID, runID, artifactType string) (*storage.Artifact, error) {
	path := filepath.Join(a.runDir(projectID, runID), artifactType+".json")

	var artifact storage.Artifact
	if err := readJSON(path, &artifact); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading artifact %s: %w", artifactType, err)
	}

	return &artifact, nil
}

// AppendAuditLog appends one JSONL entry stamped with the current time.
// Any timestamp in the input entry is overwritten.
func (a *Adapter) AppendAuditLog(_ context.Context, projectID, runID string, entry map[string]any) error {
	dir := a.runDir(projectID, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	if err := appendJSONL(filepath.Join(dir, auditLogFile), storage.StampEntry(entry)); err != nil {
		return fmt.Errorf("appending audit log: %w", err)
	}

	return nil
}

// SaveLead stores a lead under leads/<id>.json, stamping createdAt.
func (a *Adapter) SaveLead(_ context.Context, projectID string, lead map[string]any) error {
	return a.saveRecord(projectID, "leads", "lead", lead)
}

// SaveOrder stores an order under orders/<id>.json, stamping createdAt.
func (a *Adapter) SaveOrder(_ context.Context, projectID string, order map[string]any) error {
	return a.saveRecord(projectID, "orders", "order", order)
}

func (a *Adapter) saveRecord(projectID, subdir, kind string, record map[string]any) error {
	dir := filepath.Join(a.projectDir(projectID), subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", subdir, err)
	}

	id, _ := record["id"].(string)
	if id == "" {
		id = fmt.Sprintf("%s-%d", kind, time.Now().UnixMilli())
	}

	stamped := make(map[string]any, len(record)+1)
	for k, v := range record {
		stamped[k] = v
	}
	stamped["createdAt"] = time.Now().UTC().Format(time.RFC3339)

	if err := writeJSON(filepath.Join(dir, id+".json"), stamped); err != nil {
		return fmt.Errorf("writing %s %s: %w", kind, id, err)
	}

	return nil
}

// Close is a no-op for the file backend.
func (a *Adapter) Close() error {
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

// appendJSONL writes one JSON line with a single write call so concurrent
// appenders cannot interleave partial lines.
func appendJSONL(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

var (
	_ storage.Adapter    = (*Adapter)(nil)
	_ storage.LeadSaver  = (*Adapter)(nil)
	_ storage.OrderSaver = (*Adapter)(nil)
)
