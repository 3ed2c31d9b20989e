// Package mysql provides the MySQL storage backend over sqlx.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // register the "mysql" driver
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/health"
	"github.com/aigolabs/aig/pkg/storage"
)

// Adapter implements storage.Adapter backed by a MySQL database.
type Adapter struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Config holds MySQL connection settings. URL takes precedence over the
// discrete fields when set.
type Config struct {
	// URL is a go-sql-driver DSN, e.g. "user:pass@tcp(host:3306)/aig".
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN renders the effective connection string. parseTime is forced on so
// DATE/TIMESTAMP columns scan into time.Time.
func (c Config) DSN() string {
	if c.URL != "" {
		return withParseTime(c.URL)
	}

	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, host, port, c.Database)
}

func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	return dsn + sep + "parseTime=true"
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id VARCHAR(255) PRIMARY KEY,
		data JSON NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS runs (
		id VARCHAR(255) PRIMARY KEY,
		project_id VARCHAR(255) NOT NULL,
		metadata JSON NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_runs_project_id (project_id),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS artifacts (
		id VARCHAR(255) PRIMARY KEY,
		project_id VARCHAR(255) NOT NULL,
		run_id VARCHAR(255) NOT NULL,
		artifact_type VARCHAR(255) NOT NULL,
		artifact_data JSON NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_artifacts_project_run (project_id, run_id),
		INDEX idx_artifacts_type (artifact_type),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		project_id VARCHAR(255) NOT NULL,
		run_id VARCHAR(255) NOT NULL,
		entry_data JSON NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_audit_log_project_run (project_id, run_id),
		INDEX idx_audit_log_created_at (created_at),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

// NewAdapter connects to MySQL, verifies the connection and creates the
// schema idempotently.
func NewAdapter(ctx context.Context, c Config, logger *zap.Logger) (*Adapter, error) {
	if c.URL == "" && c.Database == "" {
		return nil, fmt.Errorf("mysql config requires a url or database name")
	}

	db, err := sqlx.Open("mysql", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	logger.Info("mysql storage initialized",
		zap.String("database", c.Database),
	)

	return &Adapter{db: db, logger: logger}, nil
}

// HealthCheck pings the database.
func (a *Adapter) HealthCheck(ctx context.Context) health.Report {
	if err := a.db.PingContext(ctx); err != nil {
		return health.Unhealthy(err)
	}

	return health.Healthy("mysql connection OK")
}

// LoadProject returns the project payload or ErrProjectNotFound.
func (a *Adapter) LoadProject(ctx context.Context, projectID string) (map[string]any, error) {
	var raw []byte
	err := a.db.QueryRowxContext(ctx,
		`SELECT data FROM projects WHERE id = ?`, projectID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrProjectNotFound{ProjectID: projectID}
	}
	if err != nil {
		return nil, fmt.Errorf("querying project %s: %w", projectID, err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding project %s: %w", projectID, err)
	}

	return data, nil
}

// SaveProject upserts the project payload, last write wins.
func (a *Adapter) SaveProject(ctx context.Context, projectID string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding project %s: %w", projectID, err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO projects (id, data) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE data = ?, updated_at = CURRENT_TIMESTAMP`,
		projectID, raw, raw,
	)
	if err != nil {
		return fmt.Errorf("saving project %s: %w", projectID, err)
	}

	return nil
}

// CreateRun inserts a run row. Duplicate run IDs fail.
func (a *Adapter) CreateRun(ctx context.Context, projectID, runID string, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding run metadata: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO runs (id, project_id, metadata) VALUES (?, ?, ?)`,
		runID, projectID, raw,
	)
	if err != nil {
		return fmt.Errorf("creating run %s: %w", runID, err)
	}

	return nil
}

// ListRuns returns run IDs newest first.
func (a *Adapter) ListRuns(ctx context.Context, projectID string) ([]string, error) {
	runs := []string{}
	err := a.db.SelectContext(ctx, &runs,
		`SELECT id FROM runs WHERE project_id = ? ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

// SaveArtifact upserts the artifact under the composite id
// "<runID>-<artifactType>".
func (a *Adapter) SaveArtifact(ctx context.Context, projectID, runID, artifactType string, artifact *storage.Artifact) error {
	raw, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, project_id, run_id, artifact_type, artifact_data)
		 VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE artifact_data = ?`,
		artifactID(runID, artifactType), projectID, runID, artifactType, raw, raw,
	)
	if err != nil {
		return fmt.Errorf("saving artifact %s: %w", artifactType, err)
	}

	return nil
}

// LoadArtifact returns the artifact, or nil when absent.
func (a *Adapter) LoadArtifact(ctx context.Context, projectID, runID, artifactType string) (*storage.Artifact, error) {
	var raw []byte
	err := a.db.QueryRowxContext(ctx,
		`SELECT artifact_data FROM artifacts WHERE id = ? AND project_id = ?`,
		artifactID(runID, artifactType), projectID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying artifact %s: %w", artifactType, err)
	}

	var artifact storage.Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("decoding artifact %s: %w", artifactType, err)
	}

	return &artifact, nil
}

// AppendAuditLog inserts an entry stamped with the current time.
func (a *Adapter) AppendAuditLog(ctx context.Context, projectID, runID string, entry map[string]any) error {
	raw, err := json.Marshal(storage.StampEntry(entry))
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO audit_log (project_id, run_id, entry_data) VALUES (?, ?, ?)`,
		projectID, runID, raw,
	)
	if err != nil {
		return fmt.Errorf("appending audit log: %w", err)
	}

	return nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

func artifactID(runID, artifactType string) string {
	return runID + "-" + artifactType
}

var _ storage.Adapter = (*Adapter)(nil)
