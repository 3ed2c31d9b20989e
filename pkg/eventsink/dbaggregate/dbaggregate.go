// Package dbaggregate provides the daily-counter event sink. Raw events
// are never stored: each batch is folded into per-day counters and the
// deltas merge into two tables via atomic insert-or-accumulate upserts,
// so concurrent writers targeting the same (project, date[, step]) key
// never lose increments.
//
// Counters bucket by the wall-clock UTC date at emit time, not the
// event's own timestamp. That diverges from the file sink, which buckets
// by event timestamp; the event timestamp is the authoritative contract
// for new backends.
package dbaggregate

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // register the "mysql" driver
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/eventsink"
	"github.com/aigolabs/aig/pkg/health"
)

// Dialect selects the SQL flavor for the aggregate tables.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// Sink implements eventsink.Sink and eventsink.Aggregator over a
// relational database holding only aggregated counters.
type Sink struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *zap.Logger
}

// Config holds configuration for the DB-aggregate sink.
type Config struct {
	// Dialect is mysql or postgres; it must match the DSN.
	Dialect Dialect

	// DSN is the connection string for the chosen dialect.
	DSN string
}

var migrations = map[Dialect][]string{
	DialectMySQL: {
		`CREATE TABLE IF NOT EXISTS daily_page_views (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			project_id VARCHAR(255) NOT NULL,
			date DATE NOT NULL,
			count INT DEFAULT 0,
			UNIQUE KEY unique_project_date (project_id, date),
			INDEX idx_page_views_project (project_id),
			INDEX idx_page_views_date (date)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS daily_funnel_steps (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			project_id VARCHAR(255) NOT NULL,
			date DATE NOT NULL,
			step VARCHAR(255) NOT NULL,
			count INT DEFAULT 0,
			UNIQUE KEY unique_project_date_step (project_id, date, step),
			INDEX idx_funnel_steps_project (project_id),
			INDEX idx_funnel_steps_date (date)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS daily_page_views (
			id BIGSERIAL PRIMARY KEY,
			project_id VARCHAR(255) NOT NULL,
			date DATE NOT NULL,
			count INT DEFAULT 0,
			UNIQUE (project_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_page_views_project ON daily_page_views(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_page_views_date ON daily_page_views(date)`,
		`CREATE TABLE IF NOT EXISTS daily_funnel_steps (
			id BIGSERIAL PRIMARY KEY,
			project_id VARCHAR(255) NOT NULL,
			date DATE NOT NULL,
			step VARCHAR(255) NOT NULL,
			count INT DEFAULT 0,
			UNIQUE (project_id, date, step)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_funnel_steps_project ON daily_funnel_steps(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_funnel_steps_date ON daily_funnel_steps(date)`,
	},
}

func driverName(d Dialect) (string, error) {
	switch d {
	case DialectMySQL:
		return "mysql", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported dialect: %s", d)
	}
}

// NewSink connects to the database and creates the counter tables
// idempotently.
func NewSink(ctx context.Context, c Config, logger *zap.Logger) (*Sink, error) {
	driver, err := driverName(c.Dialect)
	if err != nil {
		return nil, err
	}
	if c.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := sqlx.Open(driver, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	for _, stmt := range migrations[c.Dialect] {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	logger.Info("db-aggregate event sink initialized",
		zap.String("dialect", string(c.Dialect)),
	)

	return &Sink{db: db, dialect: c.Dialect, logger: logger}, nil
}

// HealthCheck pings the database.
func (s *Sink) HealthCheck(ctx context.Context) health.Report {
	if err := s.db.PingContext(ctx); err != nil {
		return health.Unhealthy(err)
	}

	report := health.Healthy(fmt.Sprintf("db-aggregate event sink ready (%s)", s.dialect))
	report.PendingEvents = health.Int(0)

	return report
}

// Emit records a single event.
func (s *Sink) Emit(ctx context.Context, event *eventsink.UserEvent) error {
	return s.EmitBatch(ctx, []*eventsink.UserEvent{event})
}

// EmitBatch folds the batch into per-key deltas under today's wall-clock
// UTC date and merges each delta with one atomic upsert. Event types that
// are neither page views nor funnel steps are silently dropped.
func (s *Sink) EmitBatch(ctx context.Context, events []*eventsink.UserEvent) error {
	if len(events) == 0 {
		return nil
	}

	date := time.Now().UTC().Format(eventsink.DateLayout)
	counts := Fold(events)

	for projectID, delta := range counts.PageViews {
		if err := s.upsertPageViews(ctx, projectID, date, delta); err != nil {
			return err
		}
	}

	for projectID, steps := range counts.FunnelSteps {
		for step, delta := range steps {
			if err := s.upsertFunnelStep(ctx, projectID, date, step, delta); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Sink) upsertPageViews(ctx context.Context, projectID, date string, delta int) error {
	var err error
	switch s.dialect {
	case DialectMySQL:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO daily_page_views (project_id, date, count)
			 VALUES (?, ?, ?)
			 ON DUPLICATE KEY UPDATE count = count + ?`,
			projectID, date, delta, delta,
		)
	case DialectPostgres:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO daily_page_views (project_id, date, count)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (project_id, date) DO UPDATE SET count = daily_page_views.count + $3`,
			projectID, date, delta,
		)
	}
	if err != nil {
		return fmt.Errorf("upserting page views for %s: %w", projectID, err)
	}

	return nil
}

func (s *Sink) upsertFunnelStep(ctx context.Context, projectID, date, step string, delta int) error {
	var err error
	switch s.dialect {
	case DialectMySQL:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO daily_funnel_steps (project_id, date, step, count)
			 VALUES (?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE count = count + ?`,
			projectID, date, step, delta, delta,
		)
	case DialectPostgres:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO daily_funnel_steps (project_id, date, step, count)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (project_id, date, step) DO UPDATE SET count = daily_funnel_steps.count + $4`,
			projectID, date, step, delta,
		)
	}
	if err != nil {
		return fmt.Errorf("upserting funnel step %s for %s: %w", step, projectID, err)
	}

	return nil
}

// Flush is a no-op: every EmitBatch commits before returning.
func (s *Sink) Flush(_ context.Context) error {
	return nil
}

// GetAggregates issues a grouped range query over the page-view table,
// plus the funnel table only when the allow-list names a funnel type.
func (s *Sink) GetAggregates(ctx context.Context, query *eventsink.AggregateQuery) (*eventsink.AggregateResult, error) {
	result := &eventsink.AggregateResult{
		Query:   query,
		Results: []eventsink.AggregateRow{},
	}

	start := query.StartDate.UTC().Format(eventsink.DateLayout)
	end := query.EndDate.UTC().Format(eventsink.DateLayout)

	if err := s.queryPageViews(ctx, query.ProjectID, start, end, result); err != nil {
		return nil, err
	}

	if wantsFunnel(query.EventTypes) {
		if err := s.queryFunnelSteps(ctx, query.ProjectID, start, end, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func wantsFunnel(eventTypes []string) bool {
	for _, t := range eventTypes {
		if _, ok := eventsink.FunnelStep(t); ok {
			return true
		}
	}

	return false
}

func (s *Sink) queryPageViews(ctx context.Context, projectID, start, end string, result *eventsink.AggregateResult) error {
	stmt := `SELECT date, SUM(count) AS count
		 FROM daily_page_views
		 WHERE project_id = ? AND date >= ? AND date <= ?
		 GROUP BY date
		 ORDER BY date`
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(stmt), projectID, start, end)
	if err != nil {
		return fmt.Errorf("querying page views: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var date time.Time
		var count int
		if err := rows.Scan(&date, &count); err != nil {
			return fmt.Errorf("scanning page view row: %w", err)
		}

		result.TotalCount += count
		result.Results = append(result.Results, eventsink.AggregateRow{
			Date:      date.UTC().Format(eventsink.DateLayout),
			EventType: eventsink.EventTypePageView,
			Metrics:   map[string]float64{"count": float64(count)},
		})
	}

	return rows.Err()
}

func (s *Sink) queryFunnelSteps(ctx context.Context, projectID, start, end string, result *eventsink.AggregateResult) error {
	stmt := `SELECT date, step, SUM(count) AS count
		 FROM daily_funnel_steps
		 WHERE project_id = ? AND date >= ? AND date <= ?
		 GROUP BY date, step
		 ORDER BY date, step`
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(stmt), projectID, start, end)
	if err != nil {
		return fmt.Errorf("querying funnel steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var date time.Time
		var step string
		var count int
		if err := rows.Scan(&date, &step, &count); err != nil {
			return fmt.Errorf("scanning funnel step row: %w", err)
		}

		result.TotalCount += count
		result.Results = append(result.Results, eventsink.AggregateRow{
			Date:      date.UTC().Format(eventsink.DateLayout),
			EventType: eventsink.FunnelPrefix + step,
			Metrics:   map[string]float64{"count": float64(count)},
		})
	}

	return rows.Err()
}

// Close releases the connection pool.
func (s *Sink) Close() error {
	return s.db.Close()
}

var (
	_ eventsink.Sink       = (*Sink)(nil)
	_ eventsink.Aggregator = (*Sink)(nil)
)
