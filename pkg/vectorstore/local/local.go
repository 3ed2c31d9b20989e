// Package local provides the SQLite-backed vector store. Each project
// owns one embedded database file (<base>/<projectID>/vectors.sqlite),
// opened lazily and cached; targeting a different project closes the
// previous handle and opens the new one.
//
// Search is brute force: every stored embedding is scanned and scored
// with cosine similarity. Acceptable at the per-project scale this store
// serves; an approximate index could be slotted behind the same Query
// contract later.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3" // register the "sqlite3" driver
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aigolabs/aig/pkg/embeddings"
	"github.com/aigolabs/aig/pkg/health"
	"github.com/aigolabs/aig/pkg/vectorstore"
)

const dbFileName = "vectors.sqlite"

const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		embedding TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
`

// Store implements vectorstore.Store on per-project SQLite files.
type Store struct {
	baseDir string
	logger  *zap.Logger

	mu       sync.Mutex
	project  string
	db       *sql.DB
	embedder embeddings.Embedder
}

// Config holds configuration for the local vector store.
type Config struct {
	// BaseDir is the root directory holding one subdirectory per project.
	BaseDir string
}

// NewStore creates a local vector store rooted at c.BaseDir. No database
// is opened until the first operation names a project.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	if c.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	if err := os.MkdirAll(c.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	logger.Info("local vector store initialized",
		zap.String("base_dir", c.BaseDir),
	)

	return &Store{baseDir: c.BaseDir, logger: logger}, nil
}

// SetEmbedder injects the embedding client. Injection happens after
// construction because the client may not exist until the caller has
// validated credentials.
func (s *Store) SetEmbedder(e embeddings.Embedder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedder = e
}

// handle returns the open database for projectID, swapping the cached
// handle when the target project changes. Callers must hold s.mu.
func (s *Store) handle(projectID string) (*sql.DB, error) {
	if s.db != nil && s.project == projectID {
		return s.db, nil
	}

	if s.db != nil {
		s.db.Close()
		s.db = nil
		s.project = ""
	}

	dir := filepath.Join(s.baseDir, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	s.db = db
	s.project = projectID

	return db, nil
}

// HealthCheck verifies the base directory and, when a project database is
// open, counts its documents.
func (s *Store) HealthCheck(ctx context.Context) health.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.baseDir); err != nil {
		return health.Unhealthy(err)
	}

	if s.db == nil {
		return health.Healthy("local vector store ready (no project open)")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return health.Unhealthy(err)
	}

	report := health.Healthy(fmt.Sprintf("local vector store ready (project %s)", s.project))
	report.DocumentCount = health.Int(count)

	return report
}

// Upsert stores or replaces a single document.
func (s *Store) Upsert(ctx context.Context, projectID string, doc *vectorstore.Document) error {
	return s.UpsertBatch(ctx, projectID, []*vectorstore.Document{doc})
}

// UpsertBatch embeds any document lacking an embedding (concurrently —
// the computations are independent), then writes all rows in one
// transaction with insert-or-replace-by-id semantics. The batch fully
// succeeds or fully fails.
func (s *Store) UpsertBatch(ctx context.Context, projectID string, docs []*vectorstore.Document) error {
	if len(docs) == 0 {
		return nil
	}

	if err := s.embedMissing(ctx, docs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.handle(projectID)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		metadata := doc.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metaJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for doc %s: %w", doc.ID, err)
		}
		embJSON, err := json.Marshal(doc.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding for doc %s: %w", doc.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO documents (id, text, metadata, embedding) VALUES (?, ?, ?, ?)`,
			doc.ID, doc.Text, string(metaJSON), string(embJSON),
		); err != nil {
			return fmt.Errorf("upserting doc %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("upserted documents",
		zap.String("project", projectID),
		zap.Int("count", len(docs)),
	)

	return nil
}

// embedMissing fills in embeddings for documents that lack one. Requires
// an injected embedder; its absence is a fatal precondition.
func (s *Store) embedMissing(ctx context.Context, docs []*vectorstore.Document) error {
	s.mu.Lock()
	embedder := s.embedder
	s.mu.Unlock()

	var missing []*vectorstore.Document
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			missing = append(missing, doc)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if embedder == nil {
		return vectorstore.ErrNoEmbedder
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, doc := range missing {
		doc := doc
		g.Go(func() error {
			embedding, err := embedder.Embed(ctx, doc.Text)
			if err != nil {
				return fmt.Errorf("%w: doc %s: %v", vectorstore.ErrEmbedding, doc.ID, err)
			}
			doc.Embedding = embedding

			return nil
		})
	}

	return g.Wait()
}

// Query embeds the query text (always freshly computed), scans every
// stored embedding, scores by cosine similarity, applies the optional
// threshold and returns the top K. TotalFound counts documents that
// passed the threshold before truncation.
func (s *Store) Query(ctx context.Context, projectID string, query *vectorstore.Query) (*vectorstore.QueryResult, error) {
	// Embed outside the lock; the remote round-trip must not serialize
	// unrelated store operations.
	s.mu.Lock()
	embedder := s.embedder
	s.mu.Unlock()

	if embedder == nil {
		return nil, vectorstore.ErrNoEmbedder
	}

	queryEmbedding, err := embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", vectorstore.ErrEmbedding, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.handle(projectID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, text, metadata, embedding FROM documents`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var matches []vectorstore.Match
	for rows.Next() {
		var id, text, metaJSON, embJSON string
		if err := rows.Scan(&id, &text, &metaJSON, &embJSON); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}

		var metadata map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
			metadata = map[string]any{}
		}
		var embedding []float64
		if err := json.Unmarshal([]byte(embJSON), &embedding); err != nil {
			embedding = nil
		}

		// Dimension mismatches score zero rather than failing the query.
		score := vectorstore.Cosine(queryEmbedding, embedding)
		if query.Threshold != nil && score < *query.Threshold {
			continue
		}

		matches = append(matches, vectorstore.Match{
			Document: &vectorstore.Document{
				ID:        id,
				Text:      text,
				Metadata:  metadata,
				Embedding: embedding,
			},
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	// Stable sort keeps equal scores in scan order, so the same input
	// always yields the same output ordering.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	totalFound := len(matches)
	topK := query.TopK
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	if matches == nil {
		matches = []vectorstore.Match{}
	}

	return &vectorstore.QueryResult{
		Query:      query,
		Results:    matches,
		TotalFound: totalFound,
	}, nil
}

// Delete removes a document by ID; deleting an absent ID succeeds.
func (s *Store) Delete(ctx context.Context, projectID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.handle(projectID)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM documents WHERE id = ?`, documentID,
	); err != nil {
		return fmt.Errorf("deleting doc %s: %w", documentID, err)
	}

	return nil
}

// Close releases the cached database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	s.project = ""

	return err
}

var _ vectorstore.Store = (*Store)(nil)
