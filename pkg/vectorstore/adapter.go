// Package vectorstore defines the VectorStoreAdapter contract for
// embedding-backed similarity search over per-project document sets.
package vectorstore

import (
	"context"

	"github.com/aigolabs/aig/pkg/health"
)

// DefaultTopK is used when a query does not specify how many results to
// return.
const DefaultTopK = 5

// Store provides upsert-by-id document storage and top-K similarity
// retrieval for one backend technology. Each project's documents live in
// an isolated namespace keyed by projectID.
type Store interface {
	// HealthCheck probes backend reachability; never returns an error.
	HealthCheck(ctx context.Context) health.Report

	// Upsert stores or replaces a single document by ID.
	Upsert(ctx context.Context, projectID string, doc *Document) error

	// UpsertBatch stores or replaces documents atomically: the batch fully
	// succeeds or fully fails. Documents without an embedding have one
	// computed from their text, which requires an embedding client.
	UpsertBatch(ctx context.Context, projectID string, docs []*Document) error

	// Query returns the top-K most similar documents to the query text,
	// sorted by descending similarity.
	Query(ctx context.Context, projectID string, query *Query) (*QueryResult, error)

	// Delete removes a document by ID. Deleting an absent ID is a no-op.
	Delete(ctx context.Context, projectID, documentID string) error

	// Close releases backend resources.
	Close() error
}

// Document is a stored item with its text, metadata and embedding.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`

	// Embedding is computed from Text on upsert when empty.
	Embedding []float64 `json:"embedding,omitempty"`
}

// Query describes a similarity search.
type Query struct {
	Text string `json:"text"`

	// TopK defaults to DefaultTopK when zero.
	TopK int `json:"topK"`

	Filter map[string]any `json:"filter,omitempty"`

	// Threshold, when non-nil, discards results scoring below it before
	// truncation to TopK.
	Threshold *float64 `json:"threshold,omitempty"`
}

// Match pairs a document with its similarity score.
type Match struct {
	Document *Document `json:"document"`
	Score    float64   `json:"score"`
}

// QueryResult carries the matches plus the count of documents that passed
// the threshold filter before truncation to TopK.
type QueryResult struct {
	Query      *Query  `json:"query"`
	Results    []Match `json:"results"`
	TotalFound int     `json:"totalFound"`
}
