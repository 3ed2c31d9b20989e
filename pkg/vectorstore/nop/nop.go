// Package nop provides the disabled vector store used when similarity
// search is turned off. Writes are discarded and queries return empty
// results.
package nop

import (
	"context"

	"github.com/aigolabs/aig/pkg/health"
	"github.com/aigolabs/aig/pkg/vectorstore"
)

// Store is a no-op vector store.
type Store struct{}

// NewStore creates a new no-op vector store.
func NewStore() *Store {
	return &Store{}
}

// HealthCheck always reports healthy with a zero document count.
func (s *Store) HealthCheck(_ context.Context) health.Report {
	report := health.Healthy("none adapter (vector store disabled)")
	report.DocumentCount = health.Int(0)

	return report
}

// Upsert discards the document.
func (s *Store) Upsert(_ context.Context, _ string, _ *vectorstore.Document) error {
	return nil
}

// UpsertBatch discards the documents.
func (s *Store) UpsertBatch(_ context.Context, _ string, _ []*vectorstore.Document) error {
	return nil
}

// Query returns an empty result.
func (s *Store) Query(_ context.Context, _ string, query *vectorstore.Query) (*vectorstore.QueryResult, error) {
	return &vectorstore.QueryResult{
		Query:      query,
		Results:    []vectorstore.Match{},
		TotalFound: 0,
	}, nil
}

// Delete is a no-op.
func (s *Store) Delete(_ context.Context, _, _ string) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

var _ vectorstore.Store = (*Store)(nil)
