package adapters

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/embeddings"
	"github.com/aigolabs/aig/pkg/eventsink"
	"github.com/aigolabs/aig/pkg/storage"
	"github.com/aigolabs/aig/pkg/vectorstore"
)

// embedderSetter is implemented by vector stores that compute embeddings
// themselves and need a client injected after construction.
type embedderSetter interface {
	SetEmbedder(embeddings.Embedder)
}

// Set bundles one constructed adapter per capability.
type Set struct {
	Storage     storage.Adapter
	EventSink   eventsink.Sink
	VectorStore vectorstore.Store
	Embedder    embeddings.Embedder
}

// NewSet constructs all three adapters plus the embedder and wires the
// embedder into the vector store when it accepts one. Construction is
// all-or-nothing: any failure closes what was already built.
func NewSet(ctx context.Context, c Config, logger *zap.Logger) (*Set, error) {
	s := &Set{}

	var err error
	if s.Storage, err = NewStorage(ctx, c, logger); err != nil {
		return nil, err
	}
	if s.EventSink, err = NewEventSink(ctx, c, logger); err != nil {
		s.Close()
		return nil, err
	}
	if s.VectorStore, err = NewVectorStore(c, logger); err != nil {
		s.Close()
		return nil, err
	}
	if s.Embedder, err = NewEmbedder(c.Embedding); err != nil {
		s.Close()
		return nil, err
	}

	if setter, ok := s.VectorStore.(embedderSetter); ok && s.Embedder != nil {
		setter.SetEmbedder(s.Embedder)
	}

	return s, nil
}

// Close releases every constructed adapter, returning the joined errors.
func (s *Set) Close() error {
	var errs []error
	if s.Embedder != nil {
		errs = append(errs, s.Embedder.Close())
	}
	if s.VectorStore != nil {
		errs = append(errs, s.VectorStore.Close())
	}
	if s.EventSink != nil {
		errs = append(errs, s.EventSink.Close())
	}
	if s.Storage != nil {
		errs = append(errs, s.Storage.Close())
	}

	return errors.Join(errs...)
}
