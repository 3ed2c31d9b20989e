// Package adapters constructs the concrete persistence, event sink and
// vector store backends from configuration. It is the only package that
// knows every backend; callers hold the interfaces and switch backends
// by changing config alone.
package adapters

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/embeddings"
	"github.com/aigolabs/aig/pkg/embeddings/ollama"
	"github.com/aigolabs/aig/pkg/embeddings/openai"
	"github.com/aigolabs/aig/pkg/eventsink"
	"github.com/aigolabs/aig/pkg/eventsink/dbaggregate"
	esexternal "github.com/aigolabs/aig/pkg/eventsink/external"
	esfile "github.com/aigolabs/aig/pkg/eventsink/file"
	"github.com/aigolabs/aig/pkg/eventsink/kafka"
	esnop "github.com/aigolabs/aig/pkg/eventsink/nop"
	"github.com/aigolabs/aig/pkg/storage"
	stfile "github.com/aigolabs/aig/pkg/storage/file"
	"github.com/aigolabs/aig/pkg/storage/mysql"
	"github.com/aigolabs/aig/pkg/storage/postgres"
	"github.com/aigolabs/aig/pkg/vectorstore"
	vsexternal "github.com/aigolabs/aig/pkg/vectorstore/external"
	vslocal "github.com/aigolabs/aig/pkg/vectorstore/local"
	vsnop "github.com/aigolabs/aig/pkg/vectorstore/nop"
)

// Backend discriminator values. An empty discriminator selects the
// default; an unrecognized one is a construction error, never a silent
// fallback.
const (
	StorageFile     = "file"
	StorageMySQL    = "mysql"
	StoragePostgres = "postgres"

	EventSinkNone        = "none"
	EventSinkFile        = "file"
	EventSinkDBAggregate = "db-aggregate"
	EventSinkExternal    = "external"
	EventSinkKafka       = "kafka"

	VectorStoreNone     = "none"
	VectorStoreLocal    = "local"
	VectorStoreExternal = "external"

	EmbeddingNone   = "none"
	EmbeddingOllama = "ollama"
	EmbeddingOpenAI = "openai"
)

// Config selects and parameterizes one backend per capability.
type Config struct {
	// Storage selects the storage backend: file (default), mysql, postgres.
	Storage string

	// EventSink selects the event sink: none (default), file,
	// db-aggregate, external, kafka.
	EventSink string

	// VectorStore selects the vector store: none (default), local,
	// external.
	VectorStore string

	// BaseDir roots the file-backed adapters (file storage, file event
	// sink, local vector store).
	BaseDir string

	MySQL    mysql.Config
	Postgres postgres.Config

	// ExternalEvents parameterizes the external event sink.
	ExternalEvents esexternal.Config

	// ExternalVectors parameterizes the external vector store.
	ExternalVectors vsexternal.Config

	Kafka kafka.Config

	Embedding EmbeddingConfig
}

// EmbeddingConfig selects the embedding provider for the local vector
// store: none (default), ollama, openai.
type EmbeddingConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
}

// NewStorage constructs the configured storage adapter.
func NewStorage(ctx context.Context, c Config, logger *zap.Logger) (storage.Adapter, error) {
	backend := c.Storage
	if backend == "" {
		backend = StorageFile
	}

	switch backend {
	case StorageFile:
		return stfile.NewAdapter(stfile.Config{BaseDir: c.BaseDir}, logger)
	case StorageMySQL:
		return mysql.NewAdapter(ctx, c.MySQL, logger)
	case StoragePostgres:
		return postgres.NewAdapter(ctx, c.Postgres, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
}

// NewEventSink constructs the configured event sink. The db-aggregate
// sink shares the relational storage backend: its dialect and DSN come
// from the storage configuration, so it requires Storage to be mysql or
// postgres.
func NewEventSink(ctx context.Context, c Config, logger *zap.Logger) (eventsink.Sink, error) {
	backend := c.EventSink
	if backend == "" {
		backend = EventSinkNone
	}

	switch backend {
	case EventSinkNone:
		return esnop.NewSink(), nil
	case EventSinkFile:
		return esfile.NewSink(esfile.Config{BaseDir: c.BaseDir}, logger)
	case EventSinkDBAggregate:
		cfg, err := aggregateConfig(c)
		if err != nil {
			return nil, err
		}

		return dbaggregate.NewSink(ctx, cfg, logger)
	case EventSinkExternal:
		return esexternal.NewSink(c.ExternalEvents, logger)
	case EventSinkKafka:
		return kafka.NewSink(c.Kafka, logger)
	default:
		return nil, fmt.Errorf("unsupported event sink backend: %s", backend)
	}
}

func aggregateConfig(c Config) (dbaggregate.Config, error) {
	switch c.Storage {
	case StorageMySQL:
		return dbaggregate.Config{
			Dialect: dbaggregate.DialectMySQL,
			DSN:     c.MySQL.DSN(),
		}, nil
	case StoragePostgres:
		return dbaggregate.Config{
			Dialect: dbaggregate.DialectPostgres,
			DSN:     c.Postgres.URL,
		}, nil
	default:
		return dbaggregate.Config{}, fmt.Errorf("db-aggregate event sink requires mysql or postgres storage, got %q", c.Storage)
	}
}

// NewVectorStore constructs the configured vector store. The local store
// needs an embedder before it can serve queries; wire one in with
// SetEmbedder after construction (see NewEmbedder).
func NewVectorStore(c Config, logger *zap.Logger) (vectorstore.Store, error) {
	backend := c.VectorStore
	if backend == "" {
		backend = VectorStoreNone
	}

	switch backend {
	case VectorStoreNone:
		return vsnop.NewStore(), nil
	case VectorStoreLocal:
		return vslocal.NewStore(vslocal.Config{BaseDir: c.BaseDir}, logger)
	case VectorStoreExternal:
		return vsexternal.NewStore(c.ExternalVectors, logger)
	default:
		return nil, fmt.Errorf("unsupported vector store backend: %s", backend)
	}
}

// NewEmbedder constructs the configured embedding client, or nil when
// the provider is none.
func NewEmbedder(c EmbeddingConfig) (embeddings.Embedder, error) {
	provider := c.Provider
	if provider == "" {
		provider = EmbeddingNone
	}

	switch provider {
	case EmbeddingNone:
		return nil, nil
	case EmbeddingOllama:
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: c.BaseURL,
			Model:   c.Model,
		})
	case EmbeddingOpenAI:
		return openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL: c.BaseURL,
			APIKey:  c.APIKey,
			Model:   c.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
