package adapters_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/aigolabs/aig/pkg/adapters"
	esfile "github.com/aigolabs/aig/pkg/eventsink/file"
	esnop "github.com/aigolabs/aig/pkg/eventsink/nop"
	stfile "github.com/aigolabs/aig/pkg/storage/file"
	vslocal "github.com/aigolabs/aig/pkg/vectorstore/local"
	vsnop "github.com/aigolabs/aig/pkg/vectorstore/nop"
)

var _ = Describe("Factory", func() {
	var (
		cfg    adapters.Config
		logger *zap.Logger
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger, _ = zap.NewDevelopment()
		cfg = adapters.Config{BaseDir: GinkgoT().TempDir()}
	})

	Describe("NewStorage", func() {
		It("defaults to the file backend", func() {
			adapter, err := adapters.NewStorage(ctx, cfg, logger)
			Expect(err).NotTo(HaveOccurred())
			defer adapter.Close()

			Expect(adapter).To(BeAssignableToTypeOf(&stfile.Adapter{}))
		})

		It("rejects an unknown backend", func() {
			cfg.Storage = "cassandra"
			_, err := adapters.NewStorage(ctx, cfg, logger)
			Expect(err).To(MatchError(ContainSubstring("unsupported storage backend")))
		})
	})

	Describe("NewEventSink", func() {
		It("defaults to the none backend", func() {
			sink, err := adapters.NewEventSink(ctx, cfg, logger)
			Expect(err).NotTo(HaveOccurred())
			defer sink.Close()

			Expect(sink).To(BeAssignableToTypeOf(&esnop.Sink{}))
		})

		It("builds the file sink", func() {
			cfg.EventSink = adapters.EventSinkFile
			sink, err := adapters.NewEventSink(ctx, cfg, logger)
			Expect(err).NotTo(HaveOccurred())
			defer sink.Close()

			Expect(sink).To(BeAssignableToTypeOf(&esfile.Sink{}))
		})

		It("rejects db-aggregate without relational storage", func() {
			cfg.EventSink = adapters.EventSinkDBAggregate
			_, err := adapters.NewEventSink(ctx, cfg, logger)
			Expect(err).To(MatchError(ContainSubstring("requires mysql or postgres")))
		})

		It("rejects an unknown backend", func() {
			cfg.EventSink = "statsd"
			_, err := adapters.NewEventSink(ctx, cfg, logger)
			Expect(err).To(MatchError(ContainSubstring("unsupported event sink backend")))
		})
	})

	Describe("NewVectorStore", func() {
		It("defaults to the none backend", func() {
			store, err := adapters.NewVectorStore(cfg, logger)
			Expect(err).NotTo(HaveOccurred())
			defer store.Close()

			Expect(store).To(BeAssignableToTypeOf(&vsnop.Store{}))
		})

		It("builds the local store", func() {
			cfg.VectorStore = adapters.VectorStoreLocal
			store, err := adapters.NewVectorStore(cfg, logger)
			Expect(err).NotTo(HaveOccurred())
			defer store.Close()

			Expect(store).To(BeAssignableToTypeOf(&vslocal.Store{}))
		})

		It("rejects an unknown backend", func() {
			cfg.VectorStore = "pinecone"
			_, err := adapters.NewVectorStore(cfg, logger)
			Expect(err).To(MatchError(ContainSubstring("unsupported vector store backend")))
		})
	})

	Describe("NewEmbedder", func() {
		It("returns nil for the none provider", func() {
			embedder, err := adapters.NewEmbedder(adapters.EmbeddingConfig{})
			Expect(err).NotTo(HaveOccurred())
			Expect(embedder).To(BeNil())
		})

		It("builds an ollama embedder", func() {
			embedder, err := adapters.NewEmbedder(adapters.EmbeddingConfig{
				Provider: adapters.EmbeddingOllama,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(embedder).NotTo(BeNil())
		})

		It("requires an API key for hosted openai", func() {
			_, err := adapters.NewEmbedder(adapters.EmbeddingConfig{
				Provider: adapters.EmbeddingOpenAI,
			})
			Expect(err).To(HaveOccurred())
		})

		It("rejects an unknown provider", func() {
			_, err := adapters.NewEmbedder(adapters.EmbeddingConfig{Provider: "cohere"})
			Expect(err).To(MatchError(ContainSubstring("unsupported embedding provider")))
		})
	})

	Describe("NewSet", func() {
		It("builds the default trio", func() {
			set, err := adapters.NewSet(ctx, cfg, logger)
			Expect(err).NotTo(HaveOccurred())
			defer set.Close()

			Expect(set.Storage).NotTo(BeNil())
			Expect(set.EventSink).NotTo(BeNil())
			Expect(set.VectorStore).NotTo(BeNil())
			Expect(set.Embedder).To(BeNil())
		})

		It("fails fast on a bad discriminator", func() {
			cfg.Storage = "cassandra"
			_, err := adapters.NewSet(ctx, cfg, logger)
			Expect(err).To(HaveOccurred())
		})
	})
})
