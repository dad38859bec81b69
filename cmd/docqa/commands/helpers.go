package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cambium-dev/docqa-go/internal/answer"
	"github.com/cambium-dev/docqa-go/internal/catalog"
	"github.com/cambium-dev/docqa-go/internal/chunker"
	"github.com/cambium-dev/docqa-go/internal/embedder"
	"github.com/cambium-dev/docqa-go/internal/ingest"
	"github.com/cambium-dev/docqa-go/internal/rag"
)

// Chunking defaults, overridable via CHUNK_* env vars.
const (
	defaultChunkMaxTokens     = 400
	defaultChunkMinTokens     = 80
	defaultChunkOverlapTokens = 40
)

// components bundles everything a command needs to ingest or query.
type components struct {
	pipeline    *ingest.Pipeline
	retriever   *rag.Retriever
	synthesizer *answer.Synthesizer
	catalog     *catalog.Store
	store       *rag.QdrantStore
	closers     []func()
}

// close releases held resources in reverse acquisition order.
func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// buildComponents wires the embedding, vector store, catalog, pipeline, and
// retrieval layers from environment configuration. withAnswer additionally
// initialises the answer-synthesis chat model; commands that only ingest
// skip it so a missing ANSWER_* credential does not block ingestion.
func buildComponents(ctx context.Context, log *slog.Logger, withAnswer bool) (*components, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}

	docEmb, err := embedder.NewFromEnv(ctx, embedder.TaskDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise document embedder: %w", err)
	}
	queryEmb, err := embedder.NewFromEnv(ctx, embedder.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise query embedder: %w", err)
	}

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")
	vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

	qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "docqa-chunks")

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       qdrantHost,
		Port:       qdrantPort,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
	}
	c := &components{store: store}
	c.closers = append(c.closers, func() { _ = store.Close() })
	log.Info("qdrant store ready",
		slog.String("host", qdrantHost),
		slog.Int("port", qdrantPort),
		slog.String("collection", collection))

	dbPath := os.Getenv("DOCQA_CATALOG_DB")
	if dbPath == "" {
		dbPath, err = catalog.DefaultDBPath()
		if err != nil {
			c.close()
			return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
		}
	}
	cat, err := catalog.Open(dbPath)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("failed to open catalog at %s: %w", dbPath, err)
	}
	c.catalog = cat
	c.closers = append(c.closers, func() { _ = cat.Close() })

	batcher, err := embedder.NewBatcher(docEmb, embedder.BatchConfig{
		BatchSize:         getEnvInt("EMBEDDING_BATCH_SIZE", 16),
		RequestsPerSecond: getEnvFloat("EMBEDDING_RPS", 0),
		MaxAttempts:       getEnvInt("EMBEDDING_MAX_ATTEMPTS", 4),
		Parallelism:       getEnvInt("EMBEDDING_PARALLELISM", 2),
	})
	if err != nil {
		c.close()
		return nil, err
	}

	pipeline, err := ingest.NewPipeline(batcher, store, cat, ingest.Config{
		Chunk: chunker.Config{
			MaxTokens:     getEnvInt("CHUNK_MAX_TOKENS", defaultChunkMaxTokens),
			MinTokens:     getEnvInt("CHUNK_MIN_TOKENS", defaultChunkMinTokens),
			OverlapTokens: getEnvInt("CHUNK_OVERLAP_TOKENS", defaultChunkOverlapTokens),
		},
		DocTimeout: time.Duration(getEnvInt("INGEST_DOC_TIMEOUT", 0)) * time.Second,
	}, log)
	if err != nil {
		c.close()
		return nil, err
	}
	c.pipeline = pipeline

	retriever, err := rag.NewRetriever(queryEmb, store, rag.RetrieverConfig{
		TopK:          getEnvInt("RETRIEVE_TOP_K", 5),
		MinScore:      float32(getEnvFloat("RETRIEVE_MIN_SCORE", 0)),
		RecencyWeight: getEnvFloat("RETRIEVE_RECENCY_WEIGHT", 0),
		KeywordWeight: getEnvFloat("RETRIEVE_KEYWORD_WEIGHT", 0),
	})
	if err != nil {
		c.close()
		return nil, err
	}
	c.retriever = retriever

	if withAnswer {
		model, err := answer.NewModelFromEnv(ctx)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("failed to initialise answer model: %w", err)
		}
		syn, err := answer.NewSynthesizer(model, log)
		if err != nil {
			c.close()
			return nil, err
		}
		c.synthesizer = syn
	}

	return c, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
