// medfaq-indexer runs the offline indexing job: it chunks the corpus,
// embeds every chunk, and upserts the vectors into the backend index.
//
// Usage:
//
//	medfaq-indexer [-env local] <command>
//
// Commands:
//
//	test   verify connectivity to the vector backend and embedding provider
//	index  chunk, embed, and upsert the full corpus
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/caremind-health/medfaq/internal/config"
	"github.com/caremind-health/medfaq/internal/corpus"
	logpkg "github.com/caremind-health/medfaq/internal/logger"
	"github.com/caremind-health/medfaq/internal/metrics"
	openaiClient "github.com/caremind-health/medfaq/internal/transport/openai"
	"github.com/caremind-health/medfaq/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	env := flag.String("env", config.GetEnv(), "configuration environment (local, dev, prod)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: medfaq-indexer [-env local] <test|index>")
		os.Exit(2)
	}
	command := flag.Arg(0)

	cfg, err := config.Load(*env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger, err := logpkg.New(*env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterPipelineMetrics()

	// Unlike the server, the indexer cannot degrade: both credentials
	// are hard requirements.
	if !cfg.VectorReady() {
		logger.Fatal("Indexing requires both embedding and vector backend credentials")
	}

	if err := run(context.Background(), command, cfg, logger); err != nil {
		logger.Fatal("Indexing job failed", zap.String("command", command), zap.Error(err))
	}
}

func run(ctx context.Context, command string, cfg config.Config, logger *zap.Logger) error {
	embedder := openaiClient.NewEmbedder(&openaiClient.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	store, err := vectorstore.New(vectorstore.Config{
		Addrs:     cfg.Vector.Addrs,
		Password:  cfg.Vector.Password,
		IndexName: cfg.Vector.IndexName,
		Timeout:   time.Duration(cfg.Vector.TimeoutSec) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create vector store: %w", err)
	}
	defer store.Close()

	switch command {
	case "test":
		return testConnectivity(ctx, store, embedder, logger)
	case "index":
		return index(ctx, cfg, store, embedder, logger)
	default:
		return fmt.Errorf("unknown command %q (want test or index)", command)
	}
}

// testConnectivity verifies both external dependencies respond.
func testConnectivity(
	ctx context.Context, store *vectorstore.Store, embedder *openaiClient.Embedder, logger *zap.Logger,
) error {
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("vector backend: %w", err)
	}
	logger.Info("Vector backend reachable")

	if err := embedder.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	logger.Info("Embedding provider reachable")
	return nil
}

// index chunks, embeds, and upserts the full corpus. All chunks are
// embedded before the first upsert, so a failed run never partially
// upserts silently.
func index(
	ctx context.Context, cfg config.Config,
	store *vectorstore.Store, embedder *openaiClient.Embedder, logger *zap.Logger,
) error {
	chunks, err := corpus.LoadFile(cfg.Corpus.Path)
	if err != nil {
		return fmt.Errorf("chunk corpus: %w", err)
	}
	logger.Info("Corpus chunked", zap.String("path", cfg.Corpus.Path), zap.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	results, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}

	vectors := make([][]float32, len(results))
	for i, r := range results {
		vectors[i] = r.Embedding
	}
	// Usage is reported once per request and duplicated into every
	// result, so the first entry carries the whole batch's total.
	logger.Info("Corpus embedded", zap.Int("vectors", len(vectors)), zap.Int("total_tokens", results[0].TotalTokens))

	dims := cfg.Embedding.Dimensions
	if dims == 0 && len(vectors) > 0 {
		dims = len(vectors[0])
	}
	if err := store.EnsureIndex(ctx, dims); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}

	if err := store.Upsert(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}

	logger.Info("Indexing complete", zap.Int("chunks", len(chunks)))
	return nil
}
