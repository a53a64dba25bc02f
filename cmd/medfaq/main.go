package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/caremind-health/medfaq/internal/config"
	"github.com/caremind-health/medfaq/internal/corpus"
	"github.com/caremind-health/medfaq/internal/domain"
	"github.com/caremind-health/medfaq/internal/fallback"
	"github.com/caremind-health/medfaq/internal/history"
	logpkg "github.com/caremind-health/medfaq/internal/logger"
	"github.com/caremind-health/medfaq/internal/metrics"
	"github.com/caremind-health/medfaq/internal/ratelimit"
	chiTransport "github.com/caremind-health/medfaq/internal/transport/chi"
	openaiClient "github.com/caremind-health/medfaq/internal/transport/openai"
	"github.com/caremind-health/medfaq/internal/usecase/answer"
	healthuc "github.com/caremind-health/medfaq/internal/usecase/health"
	searchuc "github.com/caremind-health/medfaq/internal/usecase/search"
	"github.com/caremind-health/medfaq/internal/vectorstore"
	"github.com/caremind-health/medfaq/internal/version"
)

func main() {
	// .env is optional; real env wins over file values
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting medfaq API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("vector_ready", cfg.VectorReady()),
	)

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Corpus snapshot for the fallback path. The corpus is required:
	// without it degraded mode has nothing to search.
	chunks, err := corpus.LoadFile(cfg.Corpus.Path)
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}
	lexical := fallback.NewIndex(chunks)
	logger.Info("Corpus loaded", zap.String("path", cfg.Corpus.Path), zap.Int("chunks", lexical.Len()))

	// External clients are optional: absence of either credential
	// selects fallback-only mode, never a startup crash.
	var (
		embedder *openaiClient.Embedder
		store    *vectorstore.Store
	)
	if cfg.VectorReady() {
		embedder = openaiClient.NewEmbedder(&openaiClient.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
			Logger:     logger,
		})
		store, err = vectorstore.New(vectorstore.Config{
			Addrs:     cfg.Vector.Addrs,
			Password:  cfg.Vector.Password,
			IndexName: cfg.Vector.IndexName,
			Timeout:   time.Duration(cfg.Vector.TimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("Failed to create vector store client, running fallback-only", zap.Error(err))
			embedder = nil
			store = nil
		}
	} else {
		logger.Warn("Embedding or vector credentials absent, running fallback-only")
	}
	if store != nil {
		defer store.Close()
	}

	var generator *openaiClient.Generator
	if cfg.Generative.APIKey != "" {
		generator = openaiClient.NewGenerator(&openaiClient.GeneratorConfig{
			APIKey:  cfg.Generative.APIKey,
			BaseURL: cfg.Generative.BaseURL,
			Model:   cfg.Generative.Model,
			Timeout: time.Duration(cfg.Generative.TimeoutSec) * time.Second,
		})
	}

	// Shared mutable state: limiter and history log are created once
	// here and injected; no package-level singletons.
	limiter := ratelimit.New(
		time.Duration(cfg.RateLimit.WindowSec)*time.Second, cfg.RateLimit.Capacity, logger,
	)
	historyLog := history.New(cfg.History.MaxItems)

	searchSvc := newOrchestrator(embedder, store, lexical, logger)
	answerSvc := answer.New(generatorOrNil(generator), logger)
	healthSvc := healthuc.New(pingerOrNil(store), checkerOrNil(embedder), searchSvc)

	server := chiTransport.NewServer(searchSvc, answerSvc, healthSvc, historyLog, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.Recoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.RateLimitMiddleware(limiter))
	r.Use(metrics.Middleware())
	server.Routes(r)

	// Background sweep bounds limiter memory; stops with the server.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go limiter.Run(sweepCtx)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// newOrchestrator passes nil interfaces (not typed nil pointers!) when
// clients are absent. Go gotcha: (*vectorstore.Store)(nil) wrapped in
// search.VectorIndex != nil.
func newOrchestrator(
	embedder *openaiClient.Embedder,
	store *vectorstore.Store,
	lexical *fallback.Index,
	logger *zap.Logger,
) *searchuc.Service {
	var emb searchuc.Embedder
	if embedder != nil {
		emb = embedder
	}
	var idx searchuc.VectorIndex
	if store != nil {
		idx = store
	}
	return searchuc.New(emb, idx, lexical, logger)
}

func generatorOrNil(g *openaiClient.Generator) domain.Generator {
	if g != nil {
		return g
	}
	return nil
}

func pingerOrNil(s *vectorstore.Store) healthuc.VectorPinger {
	if s != nil {
		return s
	}
	return nil
}

func checkerOrNil(e *openaiClient.Embedder) healthuc.EmbeddingChecker {
	if e != nil {
		return e
	}
	return nil
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
