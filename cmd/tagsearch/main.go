package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tagsearch/internal/config"
	dbRedis "github.com/kailas-cloud/tagsearch/internal/db/redis"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/filter"
	logpkg "github.com/kailas-cloud/tagsearch/internal/logger"
	"github.com/kailas-cloud/tagsearch/internal/metrics"
	indexrepo "github.com/kailas-cloud/tagsearch/internal/repository/index"
	productrepo "github.com/kailas-cloud/tagsearch/internal/repository/product"
	tagrepo "github.com/kailas-cloud/tagsearch/internal/repository/tag"
	chiTransport "github.com/kailas-cloud/tagsearch/internal/transport/chi"
	batchuc "github.com/kailas-cloud/tagsearch/internal/usecase/batch"
	healthuc "github.com/kailas-cloud/tagsearch/internal/usecase/health"
	matchuc "github.com/kailas-cloud/tagsearch/internal/usecase/match"
	recognizeuc "github.com/kailas-cloud/tagsearch/internal/usecase/recognize"
	searchuc "github.com/kailas-cloud/tagsearch/internal/usecase/search"
	"github.com/kailas-cloud/tagsearch/internal/usecase/tagindex"
	"github.com/kailas-cloud/tagsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, "tagsearch", cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tagsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Startup tables are required; a broken table is a deployment error.
	tagFields, err := config.LoadTagFields(cfg.Semantic.TagFieldsPath)
	if err != nil {
		logger.Fatal("Failed to load tag field config", zap.Error(err))
	}
	stages, err := config.LoadStages(cfg.Semantic.StagesPath)
	if err != nil {
		logger.Fatal("Failed to load stage config", zap.Error(err))
	}
	logger.Info("Loaded semantic config",
		zap.Int("tag_fields", tagFields.Len()),
		zap.Int("stages", stages.Len()),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	metrics.RegisterSemanticMetrics()

	// Repositories
	tagRepo := tagrepo.New(store, tagrepo.Options{
		Index:        cfg.Search.TagIndex,
		Prefix:       cfg.Search.TagPrefix,
		LookupSize:   cfg.Search.LookupSize,
		QueryTimeout: cfg.Search.QueryTimeout(),
		BatchSize:    cfg.Search.UpsertBatchSize,
		Latency:      metrics.StoreQueryDuration,
	})
	productRepo := productrepo.New(store, productrepo.Options{
		Index:        cfg.Search.ProductIndex,
		Prefix:       cfg.Search.ProductPrefix,
		QueryTimeout: cfg.Search.QueryTimeout(),
		BatchSize:    cfg.Search.UpsertBatchSize,
		Latency:      metrics.StoreQueryDuration,
	})
	indexRepo := indexrepo.New(store, cfg.Search.LastRunKey())

	// Use case services
	recognizer := recognizeuc.New(tagRepo, recognizeuc.Options{
		FuzzyAlways: cfg.Search.FuzzyMode == config.FuzzyAlways,
		Parallelism: cfg.Search.RecognizeParallelism,
		MaxTokens:   cfg.Search.MaxQueryTokens,
	})

	// The matcher only queries attributes the product index was created with.
	var indexed func(string) bool
	schema, err := indexRepo.Schema(ctx, cfg.Search.ProductIndex)
	if err != nil {
		logger.Warn("Product index schema unavailable, run tagindexer create-indexes", zap.Error(err))
	} else {
		indexed = schema.Has
		logger.Info("Loaded product index schema", zap.Int("attributes", len(schema)))
	}
	matcher := matchuc.New(productRepo, stages, matchuc.Options{
		OuterTieBreaker: cfg.Search.OuterTieBreaker,
		InnerTieBreaker: cfg.Search.InnerTieBreaker,
		FilterPolicy:    filter.Policy(cfg.Search.FilterPolicy),
		Indexed:         indexed,
	})
	searchSvc := searchuc.New(recognizer, matcher, productRepo, searchuc.Options{
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
		Indexed:         indexed,
	})

	extractor, err := tagindex.NewExtractor(tagFields, cfg.Search.ExtractWorkers)
	if err != nil {
		logger.Fatal("Failed to create tag extractor", zap.Error(err))
	}
	defer extractor.Release()
	tagIndexSvc := tagindex.New(extractor, tagRepo, indexRepo)

	batchSvc := batchuc.New(productRepo).WithMaxBatchSize(cfg.Search.UpsertBatchSize)
	healthSvc := healthuc.New(store, indexRepo, cfg.Search.TagIndex, cfg.Search.ProductIndex)

	server := chiTransport.NewServer(searchSvc, recognizer, tagIndexSvc, batchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
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

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			if st := ww.Header().Get(metrics.StageHeader); st != "" {
				fields = append(fields, zap.String("stage", st))
			}
			reqLogger.Info("http_request", fields...)
		})
	}
}
