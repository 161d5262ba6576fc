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

	"github.com/sumika-cloud/sumika/internal/config"
	"github.com/sumika-cloud/sumika/internal/db/postgres"
	"github.com/sumika-cloud/sumika/internal/domain/condition"
	"github.com/sumika-cloud/sumika/internal/domain/feature"
	logpkg "github.com/sumika-cloud/sumika/internal/logger"
	"github.com/sumika-cloud/sumika/internal/metrics"
	chairrepo "github.com/sumika-cloud/sumika/internal/repository/chair"
	estaterepo "github.com/sumika-cloud/sumika/internal/repository/estate"
	chiTransport "github.com/sumika-cloud/sumika/internal/transport/chi"
	chairuc "github.com/sumika-cloud/sumika/internal/usecase/chair"
	estateuc "github.com/sumika-cloud/sumika/internal/usecase/estate"
	ingestuc "github.com/sumika-cloud/sumika/internal/usecase/ingest"
	"github.com/sumika-cloud/sumika/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting sumika API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	ctx := context.Background()

	store, err := postgres.NewStore(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Load the search-condition catalogs; the feature vocabularies derive
	// their ids from the catalog list order.
	chairCatalog, err := condition.LoadChair(cfg.Catalog.ChairPath)
	if err != nil {
		logger.Fatal("Failed to load chair catalog", zap.Error(err))
	}
	estateCatalog, err := condition.LoadEstate(cfg.Catalog.EstatePath)
	if err != nil {
		logger.Fatal("Failed to load estate catalog", zap.Error(err))
	}
	chairVocab := feature.NewVocabulary(chairCatalog.Feature.List)
	estateVocab := feature.NewVocabulary(estateCatalog.Feature.List)
	logger.Info("Catalogs loaded",
		zap.Int("chair_features", chairVocab.Len()),
		zap.Int("estate_features", estateVocab.Len()),
	)

	guard := postgres.NewGuard(store.Pool(), logger)
	chairRepo := chairrepo.New(store.Pool())
	estateRepo := estaterepo.New(store.Pool())

	chairSvc := chairuc.New(chairRepo, guard, chairCatalog, chairVocab)
	estateSvc := estateuc.New(estateRepo, chairRepo, estateCatalog, estateVocab)
	ingestSvc := ingestuc.New(guard, chairRepo, estateRepo, chairVocab, estateVocab)

	server := chiTransport.NewServer(
		chairSvc, estateSvc, ingestSvc,
		chairCatalog, estateCatalog,
		store, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.TxTrackerMiddleware)
	r.Use(metrics.Middleware())
	server.Routes(r)

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
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
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

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
