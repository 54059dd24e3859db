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

	"github.com/halcyon-cloud/pixdex/internal/config"
	dbRedis "github.com/halcyon-cloud/pixdex/internal/db/redis"
	"github.com/halcyon-cloud/pixdex/internal/domain"
	logpkg "github.com/halcyon-cloud/pixdex/internal/logger"
	"github.com/halcyon-cloud/pixdex/internal/metrics"
	"github.com/halcyon-cloud/pixdex/internal/repository/embcache"
	searchrepo "github.com/halcyon-cloud/pixdex/internal/repository/search"
	chiTransport "github.com/halcyon-cloud/pixdex/internal/transport/chi"
	"github.com/halcyon-cloud/pixdex/internal/transport/clip"
	authuc "github.com/halcyon-cloud/pixdex/internal/usecase/auth"
	healthuc "github.com/halcyon-cloud/pixdex/internal/usecase/health"
	searchuc "github.com/halcyon-cloud/pixdex/internal/usecase/search"
	"github.com/halcyon-cloud/pixdex/internal/version"
)

func main() {
	// Load configuration based on ENV
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

	logger.Info("Starting pixdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("collection", cfg.Search.Collection),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create vector index store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the vector index to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector index not ready", zap.Error(err))
	}
	logger.Info("Connected to vector index")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Build embedder chain — composition root
	base := clip.NewEmbedder(&clip.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	var textEmbedder domain.TextEmbedder = base
	var imageEmbedder domain.ImageEmbedder = base
	if cfg.Cache.Enabled {
		cached := embcache.New(
			base, base, store,
			time.Duration(cfg.Cache.TTLMin)*time.Minute,
			metrics.EmbeddingCacheTotal,
			logger,
		)
		textEmbedder = cached
		imageEmbedder = cached
		logger.Info("Embedding cache enabled", zap.Int("ttl_min", cfg.Cache.TTLMin))
	}

	if !cfg.Embedding.SkipStartupCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := base.HealthCheck(checkCtx); err != nil {
			cancel()
			logger.Fatal("Embedding server unreachable", zap.Error(err))
		}
		cancel()
	}
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Static credentials from config
	credentials := make(map[string]string, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		credentials[u.Username] = u.Password
	}
	users := authuc.NewStaticUserStore(credentials)
	authenticator := authuc.New(
		users,
		[]byte(cfg.Auth.Secret),
		time.Duration(cfg.Auth.TokenTTLMin)*time.Minute,
	)

	// Repositories and use case services
	searchRepo := searchrepo.New(store)
	searchSvc := searchuc.New(searchRepo, textEmbedder, imageEmbedder, cfg.Search.Collection).
		WithLimits(cfg.Search.DefaultTopK, cfg.Search.MaxTopK)
	healthSvc := healthuc.New(store, base)

	// Create chi server
	server := chiTransport.NewServer(authenticator, searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(authenticator))
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

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
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
