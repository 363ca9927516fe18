package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damon-houk/paylog/internal/application/service"
	"github.com/damon-houk/paylog/internal/config"
	"github.com/damon-houk/paylog/internal/domain/repository"
	domainservice "github.com/damon-houk/paylog/internal/domain/service"
	"github.com/damon-houk/paylog/internal/infrastructure/api"
	"github.com/damon-houk/paylog/internal/infrastructure/auth"
	"github.com/damon-houk/paylog/internal/infrastructure/cache"
	"github.com/damon-houk/paylog/internal/infrastructure/db"
	"github.com/damon-houk/paylog/internal/infrastructure/handler"
	"github.com/damon-houk/paylog/internal/infrastructure/invoice"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"github.com/damon-houk/paylog/internal/infrastructure/metrics"
	"github.com/damon-houk/paylog/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

const cacheJanitorInterval = time.Minute

func main() {
	bootLog := logger.NewJSONLogger(os.Stdout, logger.InfoLevel)

	cfg, err := config.Load(config.EnvPathFromArgs(os.Args[1:]))
	if err != nil {
		bootLog.Fatal("Failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	jsonLog := logger.NewJSONLogger(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	defer func() { _ = jsonLog.Sync() }()
	logger.SetDefaultLogger(jsonLog)
	log := jsonLog.WithField("env", cfg.AppEnv)

	log.Info("Starting PayLog", map[string]interface{}{
		"storage_backend": cfg.StorageBackend,
		"cache_backend":   cfg.CacheBackend,
		"auth_mode":       cfg.AuthMode,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize repositories
	txRepo, err := db.OpenTransactionRepository(db.StoreConfig{
		Backend:        cfg.StorageBackend,
		ConnectTimeout: cfg.StorageConnectTimeout,
		Badger: db.BadgerOptions{
			Path:     cfg.BadgerPath,
			InMemory: cfg.BadgerInMemory,
		},
		SQL: db.SQLOptions{
			Driver: cfg.SQLDriver,
			DSN:    cfg.SQLDSN,
			Debug:  cfg.SQLDebug,
		},
	}, log)
	if err != nil {
		log.Fatal("Failed to configure transaction store", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer func() {
		if err := txRepo.Close(); err != nil {
			log.Error("Error closing transaction store", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// The first request would open the store anyway; warming up here only
	// surfaces a bad configuration early.
	warmCtx, cancelWarm := context.WithTimeout(ctx, cfg.StorageConnectTimeout)
	if err := txRepo.Ping(warmCtx); err != nil {
		log.Warn("Transaction store not reachable yet", map[string]interface{}{
			"error": err.Error(),
		})
	}
	cancelWarm()

	sharedCache, closeCache := newSharedCache(ctx, cfg, log)
	defer closeCache()

	verifier, err := newIdentityVerifier(cfg, log)
	if err != nil {
		log.Fatal("Failed to configure session verification", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Initialize services
	txService := service.NewTransactionService(txRepo, sharedCache, log)
	shareService := service.NewShareService(txRepo, sharedCache, log)
	renderer := invoice.NewRenderer(cfg.InvoiceCurrency, cfg.InvoiceIssuer)

	// Setup router
	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(log))

	if cfg.MetricsEnabled {
		httpMetrics, err := metrics.New("paylog", cfg.AppEnv)
		if err != nil {
			log.Fatal("Failed to register metrics", map[string]interface{}{
				"error": err.Error(),
			})
		}
		router.Use(middleware.MetricsMiddleware(httpMetrics))
		router.Handle(cfg.MetricsPath, httpMetrics.Handler()).Methods(http.MethodGet)
	}

	requireAuth := middleware.AuthMiddleware(verifier, log)

	// Shared routes go first so /transactions/shared/... never matches {id}
	handler.NewHealthHandler(txRepo, log).RegisterRoutes(router)
	handler.NewShareHandler(shareService, renderer, log).RegisterRoutes(router, requireAuth)
	handler.NewTransactionHandler(txService, renderer, log).RegisterRoutes(router, requireAuth)

	server := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"addr": cfg.HTTPListenAddr,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	case <-ctx.Done():
		log.Info("Shutting down", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newSharedCache builds the cache selected by CACHE_BACKEND and a func that releases it
func newSharedCache(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.SharedTransactionCache, func()) {
	switch cfg.CacheBackend {
	case "redis":
		redisCache := cache.NewRedisSharedTransactionCache(
			cache.NewRedisClient(cache.RedisOptions{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}),
			cfg.RedisKeyPrefix,
			cfg.CacheTTL,
		)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := redisCache.Ping(pingCtx); err != nil {
			log.Warn("Redis cache not reachable yet", map[string]interface{}{
				"addr":  cfg.RedisAddr,
				"error": err.Error(),
			})
		}

		return redisCache, func() { _ = redisCache.Close() }

	case "none":
		return cache.NoopCache{}, func() {}

	default:
		memCache := cache.NewSharedTransactionCache(cfg.CacheTTL)
		janitorCtx, cancel := context.WithCancel(ctx)
		go memCache.RunJanitor(janitorCtx, cacheJanitorInterval)
		return memCache, cancel
	}
}

// newIdentityVerifier builds the session verifier selected by AUTH_MODE
func newIdentityVerifier(cfg *config.Config, log logger.Logger) (domainservice.IdentityVerifier, error) {
	if cfg.AuthMode == "userinfo" {
		return api.NewUserInfoClient(cfg.AuthUserInfoURL, &http.Client{Timeout: 10 * time.Second}, log), nil
	}
	verifier, err := auth.NewJWTVerifier(cfg.AuthJWTSecret, cfg.AuthJWTIssuer, cfg.AuthJWTAudience)
	if err != nil {
		return nil, err
	}
	return verifier, nil
}
