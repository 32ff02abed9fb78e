// Command courserank serves course recommendations over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courserank/internal/catalog"
	"github.com/kailas-cloud/courserank/internal/config"
	"github.com/kailas-cloud/courserank/internal/db"
	dbRedis "github.com/kailas-cloud/courserank/internal/db/redis"
	"github.com/kailas-cloud/courserank/internal/domain"
	"github.com/kailas-cloud/courserank/internal/domain/ranking"
	logpkg "github.com/kailas-cloud/courserank/internal/logger"
	"github.com/kailas-cloud/courserank/internal/metrics"
	budgetrepo "github.com/kailas-cloud/courserank/internal/repository/budget"
	"github.com/kailas-cloud/courserank/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/courserank/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/courserank/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/courserank/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/courserank/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/courserank/internal/usecase/recommend"
	usageuc "github.com/kailas-cloud/courserank/internal/usecase/usage"
	"github.com/kailas-cloud/courserank/internal/version"
)

func main() {
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

	logger.Info("Starting courserank API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("default_preset", cfg.Ranking.DefaultPreset),
		zap.Bool("cache_enabled", cfg.Cache.Enabled()),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRecommendMetrics()

	ctx := logpkg.ContextWithLogger(context.Background(), logger)

	// The catalog must load before serving; a broken catalog is fatal at startup.
	holder, err := catalog.NewHolder(ctx, catalog.Source{
		MetadataPath:   cfg.Catalog.MetadataPath,
		EmbeddingsPath: cfg.Catalog.EmbeddingsPath,
	}, nil)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}

	// Optional key-value store for the query cache and budget counters.
	var store db.Store
	if cfg.Cache.Enabled() {
		store, err = connectStore(ctx, cfg.Cache)
		if err != nil {
			logger.Fatal("Failed to connect to cache", zap.Error(err))
		}
		defer store.Close()
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	budget := buildBudget(ctx, cfg.Embedding, store, logger)

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	encoder := buildEncoder(base, cfg, store, budgetChecker, logger)
	logger.Info("Query encoder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	recommender, err := recommenduc.New(encoder, holder, ranking.PresetName(cfg.Ranking.DefaultPreset))
	if err != nil {
		logger.Fatal("Failed to create recommender", zap.Error(err))
	}

	// Same gotcha as the budget: a nil *redis.Store must not reach health as a non-nil Pinger.
	var cachePinger healthuc.Pinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(holder, cachePinger, base)

	// Usage service reads from the shared BudgetTracker.
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader)

	server := chiTransport.NewServer(recommender, healthSvc, usageSvc, version.Version)
	router := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:           cfg.Auth.APIKeys,
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// SIGHUP reloads the catalog; SIGINT/SIGTERM shut down.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigs {
		if sig != syscall.SIGHUP {
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			break
		}
		// Reload logs its own outcome; a failure keeps serving the current catalog.
		_ = holder.Reload(logpkg.WithFields(ctx, zap.String("trigger", "sighup")))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func connectStore(ctx context.Context, cfg config.CacheConfig) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("cache not ready: %w", err)
	}
	return store, nil
}

// buildBudget returns nil when no token limit is configured.
func buildBudget(ctx context.Context, cfg config.EmbeddingConfig, store db.Store, logger *zap.Logger) *embeddinguc.BudgetTracker {
	b := cfg.Budget
	if b.DailyTokenLimit <= 0 && b.MonthlyTokenLimit <= 0 {
		return nil
	}
	action := embeddinguc.BudgetActionWarn
	if b.Action == string(embeddinguc.BudgetActionReject) {
		action = embeddinguc.BudgetActionReject
	}
	budget := embeddinguc.NewBudgetTracker(cfg.Provider, b.DailyTokenLimit, b.MonthlyTokenLimit, action, logger)
	if store != nil {
		budget.WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
	}
	return budget
}

// buildEncoder assembles the decorator chain, innermost first:
// OpenAI -> Breaker -> Instrumented -> Cached -> Instruction -> Normalizing.
// Cache hits skip the breaker and the budget admission check.
func buildEncoder(
	base *openaiEmb.Embedder,
	cfg config.Config,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = embeddinguc.NewBreakerEmbedder(base, embeddinguc.BreakerConfig{
		Provider:         cfg.Embedding.Provider,
		MaxRequests:      cfg.Embedding.Breaker.HalfOpenRequests,
		Timeout:          time.Duration(cfg.Embedding.Breaker.OpenTimeoutSec) * time.Second,
		FailureThreshold: cfg.Embedding.Breaker.FailureThreshold,
	}, logger)

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, budget, logger,
	)

	if store != nil {
		embedder = embcache.New(embedder, store, embcache.Options{
			Model:      base.Model(),
			TTL:        time.Duration(cfg.Cache.TTLSec) * time.Second,
			CacheTotal: metrics.EmbeddingCacheTotal,
		}, logger)
	}

	// Instruction prefix sits outside the cache, so cache keys include it.
	if cfg.Embedding.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.Embedding.QueryInstruction)
	}

	return domain.NewNormalizingEmbedder(embedder)
}
