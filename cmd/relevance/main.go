// Package main is the entry point for the relevance service.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jasperfordesq-ai/nexus-relevance/internal/config"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/db"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/health"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/jobs"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/match"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/matchcache"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/profile"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Relevance Service")
		fmt.Println()
		fmt.Println("Usage: relevance [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "relevance",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Postgres
	conn, err := db.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Optional Redis
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	cacheMetrics := matchcache.NewMetrics()
	for name, m := range map[string]interface {
		Register(prometheus.Registerer) error
	}{
		"http":       httpMetrics,
		"jobs":       jobMetrics,
		"matchcache": cacheMetrics,
	} {
		if err := m.Register(registry); err != nil {
			logger.Error("failed to register metrics", "group", name, "error", err)
			os.Exit(1)
		}
	}

	// Scoring profile resolution and the match engine
	resolver := profile.NewResolver(profile.NewPostgresConfigStore(conn), logger)
	matchStore := match.NewPostgresStore(conn, logger)
	engine := match.NewEngine(matchStore, nil, logger)

	// Match cache backend
	cacheStore, userSource := buildCacheStore(cfg, conn, redisClient, logger)

	// Cache warm-up job
	var warmer *matchcache.Warmer
	if cfg.WarmupEnabled && len(cfg.WarmupTenants) > 0 {
		warmer = matchcache.NewWarmer(matchcache.WarmerConfig{
			TenantIDs:   cfg.WarmupTenants,
			Interval:    cfg.WarmupInterval,
			UserLimit:   cfg.WarmupUserLimit,
			Concurrency: cfg.WarmupConcurrency,
			Logger:      logger,
			Metrics:     cacheMetrics,
			JobMetrics:  jobMetrics,
		}, engine, userSource, resolver, cacheStore)
		if err := warmer.Start(context.Background()); err != nil {
			logger.Error("failed to start cache warmer", "error", err)
			os.Exit(1)
		}
		logger.Info("match cache warmer started",
			"tenants", len(cfg.WarmupTenants),
			"interval", cfg.WarmupInterval)
	} else {
		logger.Info("match cache warmer disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	checkers := []health.Checker{health.NewDBChecker(conn)}
	if redisClient != nil {
		checkers = append(checkers, health.NewRedisChecker(redisClient))
	}
	mux.HandleFunc("/health", health.Handler(5*time.Second, checkers...))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"service": "relevance", "version": "0.1.0"}); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Middleware: RequestID -> Logging -> HTTPMetrics, then OTel
	// instrumentation outermost.
	handler := middleware.RequestID(middleware.Logging(logger)(middleware.HTTPMetrics(httpMetrics)(mux)))
	instrumented := otelhttp.NewHandler(handler, "relevance")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      instrumented,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	if warmer != nil {
		warmer.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer provider", "error", err)
	}

	logger.Info("server stopped")
}

// buildCacheStore selects the match cache backend. The warm-up user
// selection and category-invalidation user resolution always come from
// Postgres because they join users and listings.
func buildCacheStore(cfg *config.Config, conn *sql.DB, redisClient *redis.Client, logger *slog.Logger) (matchcache.Store, matchcache.UserSource) {
	pgStore := matchcache.NewPostgresStore(conn, logger)
	if cfg.CacheBackend == "redis" && redisClient != nil {
		return matchcache.NewRedisStore(redisClient, pgStore, logger), pgStore
	}
	return pgStore, pgStore
}
