// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/veridex/listrank/internal/api"
	"github.com/veridex/listrank/internal/audit"
	"github.com/veridex/listrank/internal/auth"
	"github.com/veridex/listrank/internal/config"
	"github.com/veridex/listrank/internal/db"
	"github.com/veridex/listrank/internal/health"
	"github.com/veridex/listrank/internal/history"
	"github.com/veridex/listrank/internal/jobs"
	"github.com/veridex/listrank/internal/listing"
	"github.com/veridex/listrank/internal/middleware"
	"github.com/veridex/listrank/internal/operator"
	"github.com/veridex/listrank/internal/ranking"
	"github.com/veridex/listrank/internal/tracing"
	"github.com/veridex/listrank/internal/trust"
)

const serviceName = "listrank-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Listrank API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "configuration error:", err)
		}
		os.Exit(1)
	}

	// Initialize logger
	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := cfg.LogSummary()
	attrs := make([]any, 0, len(summary)*2)
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("configuration loaded", attrs...)

	ctx := context.Background()

	// Tracing is optional; a disabled provider is a no-op.
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Snapshot history lives in Postgres. If the database is unreachable at
	// startup the server still comes up on an in-memory store so ranking
	// keeps working; /ready reports the degradation.
	var snapshots history.Store
	var dbChecker api.HealthChecker
	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("database unavailable, using in-memory snapshot store", "error", err)
		snapshots = history.NewInMemoryStore()
	} else {
		defer func() {
			if err := sqlDB.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}()
		snapshots = history.NewPostgresStore(sqlDB, logger)
		dbChecker = health.NewDBChecker(sqlDB)
	}

	operatorRepo := operator.NewInMemoryRepository()
	listingRepo := listing.NewInMemoryRepository()
	auditRepo := audit.NewInMemoryRepository()

	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	trustMetrics := trust.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for _, m := range []interface {
		Register(prometheus.Registerer) error
	}{httpMetrics, trustMetrics, jobMetrics} {
		if err := m.Register(registry); err != nil {
			logger.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
	}

	// Calibration loaders return defaults on any error, so a bad file is
	// logged but never fatal.
	trustWeights, err := trust.LoadCalibration(cfg.TrustCalibrationPath)
	if err != nil {
		logger.Warn("trust calibration not applied", "error", err)
	}
	rankingWeights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("ranking calibration not applied", "error", err)
	}

	computer := trust.NewComputer(trust.ComputerConfig{
		Operators: operatorRepo,
		Listings:  listingRepo,
		Snapshots: snapshots,
		Weights:   trustWeights,
		Metrics:   trustMetrics,
		Logger:    logger,
	})

	dirtyTracker := trust.NewDirtyTracker()
	reconcileJob := trust.NewReconcileJob(trust.ReconcileJobConfig{
		Interval:   time.Duration(cfg.ReconcileIntervalSeconds) * time.Second,
		Logger:     logger,
		Metrics:    trustMetrics,
		JobMetrics: jobMetrics,
	}, dirtyTracker, computer)
	if err := reconcileJob.Start(ctx); err != nil {
		logger.Error("failed to start reconcile job", "error", err)
		os.Exit(1)
	}

	anonymizationJob := audit.NewAnonymizationJob(audit.AnonymizationJobConfig{
		Repository: auditRepo,
		Logger:     logger,
		JobMetrics: jobMetrics,
	})
	if err := anonymizationJob.Start(ctx); err != nil {
		logger.Error("failed to start ip anonymization job", "error", err)
		os.Exit(1)
	}

	var jwtService *auth.JWTService
	if cfg.JWTPreviousSecret != "" {
		jwtService = auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	} else {
		jwtService = auth.NewJWTService(cfg.JWTSecret)
	}

	// Rate limit state is shared across replicas when Redis is configured.
	var rateLimitStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	var redisChecker api.HealthChecker
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient)
		redisChecker = health.NewRedisChecker(redisClient)
	}

	trustHandlers := api.NewTrustHandlers(operatorRepo, computer, dirtyTracker)
	historyHandlers := api.NewHistoryHandlers(snapshots)
	adminHandlers := api.NewAdminHandlers(computer, jwtService, auditRepo)
	eventHandlers := api.NewEventHandlers(computer, dirtyTracker, jwtService, auditRepo)
	searchHandlers := api.NewSearchHandlers(listingRepo, operatorRepo, rankingWeights)
	listingHandlers := api.NewListingHandlers(listingRepo)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      dbChecker,
		RedisChecker:   redisChecker,
		MetricsEnabled: true,
	})

	searchLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultSearchLimit(), middleware.IPKeyFunc(), httpMetrics)
	adminLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultAdminLimit(), middleware.SubjectKeyFunc(), httpMetrics)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.Handle("/listings/search", searchLimiter(http.HandlerFunc(searchHandlers.SearchListings)))
	mux.HandleFunc("/listings/", listingHandlers.GetListing)
	mux.HandleFunc("/operators/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/trust") {
			trustHandlers.GetOperatorTrust(w, r)
			return
		}
		trustHandlers.GetOperator(w, r)
	})
	mux.HandleFunc("/scores/", historyHandlers.GetScoreHistory)

	mux.Handle("/events", adminLimiter(http.HandlerFunc(eventHandlers.IngestEvent)))
	mux.Handle("/admin/score-correction", adminLimiter(http.HandlerFunc(adminHandlers.ScoreCorrection)))
	mux.Handle("/admin/score-backfill", adminLimiter(http.HandlerFunc(adminHandlers.ScoreBackfill)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"listrank-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Tracing -> Logging -> HTTPMetrics
	handler := middleware.RequestID(
		middleware.Tracing(serviceName)(
			middleware.Logging(logger)(
				middleware.HTTPMetrics(httpMetrics)(mux))))

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: strings.Split(origins, ","),
		})(handler)
	}

	// pprof endpoints are development-only
	if cfg.Env == "development" {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	anonymizationJob.Stop()
	reconcileJob.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}
