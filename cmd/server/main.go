package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crop-weather-platform/internal/config"
	"crop-weather-platform/internal/handlers"
	"crop-weather-platform/internal/repository"
	"crop-weather-platform/internal/services"
	"crop-weather-platform/pkg/database"
	"crop-weather-platform/pkg/logging"
	"crop-weather-platform/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("crop-weather-api", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting crop weather API server", logging.Fields{
		"version":     "1.0.0",
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("crop_weather")

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository and make sure the schema exists before
	// accepting traffic. Concurrent instances coordinate through the
	// repository's advisory lock.
	weatherRepo := repository.NewWeatherRepository(db, logger, metricsCollector)

	if err := weatherRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to initialize schema", logging.Fields{}, err)
	}

	// Initialize services
	weatherService := services.NewWeatherService(weatherRepo, logger, metricsCollector)
	statsService := services.NewStatisticsService(weatherRepo, logger, metricsCollector)
	ingestionService := services.NewIngestionService(weatherRepo, logger, metricsCollector)

	// Optionally load the configured data sources before serving. A
	// failed load is logged but never blocks the API: reads degrade to
	// whatever is already in the store.
	if cfg.Ingestion.IngestOnStartup {
		runStartupIngestion(ctx, cfg, ingestionService, logger)
	}

	// Initialize handlers
	weatherHandler := handlers.NewWeatherHandler(
		weatherService,
		statsService,
		ingestionService,
		cfg.Ingestion.WeatherDataDir,
		cfg.Ingestion.YieldDataFile,
		logger,
		metricsCollector,
	)

	// Setup router
	router := mux.NewRouter()
	weatherHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}

func runStartupIngestion(ctx context.Context, cfg *config.Config, ingestionService *services.IngestionService, logger *logging.StructuredLogger) {
	if cfg.Ingestion.WeatherDataDir != "" {
		if _, err := ingestionService.IngestWeatherDirectory(ctx, cfg.Ingestion.WeatherDataDir); err != nil {
			logger.Error(ctx, "[STARTUP_INGEST_ERROR] Startup weather ingestion failed", logging.Fields{
				"data_dir": cfg.Ingestion.WeatherDataDir,
			}, err)
		}
	}

	if cfg.Ingestion.YieldDataFile != "" {
		if _, err := ingestionService.IngestYieldFile(ctx, cfg.Ingestion.YieldDataFile); err != nil {
			logger.Error(ctx, "[STARTUP_INGEST_ERROR] Startup yield ingestion failed", logging.Fields{
				"yield_file": cfg.Ingestion.YieldDataFile,
			}, err)
		}
	}
}
