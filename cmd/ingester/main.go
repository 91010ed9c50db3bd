package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"crop-weather-platform/internal/config"
	"crop-weather-platform/internal/repository"
	"crop-weather-platform/internal/services"
	"crop-weather-platform/pkg/database"
	"crop-weather-platform/pkg/logging"
	"crop-weather-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	dataDir := flag.String("data-dir", "", "Directory containing station weather files (defaults to WX_DATA_DIR)")
	yieldFile := flag.String("yield-file", "", "Tab-delimited yield file (defaults to YLD_DATA_FILE)")
	skipStats := flag.Bool("skip-stats", false, "Skip the annual statistics recompute after ingestion")
	flag.Parse()

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

	if *dataDir == "" {
		*dataDir = cfg.Ingestion.WeatherDataDir
	}
	if *yieldFile == "" {
		*yieldFile = cfg.Ingestion.YieldDataFile
	}

	if *dataDir == "" && *yieldFile == "" {
		fmt.Fprintln(os.Stderr, "Nothing to ingest: pass -data-dir and/or -yield-file, or set WX_DATA_DIR / YLD_DATA_FILE")
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("crop-weather-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting data ingestion", logging.Fields{
		"version":    "1.0.0",
		"data_dir":   *dataDir,
		"yield_file": *yieldFile,
		"skip_stats": *skipStats,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("crop_weather_ingester")

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
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository and schema
	weatherRepo := repository.NewWeatherRepository(db, logger, metricsCollector)

	if err := weatherRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to initialize schema", logging.Fields{}, err)
	}

	// Initialize services
	ingestionService := services.NewIngestionService(weatherRepo, logger, metricsCollector)
	statsService := services.NewStatisticsService(weatherRepo, logger, metricsCollector)

	exitCode := 0

	if *dataDir != "" {
		result, err := ingestionService.IngestWeatherDirectory(ctx, *dataDir)
		if err != nil {
			logger.Error(ctx, "[INGESTION_ERROR] Weather ingestion failed", logging.Fields{
				"data_dir": *dataDir,
			}, err)
			fmt.Printf("Weather ingestion failed: %v\n", err)
			exitCode = 1
		} else {
			printResult("WEATHER INGESTION COMPLETE", result)
		}
	}

	if *yieldFile != "" {
		result, err := ingestionService.IngestYieldFile(ctx, *yieldFile)
		if err != nil {
			logger.Error(ctx, "[INGESTION_ERROR] Yield ingestion failed", logging.Fields{
				"yield_file": *yieldFile,
			}, err)
			fmt.Printf("Yield ingestion failed: %v\n", err)
			exitCode = 1
		} else {
			printResult("YIELD INGESTION COMPLETE", result)
		}
	}

	// Weather ingestion already recomputes the aggregates on success;
	// this extra pass covers yield-only runs and partial failures.
	if !*skipStats {
		if err := statsService.RecomputeAnnualStats(ctx); err != nil {
			logger.Error(ctx, "[STATS_ERROR] Statistics recompute failed", logging.Fields{}, err)
			fmt.Printf("Statistics recompute failed: %v\n", err)
			exitCode = 1
		} else {
			fmt.Println("Annual statistics recomputed")
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion run finished", logging.Fields{
		"exit_code": exitCode,
	})

	os.Exit(exitCode)
}

func printResult(title string, result *services.IngestionResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 80))
	if result.Files > 0 {
		fmt.Printf("Files:          %d\n", result.Files)
	}
	fmt.Printf("Total Records:  %d\n", result.TotalRecords)
	fmt.Printf("Inserted:       %d\n", result.Inserted)
	fmt.Printf("Skipped:        %d\n", result.Skipped)
	fmt.Printf("Duration:       %v\n", result.Duration)
	if result.Duration.Seconds() > 0 {
		fmt.Printf("Records/Second: %.2f\n", float64(result.TotalRecords)/result.Duration.Seconds())
	}
}
